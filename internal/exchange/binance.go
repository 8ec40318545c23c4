package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"main/internal/model"
)

const (
	binanceEndpoint   = "wss://ws-fapi.binance.com/ws-fapi/v1"
	binanceRecvWindow = 5000
	binanceOKStatus   = 200
)

// Binance signs every request: HMAC-SHA256 over the parameters serialized as
// key=value pairs joined by '&' in ascending key order. No connection-level
// handshake.
type Binance struct {
	// RecvWindow overrides the venue default of 5000ms. The parameter is only
	// serialized (and signed) when it differs from the default.
	RecvWindow int
	// URL overrides the production endpoint, for tests.
	URL string
}

func (Binance) Name() string { return "binance" }

func (b Binance) Endpoint() string {
	if b.URL != "" {
		return b.URL
	}
	return binanceEndpoint
}

// Handshake is a no-op; authentication rides on every signed request.
func (Binance) Handshake(ctx context.Context, conn Transport, creds Credentials) error {
	return nil
}

type binanceEnvelope struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Params map[string]string `json:"params"`
}

func (b Binance) EncodeOrder(intent Intent, creds Credentials, now time.Time) (Request, error) {
	params := map[string]string{
		"symbol":    intent.Symbol,
		"side":      intent.Side,
		"type":      intent.Kind,
		"quantity":  intent.Quantity,
		"timestamp": strconv.FormatInt(now.UnixMilli(), 10),
	}
	if b.RecvWindow != 0 && b.RecvWindow != binanceRecvWindow {
		params["recvWindow"] = strconv.Itoa(b.RecvWindow)
	}
	if intent.ReduceOnly {
		params["reduceOnly"] = "true"
	}
	if intent.PositionSide != "" {
		params["positionSide"] = intent.PositionSide
	}
	if intent.ClientOrderID != "" {
		params["newClientOrderId"] = intent.ClientOrderID
	}
	if intent.Kind == model.OrderKindLimit {
		params["price"] = intent.Price
		params["timeInForce"] = intent.TimeInForce
	}

	params["apiKey"] = creds.Key
	params["signature"] = signQuery(params, creds.Secret)

	envelope := binanceEnvelope{
		ID:     uuid.NewString(),
		Method: "order.place",
		Params: params,
	}
	payload, err := sonic.ConfigFastest.Marshal(envelope)
	if err != nil {
		return Request{}, err
	}
	return Request{ID: envelope.ID, Payload: payload}, nil
}

type binanceResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Error  struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

func (Binance) DecodeResponse(raw []byte) (Response, bool) {
	var resp binanceResponse
	if err := sonic.ConfigFastest.Unmarshal(raw, &resp); err != nil {
		return Response{}, false
	}
	if resp.ID == "" {
		return Response{}, false
	}
	return Response{
		ID:      resp.ID,
		OK:      resp.Status == binanceOKStatus,
		Code:    resp.Error.Code,
		Message: resp.Error.Msg,
		Result:  raw,
	}, true
}

// signQuery is byte-exact: any reordering or extra field changes the digest
// and the venue rejects the request. The signature itself is excluded from
// the signed string.
func signQuery(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
