package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"main/internal/model"
	"main/pkg/exception"
)

const (
	bybitEndpoint        = "wss://stream.bybit.com/v5/trade"
	bybitRecvWindow      = "5000"
	bybitDefaultCategory = "linear"
	bybitAuthLookahead   = 10 * time.Second
	bybitAuthWait        = 30 * time.Second
)

// Bybit authenticates the connection once and sends unsigned order messages
// afterwards; no secret material touches individual requests.
type Bybit struct {
	// Category defaults to linear (USDT perp) when neither the scheme nor the
	// intent names one.
	Category string
	// RecvWindow is the X-BAPI-RECV-WINDOW header value; default 5000.
	RecvWindow string
	// URL overrides the production endpoint, for tests.
	URL string
}

func (Bybit) Name() string { return "bybit" }

func (b Bybit) Endpoint() string {
	if b.URL != "" {
		return b.URL
	}
	return bybitEndpoint
}

type bybitAuthRequest struct {
	Op   string `json:"op"`
	Args [3]any `json:"args"`
}

// Handshake performs the one-time auth exchange: expiry = now + 10s in ms,
// signature = HMAC-SHA256(secret, "GET/realtime" + expiry) hex. A non-zero
// retCode is fatal to the connect attempt.
func (b Bybit) Handshake(ctx context.Context, conn Transport, creds Credentials) error {
	expires := time.Now().Add(bybitAuthLookahead).UnixMilli()
	auth := bybitAuthRequest{
		Op:   "auth",
		Args: [3]any{creds.Key, expires, BybitAuthSignature(creds.Secret, expires)},
	}
	payload, err := sonic.ConfigFastest.Marshal(auth)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "send auth")
	}

	_ = conn.SetReadDeadline(time.Now().Add(bybitAuthWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "read auth ack")
	}
	var ack struct {
		RetCode int64  `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &ack); err != nil {
		return errors.Wrap(err, "parse auth ack")
	}
	if ack.RetCode != 0 {
		return errors.Wrap(exception.ErrAuthenticationFailed, "bybit auth rejected").
			With("retCode", ack.RetCode).
			With("retMsg", ack.RetMsg)
	}
	return nil
}

// BybitAuthSignature is the connection-auth digest, exposed for tests.
func BybitAuthSignature(secret string, expiresMilli int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("GET/realtime" + strconv.FormatInt(expiresMilli, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

type bybitHeader struct {
	Timestamp  string `json:"X-BAPI-TIMESTAMP"`
	RecvWindow string `json:"X-BAPI-RECV-WINDOW"`
}

type bybitEnvelope struct {
	ReqID  string        `json:"reqId"`
	Header bybitHeader   `json:"header"`
	Op     string        `json:"op"`
	Args   [1]bybitOrder `json:"args"`
}

type bybitOrder struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	PositionIdx *int   `json:"positionIdx,omitempty"`
	OrderLinkID string `json:"orderLinkId,omitempty"`
}

func (b Bybit) EncodeOrder(intent Intent, creds Credentials, now time.Time) (Request, error) {
	category := intent.Category
	if category == "" {
		category = b.Category
	}
	if category == "" {
		category = bybitDefaultCategory
	}

	order := bybitOrder{
		Category:    category,
		Symbol:      intent.Symbol,
		Side:        bybitSide(intent.Side),
		OrderType:   bybitOrderType(intent.Kind),
		Qty:         intent.Quantity,
		ReduceOnly:  intent.ReduceOnly,
		PositionIdx: intent.PositionIdx,
		OrderLinkID: intent.ClientOrderID,
	}
	if intent.Kind == model.OrderKindLimit {
		order.Price = intent.Price
		order.TimeInForce = intent.TimeInForce
	}

	recvWindow := b.RecvWindow
	if recvWindow == "" {
		recvWindow = bybitRecvWindow
	}
	envelope := bybitEnvelope{
		ReqID: uuid.NewString(),
		Header: bybitHeader{
			Timestamp:  strconv.FormatInt(now.UnixMilli(), 10),
			RecvWindow: recvWindow,
		},
		Op:   "order.create",
		Args: [1]bybitOrder{order},
	}
	payload, err := sonic.ConfigFastest.Marshal(envelope)
	if err != nil {
		return Request{}, err
	}
	return Request{ID: envelope.ReqID, Payload: payload}, nil
}

func (Bybit) DecodeResponse(raw []byte) (Response, bool) {
	var resp struct {
		ReqID   string `json:"reqId"`
		RetCode int64  `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &resp); err != nil {
		return Response{}, false
	}
	if resp.ReqID == "" {
		return Response{}, false
	}
	return Response{
		ID:      resp.ReqID,
		OK:      resp.RetCode == 0,
		Code:    resp.RetCode,
		Message: resp.RetMsg,
		Result:  raw,
	}, true
}

func bybitSide(side string) string {
	if side == model.SideSell {
		return "Sell"
	}
	return "Buy"
}

func bybitOrderType(kind string) string {
	if kind == model.OrderKindLimit {
		return "Limit"
	}
	return "Market"
}
