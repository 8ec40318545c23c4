package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"main/internal/model"
)

func hmacHex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignQueryMatchesIndependentDigest(t *testing.T) {
	params := map[string]string{
		"symbol":    "BTCUSDT",
		"side":      "BUY",
		"type":      "MARKET",
		"quantity":  "0.001",
		"timestamp": "1700000000000",
		"apiKey":    "test-key",
	}
	// keys joined in ascending alphabetical order
	want := hmacHex("test-secret",
		"apiKey=test-key&quantity=0.001&side=BUY&symbol=BTCUSDT&timestamp=1700000000000&type=MARKET")
	require.Equal(t, want, signQuery(params, "test-secret"))

	// deterministic across calls
	require.Equal(t, signQuery(params, "test-secret"), signQuery(params, "test-secret"))

	// the signature field itself never feeds the digest
	params["signature"] = "bogus"
	require.Equal(t, want, signQuery(params, "test-secret"))
}

func TestBinanceEncodeMarketOrder(t *testing.T) {
	intent, err := NewIntent(model.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     "BUY",
		Type:     "MARKET",
		Quantity: "0.001",
	})
	require.NoError(t, err)

	creds := Credentials{Key: "test-key", Secret: "test-secret"}
	now := time.UnixMilli(1700000000000)
	req, err := Binance{}.EncodeOrder(intent, creds, now)
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)

	var envelope struct {
		ID     string            `json:"id"`
		Method string            `json:"method"`
		Params map[string]string `json:"params"`
	}
	require.NoError(t, json.Unmarshal(req.Payload, &envelope))
	require.Equal(t, req.ID, envelope.ID)
	require.Equal(t, "order.place", envelope.Method)
	require.Equal(t, "BTCUSDT", envelope.Params["symbol"])
	require.Equal(t, "1700000000000", envelope.Params["timestamp"])
	require.Equal(t, "test-key", envelope.Params["apiKey"])
	require.NotContains(t, envelope.Params, "recvWindow", "default recvWindow is not serialized")
	require.NotContains(t, envelope.Params, "price")

	// recompute the digest over everything except the signature itself
	signed := map[string]string{}
	for k, v := range envelope.Params {
		if k != "signature" {
			signed[k] = v
		}
	}
	require.Equal(t, signQuery(signed, creds.Secret), envelope.Params["signature"])
}

func TestBinanceEncodeLimitOrderFields(t *testing.T) {
	intent, err := NewIntent(model.OrderRequest{
		Symbol:        "ETHUSDT",
		Side:          "sell",
		Type:          "limit",
		Quantity:      "1.5",
		Price:         "3000",
		ReduceOnly:    true,
		PositionSide:  "short",
		ClientOrderID: "cid-1",
	})
	require.NoError(t, err)

	req, err := Binance{RecvWindow: 7000}.EncodeOrder(intent, Credentials{Key: "k", Secret: "s"}, time.UnixMilli(1))
	require.NoError(t, err)

	var envelope binanceEnvelope
	require.NoError(t, json.Unmarshal(req.Payload, &envelope))
	require.Equal(t, "SELL", envelope.Params["side"])
	require.Equal(t, "LIMIT", envelope.Params["type"])
	require.Equal(t, "3000", envelope.Params["price"])
	require.Equal(t, "GTC", envelope.Params["timeInForce"])
	require.Equal(t, "true", envelope.Params["reduceOnly"])
	require.Equal(t, "SHORT", envelope.Params["positionSide"])
	require.Equal(t, "cid-1", envelope.Params["newClientOrderId"])
	require.Equal(t, "7000", envelope.Params["recvWindow"])
}

func TestBinanceDecodeResponse(t *testing.T) {
	scheme := Binance{}

	resp, ok := scheme.DecodeResponse([]byte(`{"id":"abc","status":200,"result":{"orderId":1}}`))
	require.True(t, ok)
	require.True(t, resp.OK)
	require.Equal(t, "abc", resp.ID)

	resp, ok = scheme.DecodeResponse([]byte(`{"id":"abc","status":400,"error":{"code":-1102,"msg":"Mandatory parameter missing"}}`))
	require.True(t, ok)
	require.False(t, resp.OK)
	require.Equal(t, int64(-1102), resp.Code)
	require.Equal(t, "Mandatory parameter missing", resp.Message)

	// push frames without an id are skipped, not failed
	_, ok = scheme.DecodeResponse([]byte(`{"e":"depthUpdate","s":"BTCUSDT"}`))
	require.False(t, ok)
	_, ok = scheme.DecodeResponse([]byte(`not json`))
	require.False(t, ok)
}
