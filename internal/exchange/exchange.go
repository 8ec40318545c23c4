// Package exchange holds the per-venue request codecs: everything needed to
// turn an order intent plus credentials into a transport-ready authenticated
// message, and to recognize the matching response.
package exchange

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"main/internal/model"
	"main/pkg/exception"
)

// Credentials is one api key pair. Resolved once per session and never
// written to a channel or a log line.
type Credentials struct {
	Key    string
	Secret string
}

// CredentialsFromEnv reads <PREFIX>_API_KEY / <PREFIX>_API_SECRET. It is the
// process-boundary adapter; the codecs themselves only ever see explicit
// Credentials values.
func CredentialsFromEnv(prefix string) (Credentials, error) {
	creds := Credentials{
		Key:    os.Getenv(prefix + "_API_KEY"),
		Secret: os.Getenv(prefix + "_API_SECRET"),
	}
	if creds.Key == "" || creds.Secret == "" {
		return Credentials{}, errors.Wrap(exception.ErrMissingCredentials, "read env").
			With("keyVar", prefix+"_API_KEY").
			With("secretVar", prefix+"_API_SECRET")
	}
	return creds, nil
}

// Transport is the subset of a websocket connection the codecs and session
// touch. *gorilla/websocket.Conn satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Request is a transport-ready message with its correlation id.
type Request struct {
	ID      string
	Payload []byte
}

// Response is the venue-agnostic view of a correlated reply.
type Response struct {
	ID      string
	OK      bool
	Code    int64
	Message string
	Result  []byte
}

// Scheme is the injected credential strategy: encode a signed request, run
// whatever handshake the venue demands, and parse replies for correlation.
type Scheme interface {
	Name() string
	Endpoint() string

	// Handshake authenticates a fresh connection. A no-op for venues that
	// sign every request instead.
	Handshake(ctx context.Context, conn Transport, creds Credentials) error

	// EncodeOrder builds a signed order.place message from a normalized
	// intent. The clock is passed in so signatures are testable.
	EncodeOrder(intent Intent, creds Credentials, now time.Time) (Request, error)

	// DecodeResponse parses a raw frame. ok is false for frames that are not
	// correlatable replies (pushes, acks, junk); those are skipped, not errors.
	DecodeResponse(raw []byte) (resp Response, ok bool)
}

// Intent is a normalized order: side and kind are upper-cased canonical
// tokens before any signing happens, since signing the wrong casing silently
// changes the digest.
type Intent struct {
	Symbol        string
	Side          string
	Kind          string
	Quantity      string
	Price         string
	TimeInForce   string
	ReduceOnly    bool
	PositionSide  string
	PositionIdx   *int
	ClientOrderID string
	Category      string
}

// NewIntent validates and normalizes a channel record into an Intent.
func NewIntent(req model.OrderRequest) (Intent, error) {
	it := Intent{
		Symbol:        strings.TrimSpace(req.Symbol),
		Side:          strings.ToUpper(strings.TrimSpace(req.Side)),
		Kind:          strings.ToUpper(strings.TrimSpace(req.Type)),
		Quantity:      strings.TrimSpace(req.Quantity),
		Price:         strings.TrimSpace(req.Price),
		TimeInForce:   strings.ToUpper(strings.TrimSpace(req.TimeInForce)),
		ReduceOnly:    req.ReduceOnly,
		PositionSide:  strings.ToUpper(strings.TrimSpace(req.PositionSide)),
		PositionIdx:   req.PositionIdx,
		ClientOrderID: strings.TrimSpace(req.ClientOrderID),
		Category:      strings.TrimSpace(req.Category),
	}

	if it.Symbol == "" {
		return Intent{}, errors.Wrap(exception.ErrOrderInvalid, "missing symbol")
	}
	if it.Side != model.SideBuy && it.Side != model.SideSell {
		return Intent{}, errors.Wrap(exception.ErrOrderInvalid, "bad side").With("side", req.Side)
	}
	if it.Kind != model.OrderKindMarket && it.Kind != model.OrderKindLimit {
		return Intent{}, errors.Wrap(exception.ErrOrderInvalid, "bad order type").With("type", req.Type)
	}
	if !isNumeric(it.Quantity) {
		return Intent{}, errors.Wrap(exception.ErrOrderInvalid, "bad quantity").With("quantity", req.Quantity)
	}
	if it.Kind == model.OrderKindLimit {
		if !isNumeric(it.Price) {
			return Intent{}, errors.Wrap(exception.ErrOrderInvalid, "bad limit price").With("price", req.Price)
		}
		if it.TimeInForce == "" {
			it.TimeInForce = "GTC"
		}
	}
	return it, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
