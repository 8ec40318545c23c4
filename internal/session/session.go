// Package session owns one persistent authenticated WebSocket connection to
// an exchange and exposes blocking order placement over it. The session is a
// thin primitive: transport failures propagate to the caller, and recovery
// (reconnect) belongs to the order runner.
package session

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"main/internal/exchange"
	"main/pkg/exception"
)

// DefaultSubmitTimeout bounds the correlation wait of a single Submit.
const DefaultSubmitTimeout = 30 * time.Second

// DialFunc opens a transport to the given endpoint.
type DialFunc func(ctx context.Context, endpoint string) (exchange.Transport, error)

func gorillaDial(ctx context.Context, endpoint string) (exchange.Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config wires a session. Scheme is required; everything else has defaults.
type Config struct {
	Scheme      exchange.Scheme
	Credentials exchange.Credentials
	Timeout     time.Duration
	Dial        DialFunc
}

// Session is either disconnected or connected-and-authenticated; Connect
// performs the venue handshake before returning, so callers never observe a
// connected-but-unauthenticated state.
type Session struct {
	scheme   exchange.Scheme
	creds    exchange.Credentials
	timeout  time.Duration
	dial     DialFunc
	conn     exchange.Transport
	inflight atomic.Bool
}

// New builds a disconnected session.
func New(cfg Config) (*Session, error) {
	if cfg.Scheme == nil {
		return nil, errors.New("session: nil scheme")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSubmitTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = gorillaDial
	}
	return &Session{
		scheme:  cfg.Scheme,
		creds:   cfg.Credentials,
		timeout: cfg.Timeout,
		dial:    cfg.Dial,
	}, nil
}

// Venue returns the scheme name.
func (s *Session) Venue() string {
	return s.scheme.Name()
}

// Connected reports whether the session holds an authenticated transport.
func (s *Session) Connected() bool {
	return s.conn != nil
}

// Connect opens the transport and runs the venue handshake. Idempotent when
// already authenticated. Any handshake failure leaves the session
// disconnected and surfaces as an authentication failure.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	conn, err := s.dial(ctx, s.scheme.Endpoint())
	if err != nil {
		return errors.Wrap(err, "dial").With("endpoint", s.scheme.Endpoint())
	}

	if err := s.scheme.Handshake(ctx, conn, s.creds); err != nil {
		conn.Close()
		return errors.Wrap(exception.ErrAuthenticationFailed, "handshake").
			With("venue", s.scheme.Name()).
			With("cause", err)
	}

	s.conn = conn
	return nil
}

// Close tears the transport down. Safe from any state.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// RejectedError carries the exchange-side rejection verbatim.
type RejectedError struct {
	Code    int64
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected: code %d, %s", e.Code, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return exception.ErrOrderRejected
}

// Submit encodes and sends one order, then waits for the correlated reply.
// Frames whose id does not match are unrelated pushes and are skipped. The
// wait is bounded by the configured timeout. Submit never retries: rejection
// and timeout are both ambiguous enough that a blind resend could duplicate
// intent. One submit at a time; overlapping calls fail fast.
func (s *Session) Submit(ctx context.Context, intent exchange.Intent) (exchange.Response, error) {
	if s.conn == nil {
		return exchange.Response{}, exception.ErrNotConnected
	}
	if !s.inflight.CompareAndSwap(false, true) {
		return exchange.Response{}, exception.ErrSubmitInFlight
	}
	defer s.inflight.Store(false)

	req, err := s.scheme.EncodeOrder(intent, s.creds, time.Now())
	if err != nil {
		return exchange.Response{}, errors.Wrap(err, "encode order")
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, req.Payload); err != nil {
		return exchange.Response{}, errors.Wrap(exception.ErrTransportClosed, "send order").
			With("cause", err)
	}

	deadline := time.Now().Add(s.timeout)
	for {
		_ = s.conn.SetReadDeadline(deadline)
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return exchange.Response{}, exception.ErrRequestTimeout
			}
			return exchange.Response{}, errors.Wrap(exception.ErrTransportClosed, "receive response").
				With("cause", err)
		}

		resp, ok := s.scheme.DecodeResponse(raw)
		if !ok || resp.ID != req.ID {
			continue
		}
		if !resp.OK {
			return resp, &RejectedError{Code: resp.Code, Message: resp.Message}
		}
		return resp, nil
	}
}
