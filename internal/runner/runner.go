// Package runner bridges a request channel to a trading session: it polls the
// shared memory slot, forwards decoded orders, and owns reconnection. The
// channel is cleared exactly once per consumed record whatever the outcome,
// so an order is never sent twice; a dropped order must be resubmitted by its
// producer.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
	"main/internal/exchange"
	"main/internal/model"
	"main/pkg/exception"
	"main/pkg/shm"
)

// DefaultPollInterval trades a bounded ~50ms forwarding latency against CPU
// spent spinning on an empty slot.
const DefaultPollInterval = 50 * time.Millisecond

// Status classifies one forwarding attempt for the journal.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusTimeout   Status = "timeout"
	StatusTransport Status = "transport"
	StatusInvalid   Status = "invalid"
)

// Trader is the slice of a trading session the runner drives.
type Trader interface {
	Venue() string
	Connect(ctx context.Context) error
	Close() error
	Submit(ctx context.Context, intent exchange.Intent) (exchange.Response, error)
}

// Recorder persists forwarding outcomes. Optional.
type Recorder interface {
	Record(ctx context.Context, venue string, req model.OrderRequest, status Status, detail string)
}

// Config wires a runner. Channel and Session are required.
type Config struct {
	Channel      *shm.Channel
	Session      Trader
	PollInterval time.Duration
	Journal      Recorder
}

// Runner is the long-lived consumer side of one request channel.
type Runner struct {
	ch      *shm.Channel
	session Trader
	poll    time.Duration
	journal Recorder
}

// New validates config and builds a runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Channel == nil {
		return nil, errors.New("runner: nil channel")
	}
	if cfg.Session == nil {
		return nil, errors.New("runner: nil session")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Runner{
		ch:      cfg.Channel,
		session: cfg.Session,
		poll:    cfg.PollInterval,
		journal: cfg.Journal,
	}, nil
}

// Run polls the request channel until ctx is done. A pending submit runs to
// completion before shutdown is observed; there is no mid-request abort.
func (r *Runner) Run(ctx context.Context) error {
	buf := make([]byte, shm.MaxPayload)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, ok := r.ch.Read(buf)
		if !ok {
			r.sleep(ctx)
			continue
		}
		r.handle(ctx, payload)
		r.sleep(ctx)
	}
}

func (r *Runner) handle(ctx context.Context, payload []byte) {
	venue := r.session.Venue()

	var req model.OrderRequest
	if err := sonic.ConfigFastest.Unmarshal(payload, &req); err != nil {
		// the producer cannot observe a nack anyway; drop, don't spin
		logs.Errorf("drop undecodable order request, err: %+v", err)
		r.ch.Clear()
		return
	}

	intent, err := exchange.NewIntent(req)
	if err != nil {
		logs.Errorf("drop invalid order request, err: %+v", err)
		r.ch.Clear()
		r.record(ctx, venue, req, StatusInvalid, err.Error())
		return
	}

	logs.Infof("order from channel: %s %s %s qty=%s", intent.Kind, intent.Side, intent.Symbol, intent.Quantity)

	_, err = r.session.Submit(ctx, intent)
	r.ch.Clear()

	switch {
	case err == nil:
		logs.Infof("order accepted: %s %s %s", venue, intent.Side, intent.Symbol)
		r.record(ctx, venue, req, StatusAccepted, "")

	case errors.Is(err, exception.ErrTransportClosed), errors.Is(err, exception.ErrNotConnected):
		logs.Errorf("transport lost, reconnecting, err: %+v", err)
		r.record(ctx, venue, req, StatusTransport, err.Error())
		r.reconnect(ctx)

	case errors.Is(err, exception.ErrRequestTimeout):
		logs.Errorf("order timed out: %s %s", venue, intent.Symbol)
		r.record(ctx, venue, req, StatusTimeout, err.Error())

	default:
		logs.Errorf("order failed, err: %+v", err)
		r.record(ctx, venue, req, StatusRejected, err.Error())
	}
}

func (r *Runner) reconnect(ctx context.Context) {
	_ = r.session.Close()
	if err := r.session.Connect(ctx); err != nil {
		logs.Errorf("reconnect failed, will retry on next failure, err: %+v", err)
		return
	}
	logs.Info("reconnected")
}

func (r *Runner) record(ctx context.Context, venue string, req model.OrderRequest, status Status, detail string) {
	if r.journal == nil {
		return
	}
	r.journal.Record(ctx, venue, req, status, detail)
}

func (r *Runner) sleep(ctx context.Context) {
	timer := time.NewTimer(r.poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
