// Package strategy holds request-channel producers. A strategy is a plain
// consumer of snapshot channels and a writer of order requests; it never
// talks to an exchange directly.
package strategy

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"main/internal/model"
	"main/pkg/shm"
)

// SpreadConfig wires a two-venue spread watcher.
type SpreadConfig struct {
	// BookA/BookB are snapshot channels to compare, attached read-only.
	BookA, BookB *shm.Channel
	// BuyRequests receives the market BUY (venue A side), SellRequests the
	// market SELL (venue B side).
	BuyRequests, SellRequests *shm.Channel
	Symbol                    string
	Quantity                  string
	PollInterval              time.Duration
}

// Spread logs mid(bookA) - mid(bookB) on every poll and fires one market
// order pair the first time both books are readable, then reports done.
type Spread struct {
	cfg  SpreadConfig
	sent bool
	bufA []byte
	bufB []byte
}

func NewSpread(cfg SpreadConfig) (*Spread, error) {
	if cfg.BookA == nil || cfg.BookB == nil {
		return nil, errors.New("strategy: nil snapshot channel")
	}
	if cfg.BuyRequests == nil || cfg.SellRequests == nil {
		return nil, errors.New("strategy: nil request channel")
	}
	if cfg.Symbol == "" || cfg.Quantity == "" {
		return nil, errors.New("strategy: missing symbol or quantity")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Spread{
		cfg:  cfg,
		bufA: make([]byte, shm.MaxPayload),
		bufB: make([]byte, shm.MaxPayload),
	}, nil
}

// Step reads both books once. It returns true once the order pair went out.
func (s *Spread) Step() (bool, error) {
	snapA, ok := readSnapshot(s.cfg.BookA, s.bufA)
	if !ok {
		return false, nil
	}
	snapB, ok := readSnapshot(s.cfg.BookB, s.bufB)
	if !ok {
		return false, nil
	}

	midA, okA := snapA.Mid()
	midB, okB := snapB.Mid()
	if !okA || !okB {
		return false, nil
	}

	logs.Infof("mid_a: %.2f, mid_b: %.2f, spread: %.2f", midA, midB, midA-midB)

	if s.sent {
		return true, nil
	}

	if err := writeRequest(s.cfg.BuyRequests, model.OrderRequest{
		Symbol:   s.cfg.Symbol,
		Side:     model.SideBuy,
		Type:     model.OrderKindMarket,
		Quantity: s.cfg.Quantity,
	}); err != nil {
		return false, errors.Wrap(err, "write buy request")
	}
	if err := writeRequest(s.cfg.SellRequests, model.OrderRequest{
		Symbol:   s.cfg.Symbol,
		Side:     model.SideSell,
		Type:     model.OrderKindMarket,
		Quantity: s.cfg.Quantity,
	}); err != nil {
		return false, errors.Wrap(err, "write sell request")
	}

	s.sent = true
	logs.Info("order requests written; runners forward them to the venues")
	return true, nil
}

// Run polls until the order pair is sent or ctx ends.
func (s *Spread) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := s.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func readSnapshot(ch *shm.Channel, buf []byte) (model.Snapshot, bool) {
	payload, ok := ch.Read(buf)
	if !ok {
		return model.Snapshot{}, false
	}
	var snap model.Snapshot
	if err := sonic.ConfigFastest.Unmarshal(payload, &snap); err != nil {
		return model.Snapshot{}, false
	}
	return snap, true
}

func writeRequest(ch *shm.Channel, req model.OrderRequest) error {
	payload, err := sonic.ConfigFastest.Marshal(req)
	if err != nil {
		return err
	}
	return ch.Write(payload)
}
