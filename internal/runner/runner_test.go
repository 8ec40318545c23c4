package runner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"main/internal/exchange"
	"main/internal/model"
	"main/pkg/exception"
	"main/pkg/shm"
)

type fakeTrader struct {
	mu         sync.Mutex
	submits    []exchange.Intent
	submitErr  error
	connects   int
	closes     int
	connectErr error
}

func (f *fakeTrader) Venue() string { return "fake" }

func (f *fakeTrader) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTrader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTrader) Submit(ctx context.Context, intent exchange.Intent) (exchange.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, intent)
	return exchange.Response{OK: f.submitErr == nil}, f.submitErr
}

func (f *fakeTrader) snapshot() (submits int, connects int, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits), f.connects, f.closes
}

type journalCall struct {
	status Status
	symbol string
}

type fakeJournal struct {
	mu    sync.Mutex
	calls []journalCall
}

func (f *fakeJournal) Record(ctx context.Context, venue string, req model.OrderRequest, status Status, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, journalCall{status: status, symbol: req.Symbol})
}

func (f *fakeJournal) last() (journalCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return journalCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

func testChannel(t *testing.T) *shm.Channel {
	t.Helper()
	ch, err := shm.CreateAt(filepath.Join(t.TempDir(), "orders"))
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func writeRequest(t *testing.T, ch *shm.Channel, req model.OrderRequest) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, ch.Write(payload))
}

func startRunner(t *testing.T, ch *shm.Channel, trader Trader, journal Recorder) context.CancelFunc {
	t.Helper()
	r, err := New(Config{
		Channel:      ch,
		Session:      trader,
		PollInterval: 5 * time.Millisecond,
		Journal:      journal,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func waitCleared(t *testing.T, ch *shm.Channel) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := ch.Read(nil); !ok {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("channel never cleared")
}

func TestRunnerForwardsAndClears(t *testing.T) {
	ch := testChannel(t)
	trader := &fakeTrader{}
	journal := &fakeJournal{}
	startRunner(t, ch, trader, journal)

	writeRequest(t, ch, model.OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET", Quantity: "0.001"})
	waitCleared(t, ch)

	require.Eventually(t, func() bool {
		submits, _, _ := trader.snapshot()
		return submits == 1
	}, time.Second, 5*time.Millisecond)

	call, ok := journal.last()
	require.True(t, ok)
	require.Equal(t, StatusAccepted, call.status)
	require.Equal(t, "BTCUSDT", call.symbol)
}

func TestRunnerClearsOnRejection(t *testing.T) {
	ch := testChannel(t)
	trader := &fakeTrader{submitErr: exception.ErrOrderRejected}
	startRunner(t, ch, trader, nil)

	writeRequest(t, ch, model.OrderRequest{Symbol: "BTCUSDT", Side: "SELL", Type: "MARKET", Quantity: "0.01"})
	waitCleared(t, ch)

	submits, connects, _ := trader.snapshot()
	require.Equal(t, 1, submits, "rejected orders are never resubmitted")
	require.Zero(t, connects, "rejection must not trigger a reconnect")
}

func TestRunnerDropsRecordMissingQuantity(t *testing.T) {
	ch := testChannel(t)
	trader := &fakeTrader{}
	startRunner(t, ch, trader, nil)

	writeRequest(t, ch, model.OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET"})
	waitCleared(t, ch)

	submits, _, _ := trader.snapshot()
	require.Zero(t, submits, "invalid record must not reach the session")
}

func TestRunnerDropsUndecodablePayload(t *testing.T) {
	ch := testChannel(t)
	trader := &fakeTrader{}
	startRunner(t, ch, trader, nil)

	require.NoError(t, ch.Write([]byte("\x00\x01 not json")))
	waitCleared(t, ch)

	submits, _, _ := trader.snapshot()
	require.Zero(t, submits)
}

func TestRunnerReconnectsOnTransportLoss(t *testing.T) {
	ch := testChannel(t)
	trader := &fakeTrader{submitErr: exception.ErrTransportClosed}
	startRunner(t, ch, trader, nil)

	writeRequest(t, ch, model.OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET", Quantity: "0.001"})
	waitCleared(t, ch)

	require.Eventually(t, func() bool {
		_, connects, closes := trader.snapshot()
		return connects == 1 && closes == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRunnerLimitOrderPassesPrice(t *testing.T) {
	ch := testChannel(t)
	trader := &fakeTrader{}
	startRunner(t, ch, trader, nil)

	writeRequest(t, ch, model.OrderRequest{
		Symbol:   "ETHUSDT",
		Side:     "SELL",
		Type:     "LIMIT",
		Quantity: "1",
		Price:    "3000",
	})
	waitCleared(t, ch)

	require.Eventually(t, func() bool {
		submits, _, _ := trader.snapshot()
		return submits == 1
	}, time.Second, 5*time.Millisecond)

	trader.mu.Lock()
	intent := trader.submits[0]
	trader.mu.Unlock()
	require.Equal(t, "LIMIT", intent.Kind)
	require.Equal(t, "3000", intent.Price)
	require.Equal(t, "GTC", intent.TimeInForce)
}
