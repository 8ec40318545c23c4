// Package feed acquires live orderbook data and publishes snapshots into a
// shared memory channel.
package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// BinanceBook streams partial book depth for one connection.
type BinanceBook struct {
	wss *ws.WebSocket
}

func NewBinanceBook(ctx context.Context) *BinanceBook {
	return &BinanceBook{
		wss: ws.New(ctx, _binanceBaseWsUrl),
	}
}

func (repo *BinanceBook) Close() {
	repo.wss.Close()
}

func (repo *BinanceBook) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type BinanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type BinanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (BinanceSubscribeResponse, bool) {
	var resp BinanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeBookDepth subscribes 'Partial Book Depth Stream'; depth is 5, 10
// or 20 levels at 100ms.
func (repo *BinanceBook) SubscribeBookDepth(ctx context.Context, symbol string, depth int) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := BinanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(symbol), depth),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type BinanceBookDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"` // [0]price [1]quantity
	Asks         [][2]string `json:"asks"` // [0]price [1]quantity
}

// ObserveBookDepth feeds every partial book frame to handler until the
// context ends or the process shuts down.
func (repo *BinanceBook) ObserveBookDepth(ctx context.Context, handler func(d BinanceBookDepth)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[BinanceBookDepth](m)
				if !ok || resp.LastUpdateID == 0 {
					continue
				}

				handler(resp)
			}
		}
	}()

	return cancel
}
