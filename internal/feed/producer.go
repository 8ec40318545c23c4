package feed

import (
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"main/internal/model"
	"main/pkg/shm"
)

// Producer converts depth frames into snapshots and publishes each one into
// the snapshot channel as a full replacement. Level ordering in the published
// record follows the venue feed: bids descending from best, asks ascending
// from best.
type Producer struct {
	ch         *shm.Channel
	onSnapshot func(model.Snapshot)
}

// NewProducer builds a producer over the given snapshot channel. onSnapshot
// is an optional per-update hook (terminal display); nil disables it.
func NewProducer(ch *shm.Channel, onSnapshot func(model.Snapshot)) *Producer {
	return &Producer{ch: ch, onSnapshot: onSnapshot}
}

// Publish writes one depth frame as a snapshot record.
func (p *Producer) Publish(depth BinanceBookDepth) error {
	snap, err := snapshotFromDepth(depth, time.Now().UnixMilli())
	if err != nil {
		return err
	}

	payload, err := sonic.ConfigFastest.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	if err := p.ch.Write(payload); err != nil {
		return errors.Wrap(err, "write snapshot").With("size", len(payload))
	}

	if p.onSnapshot != nil {
		p.onSnapshot(snap)
	}
	return nil
}

// Handler adapts Publish for ObserveBookDepth; publish failures are logged,
// not fatal, since the next frame fully replaces the slot anyway.
func (p *Producer) Handler() func(BinanceBookDepth) {
	return func(depth BinanceBookDepth) {
		if err := p.Publish(depth); err != nil {
			logs.Errorf("publish snapshot, err: %+v", err)
		}
	}
}

func snapshotFromDepth(depth BinanceBookDepth, tsMilli int64) (model.Snapshot, error) {
	bids, err := parseLevels(depth.Bids)
	if err != nil {
		return model.Snapshot{}, errors.Wrap(err, "parse bids")
	}
	asks, err := parseLevels(depth.Asks)
	if err != nil {
		return model.Snapshot{}, errors.Wrap(err, "parse asks")
	}
	return model.Snapshot{Bids: bids, Asks: asks, Timestamp: tsMilli}, nil
}

func parseLevels(rows [][2]string) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(rows))
	for _, row := range rows {
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse price").With("raw", row[0])
		}
		size, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse size").With("raw", row[1])
		}
		levels = append(levels, model.Level{price, size})
	}
	return levels, nil
}
