package model

// Level is one orderbook price level: [0] price, [1] size.
type Level [2]float64

func (l Level) Price() float64 { return l[0] }
func (l Level) Size() float64  { return l[1] }

// Snapshot is a full top-of-book replacement published on every market data
// update. Bids are ordered best-first descending, asks best-first ascending;
// consumers may index [0] for the touch on both sides.
type Snapshot struct {
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	Timestamp int64   `json:"ts"`
}

// BestBid returns the highest bid, if any.
func (s Snapshot) BestBid() (Level, bool) {
	if len(s.Bids) == 0 {
		return Level{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (s Snapshot) BestAsk() (Level, bool) {
	if len(s.Asks) == 0 {
		return Level{}, false
	}
	return s.Asks[0], true
}

// Mid returns the midpoint of the touch.
func (s Snapshot) Mid() (float64, bool) {
	bid, ok := s.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := s.BestAsk()
	if !ok {
		return 0, false
	}
	return (bid.Price() + ask.Price()) / 2, true
}
