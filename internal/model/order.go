package model

// Order side and kind tokens as carried on the request channel. Producers may
// write any casing; normalization happens when the runner builds an exchange
// intent, never on the channel itself.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderKindMarket = "MARKET"
	OrderKindLimit  = "LIMIT"
)

// OrderRequest is the exchange-agnostic record written to a request channel.
// Quantity and price travel as strings; exchanges consume them verbatim and a
// float round-trip could change the digest-relevant representation.
type OrderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price,omitempty"`
	TimeInForce   string `json:"time_in_force,omitempty"`
	ReduceOnly    bool   `json:"reduce_only,omitempty"`
	PositionSide  string `json:"position_side,omitempty"`
	PositionIdx   *int   `json:"position_idx,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Category      string `json:"category,omitempty"`
}
