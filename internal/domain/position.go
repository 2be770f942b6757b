package domain

// Position is an ephemeral view of one side of a mirrored trade, recomputed
// on each monitor call from the CopyTrade record and a live price. Never
// persisted.
type Position struct {
	Symbol        string
	Amount        float64
	EntryPrice    float64
	CurrentPrice  float64
	PnL           float64
	PnLPercentage float64
}

// ComputePnL fills the derived PnL fields from entry price, current price
// and amount. A zero entry price yields zero percentage rather than a
// division blow-up.
func (p *Position) ComputePnL() {
	p.PnL = (p.CurrentPrice - p.EntryPrice) * p.Amount
	if p.EntryPrice != 0 {
		p.PnLPercentage = (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
	} else {
		p.PnLPercentage = 0
	}
}

// Performance compares the user's own position against the mirrored
// custodial position.
type Performance struct {
	UserPnL    float64
	AIPnL      float64
	Difference float64 // UserPnL - AIPnL
}
