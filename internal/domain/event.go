package domain

// TradeEvent represents an observed on-chain action by a watched trader.
// Derived from ledger transactions, emitted transiently to subscribers and
// archived for audit; never a first-class mutable table.
type TradeEvent struct {
	Signature     string  // ledger-unique transaction signature
	Type          string  // "buy" | "sell"
	Token         string  // mint address, or "SOL" for native-currency trades
	Amount        float64 // absolute amount traded
	Price         float64 // approximate execution price, 0 when not derivable
	Timestamp     int64   // Unix timestamp in milliseconds
	WalletAddress string  // trader wallet the event was observed for
}

// Trade event type constants.
const (
	TradeTypeBuy  = "buy"
	TradeTypeSell = "sell"
)

// NativeToken is the token symbol used for native-currency trades where
// no SPL token transfer was involved.
const NativeToken = "SOL"
