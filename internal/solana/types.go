package solana

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Commitment is a Solana commitment level.
type Commitment string

// Commitment levels, weakest to strongest.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// TokenBalance is one row of a pre/post token-balance snapshot.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       TokenAmount
}

// TokenAmount is a raw token amount with decimal scaling info.
type TokenAmount struct {
	Raw      string // raw integer units as decimal string
	Decimals int
	UIAmount float64
}

// AccountNotification is one accountSubscribe push message.
type AccountNotification struct {
	Address  string
	Slot     int64
	Lamports uint64
}
