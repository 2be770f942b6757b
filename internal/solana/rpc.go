package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by the pipeline.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature at the given
	// commitment level. Returns (nil, nil) when the transaction is not found.
	GetTransaction(ctx context.Context, signature string, commitment Commitment) (*Transaction, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenBalance retrieves the total raw token units an owner holds
	// for a mint, summed over the owner's token accounts.
	GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error)

	// GetSignaturesForAddress retrieves recent signatures for an address,
	// newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// Transaction represents a Solana transaction with the balance metadata
// needed to classify it.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{} // non-nil when the transaction failed on-chain
	PreBalances       []uint64    // lamports per account key, before execution
	PostBalances      []uint64    // lamports per account key, after execution
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LogMessages       []string
}

// Failed reports whether the transaction failed at the ledger level.
func (m *TransactionMeta) Failed() bool {
	return m != nil && m.Err != nil
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}
