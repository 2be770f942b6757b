package stub

import (
	"context"
	"sync"

	"solana-copytrade/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	Transactions  map[string]*solana.Transaction
	Balances      map[string]uint64 // pubkey -> lamports
	TokenBalances map[string]uint64 // owner|mint -> raw units
	Signatures    map[string][]solana.SignatureInfo

	// GetTransactionCalls counts lookups per signature, for retry assertions.
	GetTransactionCalls map[string]int

	// NotFoundUntilCall makes GetTransaction return nil until the n-th call
	// for a signature, simulating slow finality.
	NotFoundUntilCall map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:        make(map[string]*solana.Transaction),
		Balances:            make(map[string]uint64),
		TokenBalances:       make(map[string]uint64),
		Signatures:          make(map[string][]solana.SignatureInfo),
		GetTransactionCalls: make(map[string]int),
		NotFoundUntilCall:   make(map[string]int),
	}
}

// GetTransaction retrieves a transaction from the stub store. Returns
// (nil, nil) when not present, matching the HTTP client contract.
func (c *RPCClient) GetTransaction(_ context.Context, signature string, _ solana.Commitment) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GetTransactionCalls[signature]++
	if until, ok := c.NotFoundUntilCall[signature]; ok && c.GetTransactionCalls[signature] < until {
		return nil, nil
	}
	return c.Transactions[signature], nil
}

// GetBalance retrieves a lamport balance from the stub store.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[pubkey], nil
}

// GetTokenBalance retrieves a raw token balance from the stub store.
func (c *RPCClient) GetTokenBalance(_ context.Context, owner, mint string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TokenBalances[owner+"|"+mint], nil
}

// SetTokenBalance sets the raw token balance for an owner and mint.
func (c *RPCClient) SetTokenBalance(owner, mint string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[owner+"|"+mint] = amount
}

// GetSignaturesForAddress retrieves signatures from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs := c.Signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = append(c.Signatures[address], sigs...)
}

var _ solana.RPCClient = (*RPCClient)(nil)
