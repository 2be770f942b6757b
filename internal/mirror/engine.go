package mirror

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-copytrade/internal/observability"
	"solana-copytrade/internal/solana"
)

// Default engine settings.
const (
	DefaultConfirmAttempts = 5
	DefaultConfirmDelay    = 2 * time.Second
	// DefaultMinReserve is the fee buffer the custodial wallet keeps,
	// 0.01 SOL.
	DefaultMinReserve = solana.LamportsPerSOL / 100
)

// Engine executes a proportional mirrored trade from the custodial wallet
// and confirms it reached finality. The measured balance delta across the
// trade is the only authoritative proceeds figure; requested and quoted
// amounts are advisory.
type Engine struct {
	rpc    solana.RPCClient
	swap   SwapService
	locks  *WalletLocks
	logger *log.Logger

	aiWallet        string
	minReserve      uint64
	confirmAttempts int
	confirmDelay    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures an Engine.
type Options struct {
	RPC             solana.RPCClient
	Swap            SwapService
	AIWallet        string
	MinReserve      uint64        // 0 means DefaultMinReserve
	ConfirmAttempts int           // 0 means DefaultConfirmAttempts
	ConfirmDelay    time.Duration // 0 means DefaultConfirmDelay
	Logger          *log.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[mirror] ", log.LstdFlags)
	}
	e := &Engine{
		rpc:             opts.RPC,
		swap:            opts.Swap,
		locks:           NewWalletLocks(),
		logger:          logger,
		aiWallet:        opts.AIWallet,
		minReserve:      opts.MinReserve,
		confirmAttempts: opts.ConfirmAttempts,
		confirmDelay:    opts.ConfirmDelay,
		sleep:           sleepCtx,
	}
	if e.minReserve == 0 {
		e.minReserve = DefaultMinReserve
	}
	if e.confirmAttempts == 0 {
		e.confirmAttempts = DefaultConfirmAttempts
	}
	if e.confirmDelay == 0 {
		e.confirmDelay = DefaultConfirmDelay
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Request describes one mirror execution.
type Request struct {
	UserWallet    string
	UserSignature string  // the user's own trade, validated first
	InputMint     string  // what the custodial wallet spends
	OutputMint    string  // what the custodial wallet receives
	UserAmount    float64 // size of the user's trade
	Allocation    float64 // fraction of the user's size to mirror, (0, 1]
	MaxSlippage   float64 // percent
}

// Result is a confirmed mirror execution.
type Result struct {
	Signature    string // AI trade signature
	BeforeAmount uint64 // raw units, custodial wallet, pre-trade
	AfterAmount  uint64 // raw units, custodial wallet, post-trade
	Received     uint64 // AfterAmount - BeforeAmount, the authoritative figure
	TargetAmount float64
}

// Execute runs the full mirror flow: validate the user's transaction,
// check the custodial reserve, snapshot, submit via the aggregator, confirm
// with a bounded poll, and measure actual proceeds.
//
// Steps through the reserve check are hard preconditions with no side
// effects. A ConfirmationTimeoutError after submission means a trade was
// sent but not verified in time; nothing is rolled back.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := e.validateUserTrade(ctx, req.UserSignature); err != nil {
		return nil, err
	}

	balance, err := e.rpc.GetBalance(ctx, e.aiWallet)
	if err != nil {
		return nil, fmt.Errorf("custodial balance: %w", err)
	}
	if balance < e.minReserve {
		return nil, &InsufficientReserveError{Balance: balance, Required: e.minReserve}
	}

	// The snapshot window must not interleave with another flow touching
	// the same wallet and mint.
	unlock := e.locks.Lock(e.aiWallet, req.OutputMint)
	defer unlock()

	before, err := e.rpc.GetTokenBalance(ctx, e.aiWallet, req.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("pre-trade balance: %w", err)
	}

	target := req.UserAmount * req.Allocation
	signature, err := e.swap.Submit(ctx, SwapRequest{
		Wallet:      e.aiWallet,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      target,
		SlippageBps: int(req.MaxSlippage * 100),
	})
	if err != nil {
		return nil, fmt.Errorf("submit mirror trade: %w", err)
	}

	if err := e.confirm(ctx, signature); err != nil {
		return nil, err
	}

	after, err := e.rpc.GetTokenBalance(ctx, e.aiWallet, req.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("post-trade balance: %w", err)
	}

	result := &Result{
		Signature:    signature,
		BeforeAmount: before,
		AfterAmount:  after,
		TargetAmount: target,
	}
	if after > before {
		result.Received = after - before
	}

	e.logger.Printf("mirrored %s: target=%f received=%d raw units", signature, target, result.Received)
	return result, nil
}

// validateUserTrade checks the user's own transaction exists and succeeded,
// retrying once at finalized commitment when not found at the default level.
func (e *Engine) validateUserTrade(ctx context.Context, signature string) error {
	tx, err := e.rpc.GetTransaction(ctx, signature, solana.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("user transaction lookup: %w", err)
	}
	if tx == nil {
		tx, err = e.rpc.GetTransaction(ctx, signature, solana.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("user transaction lookup (finalized): %w", err)
		}
	}
	if tx == nil {
		return fmt.Errorf("%w: %s", ErrUserTradeNotFound, signature)
	}
	if tx.Meta.Failed() {
		return &LedgerFailureError{Signature: signature, Detail: tx.Meta.Err}
	}
	return nil
}

// confirm polls for the mirrored transaction a bounded number of times.
func (e *Engine) confirm(ctx context.Context, signature string) error {
	for attempt := 1; attempt <= e.confirmAttempts; attempt++ {
		if err := e.sleep(ctx, e.confirmDelay); err != nil {
			return err
		}

		tx, err := e.rpc.GetTransaction(ctx, signature, solana.CommitmentConfirmed)
		if err != nil {
			e.logger.Printf("confirm attempt %d/%d for %s: %v", attempt, e.confirmAttempts, signature, err)
			continue
		}
		if tx == nil {
			continue
		}
		if tx.Meta.Failed() {
			return &LedgerFailureError{Signature: signature, Detail: tx.Meta.Err}
		}
		observability.DefaultMetrics.ConfirmationPolls.Observe(float64(attempt))
		return nil
	}
	observability.DefaultMetrics.ConfirmationTimeout.Inc()
	return &ConfirmationTimeoutError{
		Signature: signature,
		Attempts:  e.confirmAttempts,
		Spacing:   e.confirmDelay,
	}
}
