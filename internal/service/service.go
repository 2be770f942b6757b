package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/escrow"
	"solana-copytrade/internal/mirror"
	"solana-copytrade/internal/observability"
	"solana-copytrade/internal/pnl"
	"solana-copytrade/internal/storage"
)

// Parameter bounds for StartCopyTrade.
const (
	MaxSlippageBound = 50.0  // percent
	StopLossBound    = 100.0 // percent
)

// Confirmation outcome reported to the caller.
const (
	StatusConfirmed = "confirmed"
	// StatusProcessing means the mirrored trade was submitted but not
	// observed within the poll budget. It may still land; the caller must
	// not treat this as failure.
	StatusProcessing = "processing"
)

// rawUnitsPerToken converts measured raw proceeds to whole tokens for the
// entry price. SPL tokens default to 9 decimals.
const rawUnitsPerToken = 1e9

// Service implements the copy-trading operations on top of the mirror
// engine, the escrow services and the PnL monitor.
type Service struct {
	trades    storage.CopyTradeStore
	lockStore storage.EscrowLockStore
	engine    *mirror.Engine
	locker    *escrow.LockService
	releaser  *escrow.ReleaseService
	positions *pnl.Monitor
	logger    *log.Logger

	aiWallet       string
	lockPeriodDays int
	now            func() time.Time
}

// Options configures a Service.
type Options struct {
	Trades    storage.CopyTradeStore
	LockStore storage.EscrowLockStore
	Engine    *mirror.Engine
	Locker    *escrow.LockService
	Releaser  *escrow.ReleaseService
	Positions *pnl.Monitor
	AIWallet  string
	// LockPeriodDays is the default escrow window for new copy trades,
	// 0 means escrow.DefaultLockPeriodDays.
	LockPeriodDays int
	Logger         *log.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[service] ", log.LstdFlags)
	}
	lockPeriodDays := opts.LockPeriodDays
	if lockPeriodDays <= 0 {
		lockPeriodDays = escrow.DefaultLockPeriodDays
	}
	return &Service{
		trades:         opts.Trades,
		lockStore:      opts.LockStore,
		engine:         opts.Engine,
		locker:         opts.Locker,
		releaser:       opts.Releaser,
		positions:      opts.Positions,
		logger:         logger,
		aiWallet:       opts.AIWallet,
		lockPeriodDays: lockPeriodDays,
		now:            time.Now,
	}
}

// StartRequest opens a copy-trading relationship.
type StartRequest struct {
	UserWallet   string
	TraderWallet string
	Allocation   float64 // fraction of the user's trade size, (0, 1]
	MaxSlippage  float64 // percent, (0, 50]
	StopLoss     float64 // percent, [0, 100)
	PeriodDays   int     // lock window, 0 means the 10-day default
}

// StartCopyTrade validates the parameters and creates an active CopyTrade.
// At most one active relationship may exist per (user, trader) pair.
func (s *Service) StartCopyTrade(ctx context.Context, req StartRequest) (*domain.CopyTrade, error) {
	if req.UserWallet == "" {
		return nil, &ValidationError{Field: "userWallet", Reason: "must not be empty"}
	}
	if req.TraderWallet == "" {
		return nil, &ValidationError{Field: "traderWallet", Reason: "must not be empty"}
	}
	if req.UserWallet == req.TraderWallet {
		return nil, &ValidationError{Field: "traderWallet", Reason: "cannot copy your own wallet"}
	}
	if req.Allocation <= 0 || req.Allocation > 1 {
		return nil, &ValidationError{Field: "allocation", Reason: "must be in (0, 1]"}
	}
	if req.MaxSlippage <= 0 || req.MaxSlippage > MaxSlippageBound {
		return nil, &ValidationError{Field: "maxSlippage", Reason: fmt.Sprintf("must be in (0, %v]", MaxSlippageBound)}
	}
	if req.StopLoss < 0 || req.StopLoss >= StopLossBound {
		return nil, &ValidationError{Field: "stopLoss", Reason: fmt.Sprintf("must be in [0, %v)", StopLossBound)}
	}

	periodDays := req.PeriodDays
	if periodDays == 0 {
		periodDays = s.lockPeriodDays
	}
	if periodDays < 0 {
		return nil, &ValidationError{Field: "periodDays", Reason: "must not be negative"}
	}

	now := s.now().Unix()
	trade := &domain.CopyTrade{
		ID:             uuid.NewString(),
		UserWallet:     req.UserWallet,
		TraderWallet:   req.TraderWallet,
		Allocation:     req.Allocation,
		MaxSlippage:    req.MaxSlippage,
		StopLoss:       req.StopLoss,
		LockPeriodDays: periodDays,
		Status:         domain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.trades.Insert(ctx, trade); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, &ConflictError{Message: fmt.Sprintf(
				"already copying %s from %s", req.TraderWallet, req.UserWallet)}
		}
		return nil, fmt.Errorf("start copy trade: %w", err)
	}

	s.logger.Printf("copy trade %s started: %s copies %s at %.2f allocation",
		trade.ID, req.UserWallet, req.TraderWallet, req.Allocation)
	return trade, nil
}

// ConfirmRequest carries a user-confirmed mirror: the user already traded
// and asks the custodial wallet to follow.
type ConfirmRequest struct {
	UserWallet    string
	TraderWallet  string
	UserSignature string
	InputMint     string
	OutputMint    string
	UserAmount    float64
}

// ConfirmResponse reports the mirrored execution. LockID and EscrowAddress
// are zero when the trade finished in the degraded state or is still
// processing.
type ConfirmResponse struct {
	CopyTradeID      string
	AITradeSignature string
	LockID           uint64
	EscrowAddress    string
	Status           string
	Warning          *DegradedStateWarning
}

// ConfirmMirrorTrade validates the user's transaction, executes the
// proportional mirror, locks the measured proceeds and records everything
// on the CopyTrade.
//
// A confirmation timeout is not a failure: the response carries
// StatusProcessing and the submitted signature. A failed escrow lock after
// a confirmed mirror is returned as a DegradedStateWarning on a successful
// response; funds moved, nothing rolls back.
func (s *Service) ConfirmMirrorTrade(ctx context.Context, req ConfirmRequest) (*ConfirmResponse, error) {
	if req.UserSignature == "" {
		return nil, &ValidationError{Field: "userSignature", Reason: "must not be empty"}
	}
	if req.UserAmount <= 0 {
		return nil, &ValidationError{Field: "userAmount", Reason: "must be positive"}
	}
	if req.InputMint == "" || req.OutputMint == "" {
		return nil, &ValidationError{Field: "tokenPair", Reason: "both mints are required"}
	}

	trade, err := s.trades.GetActiveByPair(ctx, req.UserWallet, req.TraderWallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "active copy trade", ID: req.UserWallet + "/" + req.TraderWallet}
		}
		return nil, fmt.Errorf("look up copy trade: %w", err)
	}

	// A mirror already ran for this trade. Re-delivering the signature that
	// produced it returns the recorded outcome; a different signature cannot
	// spend from the custodial wallet a second time.
	if trade.AITradeSignature != "" {
		if trade.UserTradeSignature == req.UserSignature {
			return recordedResponse(trade), nil
		}
		return nil, &ConflictError{Message: fmt.Sprintf(
			"copy trade %s already executed mirror %s", trade.ID, trade.AITradeSignature)}
	}

	result, err := s.engine.Execute(ctx, mirror.Request{
		UserWallet:    req.UserWallet,
		UserSignature: req.UserSignature,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
		UserAmount:    req.UserAmount,
		Allocation:    trade.Allocation,
		MaxSlippage:   trade.MaxSlippage,
	})
	if err != nil {
		var timeout *mirror.ConfirmationTimeoutError
		if errors.As(err, &timeout) {
			// The trade was submitted. Record both signatures so manual
			// reconciliation can find it, and report processing.
			trade.UserTradeSignature = req.UserSignature
			trade.AITradeSignature = timeout.Signature
			trade.TokenMint = req.OutputMint
			trade.UpdatedAt = s.now().Unix()
			if updErr := s.trades.UpdateExecution(ctx, trade); updErr != nil {
				s.logger.Printf("trade %s: record processing state: %v", trade.ID, updErr)
			}
			observability.RecordMirror(StatusProcessing)
			return &ConfirmResponse{
				CopyTradeID:      trade.ID,
				AITradeSignature: timeout.Signature,
				Status:           StatusProcessing,
			}, nil
		}
		if errors.Is(err, mirror.ErrUserTradeNotFound) {
			return nil, &NotFoundError{Resource: "user transaction", ID: req.UserSignature}
		}
		observability.RecordMirror("failed")
		return nil, err
	}

	observability.RecordMirror(StatusConfirmed)
	observability.RecordProceeds(result.Received)

	// Entry price follows the measured proceeds, not the quote.
	entryPrice := 0.0
	if result.Received > 0 {
		entryPrice = result.TargetAmount / (float64(result.Received) / rawUnitsPerToken)
	}

	now := s.now().Unix()
	trade.UserTradeSignature = req.UserSignature
	trade.AITradeSignature = result.Signature
	trade.TokenMint = req.OutputMint
	trade.EntryPrice = entryPrice
	trade.LockedAmount = result.Received
	trade.UpdatedAt = now

	response := &ConfirmResponse{
		CopyTradeID:      trade.ID,
		AITradeSignature: result.Signature,
		Status:           StatusConfirmed,
	}

	lock, lockErr := s.locker.Lock(ctx, escrow.LockRequest{
		CopyTradeID: trade.ID,
		UserWallet:  req.UserWallet,
		AIWallet:    s.aiWallet,
		TokenMint:   req.OutputMint,
		Amount:      result.Received,
		PeriodDays:  trade.LockPeriodDays,
	})
	if lockErr != nil {
		observability.RecordDegradedLock()
		s.logger.Printf("trade %s: escrow lock failed, proceeding unlocked: %v", trade.ID, lockErr)
		response.Warning = &DegradedStateWarning{Reason: lockErr.Error()}
	} else {
		observability.RecordLockCreated()
		trade.LockID = lock.LockID
		trade.EscrowAddress = lock.EscrowAddress
		trade.StartDate = lock.CreatedAt
		trade.EndDate = lock.UnlockTime
		response.LockID = lock.LockID
		response.EscrowAddress = lock.EscrowAddress
	}

	if err := s.trades.UpdateExecution(ctx, trade); err != nil {
		return nil, fmt.Errorf("record execution for trade %s: %w", trade.ID, err)
	}
	return response, nil
}

// recordedResponse rebuilds the confirm outcome from a trade whose
// execution is already on record. Zero measured proceeds mean the original
// confirm timed out and is still reconciling.
func recordedResponse(trade *domain.CopyTrade) *ConfirmResponse {
	status := StatusProcessing
	if trade.LockedAmount > 0 {
		status = StatusConfirmed
	}
	return &ConfirmResponse{
		CopyTradeID:      trade.ID,
		AITradeSignature: trade.AITradeSignature,
		LockID:           trade.LockID,
		EscrowAddress:    trade.EscrowAddress,
		Status:           status,
	}
}

// OrderRequest asks for an unsigned mirror order the client signs itself.
type OrderRequest struct {
	CopyTradeID string
	UserWallet  string
	InputMint   string
	OutputMint  string
	Amount      float64 // the user's intended trade size
}

// UnsignedOrder is a mirror order scaled by the trade's allocation. The
// client signs Payload and submits it through the aggregator.
type UnsignedOrder struct {
	Wallet      string  `json:"wallet"`
	InputMint   string  `json:"inputMint"`
	OutputMint  string  `json:"outputMint"`
	Amount      float64 `json:"amount"`
	SlippageBps int     `json:"slippageBps"`
	CreatedAt   int64   `json:"createdAt"`
	Payload     string  `json:"payload"` // base64, sign and submit as-is
}

// ExecuteMirrorOrder builds the unsigned transaction payload for a mirror
// sized by the trade's allocation. Nothing is submitted and no state
// changes.
func (s *Service) ExecuteMirrorOrder(ctx context.Context, req OrderRequest) (*UnsignedOrder, error) {
	if req.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if req.InputMint == "" || req.OutputMint == "" {
		return nil, &ValidationError{Field: "tokenPair", Reason: "both mints are required"}
	}

	trade, err := s.getOwnedTrade(ctx, req.CopyTradeID, req.UserWallet)
	if err != nil {
		return nil, err
	}
	if trade.Status != domain.StatusActive {
		return nil, &ConflictError{Message: fmt.Sprintf("copy trade %s is %s", trade.ID, trade.Status)}
	}

	order := &UnsignedOrder{
		Wallet:      req.UserWallet,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount * trade.Allocation,
		SlippageBps: int(trade.MaxSlippage * 100),
		CreatedAt:   s.now().Unix(),
	}

	raw, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order payload: %w", err)
	}
	order.Payload = base64.StdEncoding.EncodeToString(raw)
	return order, nil
}

// ListCopyTrades returns all of a user's copy trades, newest first.
func (s *Service) ListCopyTrades(ctx context.Context, userWallet string) ([]*domain.CopyTrade, error) {
	if userWallet == "" {
		return nil, &ValidationError{Field: "userWallet", Reason: "must not be empty"}
	}
	trades, err := s.trades.GetByUserWallet(ctx, userWallet)
	if err != nil {
		return nil, fmt.Errorf("list copy trades: %w", err)
	}
	return trades, nil
}

// MonitorCopyTrade reports the live state of a trade: both positions, the
// PnL comparison and the lock state. Reading an expired active trade
// completes it.
func (s *Service) MonitorCopyTrade(ctx context.Context, tradeID, userWallet string) (*pnl.Report, error) {
	report, err := s.positions.Monitor(ctx, tradeID, userWallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "copy trade", ID: tradeID}
		}
		return nil, err
	}
	return report, nil
}

// ReleaseEscrow returns the vault's funds to the custodial wallet once the
// lock window has elapsed. Before then it fails with StillLockedError.
func (s *Service) ReleaseEscrow(ctx context.Context, userWallet, copyTradeID string) (string, error) {
	trade, err := s.getOwnedTrade(ctx, copyTradeID, userWallet)
	if err != nil {
		return "", err
	}

	lock, err := s.lockStore.GetByCopyTradeID(ctx, trade.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", &NotFoundError{Resource: "escrow lock", ID: copyTradeID}
		}
		return "", fmt.Errorf("look up escrow lock: %w", err)
	}

	signature, err := s.releaser.Release(ctx, lock.LockID, s.aiWallet)
	if err != nil {
		var stillLocked *escrow.StillLockedError
		if errors.As(err, &stillLocked) {
			observability.RecordReleaseRefused()
		}
		return "", err
	}

	observability.RecordLockReleased()
	s.logger.Printf("trade %s: escrow lock %d released", trade.ID, lock.LockID)
	return signature, nil
}

// getOwnedTrade fetches a trade and checks the caller owns it. Foreign
// trades look identical to missing ones.
func (s *Service) getOwnedTrade(ctx context.Context, tradeID, userWallet string) (*domain.CopyTrade, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "copy trade", ID: tradeID}
		}
		return nil, fmt.Errorf("look up copy trade: %w", err)
	}
	if trade.UserWallet != userWallet {
		return nil, &NotFoundError{Resource: "copy trade", ID: tradeID}
	}
	return trade, nil
}
