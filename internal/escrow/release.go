package escrow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-copytrade/internal/solana"
	"solana-copytrade/internal/storage"
)

// ReleaseService returns vault funds to a recipient once the lock window
// has elapsed.
type ReleaseService struct {
	rpc    solana.RPCClient
	wallet TokenWallet
	store  storage.EscrowLockStore
	logger *log.Logger

	now func() time.Time

	// One release per vault at a time. The vault address is a pure
	// function of the lock id, so keying by lock id serializes the vault.
	mu     sync.Mutex
	vaults map[uint64]*sync.Mutex
}

// NewReleaseService creates a ReleaseService.
func NewReleaseService(rpc solana.RPCClient, wallet TokenWallet, store storage.EscrowLockStore, logger *log.Logger) *ReleaseService {
	if logger == nil {
		logger = log.New(log.Writer(), "[escrow] ", log.LstdFlags)
	}
	return &ReleaseService{
		rpc:    rpc,
		wallet: wallet,
		store:  store,
		logger: logger,
		now:    time.Now,
		vaults: make(map[uint64]*sync.Mutex),
	}
}

// Release transfers the vault's full token balance to recipient. Before
// unlockTime it fails with StillLockedError and moves nothing. A vault that
// is already empty releases as a no-op success, and a lock already marked
// released returns its recorded signature without a second transfer.
func (s *ReleaseService) Release(ctx context.Context, lockID uint64, recipient string) (string, error) {
	unlock := s.vaultLock(lockID)
	defer unlock()

	lock, err := s.store.GetByLockID(ctx, lockID)
	if err != nil {
		return "", err
	}
	if lock.Released {
		return lock.ReleaseTxSig, nil
	}

	now := s.now().Unix()
	if !lock.Unlocked(now) {
		return "", &StillLockedError{
			LockID:    lockID,
			Remaining: time.Duration(lock.RemainingSeconds(now)) * time.Second,
		}
	}

	balance, err := s.rpc.GetTokenBalance(ctx, lock.EscrowAddress, lock.TokenMint)
	if err != nil {
		return "", fmt.Errorf("vault balance: %w", err)
	}

	var signature string
	if balance > 0 {
		signature, err = s.wallet.Transfer(ctx, TransferRequest{
			From:      lock.EscrowAddress,
			To:        recipient,
			TokenMint: lock.TokenMint,
			Amount:    balance,
		})
		if err != nil {
			return "", fmt.Errorf("release transfer: %w", err)
		}
	}

	if err := s.store.MarkReleased(ctx, lockID, now, signature); err != nil {
		return "", fmt.Errorf("record release for lock %d: %w", lockID, err)
	}

	s.logger.Printf("released %d raw units from %s to %s (lock %d)",
		balance, lock.EscrowAddress, recipient, lockID)
	return signature, nil
}

func (s *ReleaseService) vaultLock(lockID uint64) func() {
	s.mu.Lock()
	m, ok := s.vaults[lockID]
	if !ok {
		m = &sync.Mutex{}
		s.vaults[lockID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
