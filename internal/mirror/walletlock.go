package mirror

import "sync"

// WalletLocks serializes operations against the same (custodial wallet,
// token mint) pair. The balance snapshots around a mirrored trade are a
// read-modify-read window; two interleaved flows on the same wallet and
// mint would attribute each other's proceeds.
type WalletLocks struct {
	mu    sync.Mutex
	locks map[walletKey]*sync.Mutex
}

type walletKey struct {
	wallet string
	mint   string
}

// NewWalletLocks creates an empty lock set.
func NewWalletLocks() *WalletLocks {
	return &WalletLocks{locks: make(map[walletKey]*sync.Mutex)}
}

// Lock acquires the mutex for (wallet, mint) and returns its unlock func.
func (w *WalletLocks) Lock(wallet, mint string) func() {
	key := walletKey{wallet: wallet, mint: mint}

	w.mu.Lock()
	m, ok := w.locks[key]
	if !ok {
		m = &sync.Mutex{}
		w.locks[key] = m
	}
	w.mu.Unlock()

	m.Lock()
	return m.Unlock
}
