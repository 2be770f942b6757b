package escrow

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// vaultSeedPrefix namespaces vault derivation against other derived
// addresses in the same keyspace.
const vaultSeedPrefix = "token_lock"

// ErrNoVaultAddress is returned when no bump in [0, 255] yields an
// off-curve point. Probability is negligible for real inputs.
var ErrNoVaultAddress = errors.New("no valid vault address for seed tuple")

// DeriveVaultAddress computes the escrow vault address for a lock. It is a
// pure function of its inputs: any party holding the same tuple re-derives
// the same address, so the release path needs no side-channel lookup.
//
// The address must not lie on the ed25519 curve, so no private key can ever
// sign for it. Bumps are searched in ascending order and the first off-curve
// candidate wins.
func DeriveVaultAddress(userWallet, tokenMint string, lockID uint64) (string, error) {
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], lockID)

	for bump := 0; bump <= 255; bump++ {
		h := sha256.New()
		h.Write([]byte(vaultSeedPrefix))
		h.Write([]byte(userWallet))
		h.Write([]byte(tokenMint))
		h.Write(idBuf[:])
		h.Write([]byte{byte(bump)})
		candidate := h.Sum(nil)

		if !onCurve(candidate) {
			return base58.Encode(candidate), nil
		}
	}
	return "", ErrNoVaultAddress
}

// onCurve reports whether b decodes to a valid ed25519 curve point.
func onCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

var lastLockID atomic.Uint64

// NextLockID returns a time-derived lock id, strictly increasing within the
// process even when the clock reads the same millisecond twice.
func NextLockID() uint64 {
	for {
		now := uint64(time.Now().UnixMilli())
		last := lastLockID.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if lastLockID.CompareAndSwap(last, next) {
			return next
		}
	}
}
