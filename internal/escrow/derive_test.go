package escrow

import (
	"sync"
	"testing"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser = "UserWa11etBase58Addr"
	testMint = "MintBase58Addr"
)

func TestDeriveVaultAddress_Deterministic(t *testing.T) {
	a, err := DeriveVaultAddress(testUser, testMint, 1700000000001)
	require.NoError(t, err)
	b, err := DeriveVaultAddress(testUser, testMint, 1700000000001)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestDeriveVaultAddress_DistinctInputs(t *testing.T) {
	base, err := DeriveVaultAddress(testUser, testMint, 1)
	require.NoError(t, err)

	otherLock, err := DeriveVaultAddress(testUser, testMint, 2)
	require.NoError(t, err)
	otherMint, err := DeriveVaultAddress(testUser, "OtherMint", 1)
	require.NoError(t, err)
	otherUser, err := DeriveVaultAddress("OtherUser", testMint, 1)
	require.NoError(t, err)

	assert.NotEqual(t, base, otherLock)
	assert.NotEqual(t, base, otherMint)
	assert.NotEqual(t, base, otherUser)
}

func TestDeriveVaultAddress_OffCurve(t *testing.T) {
	for lockID := uint64(1); lockID <= 50; lockID++ {
		addr, err := DeriveVaultAddress(testUser, testMint, lockID)
		require.NoError(t, err)

		raw, err := base58.Decode(addr)
		require.NoError(t, err)
		require.Len(t, raw, 32)

		_, err = new(edwards25519.Point).SetBytes(raw)
		assert.Error(t, err, "vault address must not be a valid curve point")
	}
}

func TestNextLockID_StrictlyIncreasing(t *testing.T) {
	prev := NextLockID()
	for i := 0; i < 1000; i++ {
		id := NextLockID()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestNextLockID_ConcurrentUnique(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := NextLockID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}
