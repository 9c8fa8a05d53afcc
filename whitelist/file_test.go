package whitelist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basemint/whitelist-backend/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *FileStore {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "whitelist.json"), testLogger())
	require.NoError(t, err)
	return store
}

func mustWallet(t *testing.T, addr string) interfaces.WalletAddress {
	wallet, err := interfaces.NewWalletAddress(addr)
	require.NoError(t, err)
	return wallet
}

func TestCreateLinkAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Mixed-case input canonicalizes to the same record.
	wallet := mustWallet(t, "0xAbCd111111111111111111111111111111111111")

	record, err := store.CreateLink(ctx, "id-1", "alice", wallet)
	require.NoError(t, err)
	assert.Equal(t, interfaces.IdentityID("id-1"), record.IdentityID)
	assert.Equal(t, "alice", record.Handle)
	assert.Equal(t, wallet, record.Wallet)
	assert.False(t, record.MintClaimed)
	assert.Nil(t, record.MintClaimedAt)
	assert.False(t, record.LinkedAt.IsZero())

	byID, found, err := store.ByIdentity(ctx, "id-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, record, byID)

	lower := mustWallet(t, "0xabcd111111111111111111111111111111111111")
	byWallet, found, err := store.ByWallet(ctx, lower)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, record, byWallet)

	_, found, err = store.ByIdentity(ctx, "id-unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateLinkIdentityConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := mustWallet(t, "0x1111111111111111111111111111111111111111")
	second := mustWallet(t, "0x2222222222222222222222222222222222222222")

	_, err := store.CreateLink(ctx, "id-1", "alice", first)
	require.NoError(t, err)

	_, err = store.CreateLink(ctx, "id-1", "alice", second)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyLinked)

	var conflict *interfaces.AlreadyLinkedIdentityError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, interfaces.IdentityID("id-1"), conflict.IdentityID)
	assert.Equal(t, first, conflict.Wallet)

	// The stored record is untouched by the failed attempt.
	record, found, err := store.ByIdentity(ctx, "id-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first, record.Wallet)
}

func TestCreateLinkWalletConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wallet := mustWallet(t, "0x1111111111111111111111111111111111111111")

	_, err := store.CreateLink(ctx, "id-1", "alice", wallet)
	require.NoError(t, err)

	_, err = store.CreateLink(ctx, "id-2", "bob", wallet)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyLinked)

	var conflict *interfaces.AlreadyLinkedWalletError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, wallet, conflict.Wallet)
	assert.Equal(t, "alice", conflict.Handle)

	// The exact same pair re-linking is also a conflict, not an upsert.
	_, err = store.CreateLink(ctx, "id-1", "alice", wallet)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyLinked)
}

func TestClaimMintOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wallet := mustWallet(t, "0x1111111111111111111111111111111111111111")
	_, err := store.CreateLink(ctx, "id-1", "alice", wallet)
	require.NoError(t, err)

	record, err := store.ClaimMint(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, record.MintClaimed)
	require.NotNil(t, record.MintClaimedAt)

	_, err = store.ClaimMint(ctx, wallet)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyMinted)

	var alreadyMinted *interfaces.AlreadyMintedError
	require.ErrorAs(t, err, &alreadyMinted)
	assert.Equal(t, "alice", alreadyMinted.Handle)

	// Both indexes observe the claim.
	byID, _, err := store.ByIdentity(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, byID.MintClaimed)
}

func TestClaimMintUnlinkedWallet(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ClaimMint(context.Background(), mustWallet(t, "0x1111111111111111111111111111111111111111"))
	assert.ErrorIs(t, err, interfaces.ErrNotLinked)
}

func TestMarkMintClaimedIsLenient(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wallet := mustWallet(t, "0x1111111111111111111111111111111111111111")
	_, err := store.CreateLink(ctx, "id-1", "alice", wallet)
	require.NoError(t, err)

	require.NoError(t, store.MarkMintClaimed(ctx, wallet))
	require.NoError(t, store.MarkMintClaimed(ctx, wallet))

	record, _, err := store.ByWallet(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, record.MintClaimed)
}

func TestConcurrentClaimMintSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wallet := mustWallet(t, "0x1111111111111111111111111111111111111111")
	_, err := store.CreateLink(ctx, "id-1", "alice", wallet)
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ClaimMint(ctx, wallet)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, interfaces.ErrAlreadyMinted):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestConcurrentCreateLinkSameWallet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wallet := mustWallet(t, "0x1111111111111111111111111111111111111111")

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.CreateLink(ctx, interfaces.IdentityID(string(rune('a'+n))), "user", wallet)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, interfaces.ErrAlreadyLinked)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "whitelist.json")

	store, err := NewFileStore(path, testLogger())
	require.NoError(t, err)

	wallet := mustWallet(t, "0x1111111111111111111111111111111111111111")
	_, err = store.CreateLink(ctx, "id-1", "alice", wallet)
	require.NoError(t, err)
	_, err = store.ClaimMint(ctx, wallet)
	require.NoError(t, err)

	reopened, err := NewFileStore(path, testLogger())
	require.NoError(t, err)

	record, found, err := reopened.ByWallet(ctx, wallet)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, interfaces.IdentityID("id-1"), record.IdentityID)
	assert.True(t, record.MintClaimed)
}

func TestAllOrderedByLinkTime(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	current := base
	store := newTestStore(t).WithClock(func() time.Time {
		current = current.Add(time.Minute)
		return current
	})

	_, err := store.CreateLink(ctx, "id-1", "alice", mustWallet(t, "0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	_, err = store.CreateLink(ctx, "id-2", "bob", mustWallet(t, "0x2222222222222222222222222222222222222222"))
	require.NoError(t, err)
	_, err = store.CreateLink(ctx, "id-3", "carol", mustWallet(t, "0x3333333333333333333333333333333333333333"))
	require.NoError(t, err)

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, interfaces.IdentityID("id-1"), records[0].IdentityID)
	assert.Equal(t, interfaces.IdentityID("id-2"), records[1].IdentityID)
	assert.Equal(t, interfaces.IdentityID("id-3"), records[2].IdentityID)
}

func TestRemoveAndStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := mustWallet(t, "0x1111111111111111111111111111111111111111")
	second := mustWallet(t, "0x2222222222222222222222222222222222222222")

	_, err := store.CreateLink(ctx, "id-1", "alice", first)
	require.NoError(t, err)
	_, err = store.CreateLink(ctx, "id-2", "bob", second)
	require.NoError(t, err)
	_, err = store.ClaimMint(ctx, first)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Stats{TotalLinked: 2, TotalMinted: 1, Remaining: 1}, stats)

	require.NoError(t, store.Remove(ctx, "id-1"))

	// Both indexes release the pair; the wallet can be linked again.
	_, found, err := store.ByWallet(ctx, first)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.CreateLink(ctx, "id-3", "carol", first)
	require.NoError(t, err)

	// Removing an absent identity is a no-op.
	require.NoError(t, store.Remove(ctx, "id-unknown"))
}
