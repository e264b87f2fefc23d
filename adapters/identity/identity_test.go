package identity

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

func strPtr(s string) *string { return &s }

// storeContract runs the same expectations against every IdentityStore.
// newAddress must return an address no previous call returned.
func storeContract(t *testing.T, store ports.IdentityStore, newAddress func() string) {
	ctx := context.Background()

	t.Run("find missing returns nil", func(t *testing.T) {
		identity, err := store.FindByAddress(ctx, newAddress())
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("create then find ignores case", func(t *testing.T) {
		address := newAddress()
		created := &core.Identity{Address: address, DisplayName: "alice"}
		require.NoError(t, store.Create(ctx, created))
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := store.FindByAddress(ctx, "0x"+lowerHex(address))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "alice", found.DisplayName)
	})

	t.Run("duplicate address in other case is rejected", func(t *testing.T) {
		address := newAddress()
		require.NoError(t, store.Create(ctx, &core.Identity{Address: address, DisplayName: "a"}))

		err := store.Create(ctx, &core.Identity{Address: "0x" + lowerHex(address), DisplayName: "b"})
		assert.ErrorIs(t, err, core.ErrIdentityExists)

		found, err := store.FindByAddress(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, "a", found.DisplayName)
	})

	t.Run("concurrent creates have one winner", func(t *testing.T) {
		address := newAddress()
		var wins, conflicts int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.Create(ctx, &core.Identity{Address: address, DisplayName: fmt.Sprint(i)})
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case assert.ErrorIs(t, err, core.ErrIdentityExists):
					atomic.AddInt32(&conflicts, 1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
		assert.Equal(t, int32(7), conflicts)
	})

	t.Run("update applies set fields only", func(t *testing.T) {
		address := newAddress()
		require.NoError(t, store.Create(ctx, &core.Identity{Address: address, DisplayName: "before", Bio: "keep"}))

		updated, err := store.Update(ctx, address, core.Profile{
			DisplayName: strPtr("after"),
			Email:       strPtr("a@example.com"),
		})
		require.NoError(t, err)
		assert.Equal(t, "after", updated.DisplayName)
		assert.Equal(t, "a@example.com", updated.Email)
		assert.Equal(t, "keep", updated.Bio)
		assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
	})

	t.Run("update unknown", func(t *testing.T) {
		_, err := store.Update(ctx, newAddress(), core.Profile{DisplayName: strPtr("x")})
		assert.ErrorIs(t, err, core.ErrIdentityNotFound)
	})
}

func lowerHex(address string) string {
	out := []byte(address[2:])
	for i, c := range out {
		if c >= 'A' && c <= 'F' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}

func addressSequence(seed int64) func() string {
	var n int64
	return func() string {
		n++
		return fmt.Sprintf("0xABCDEF%034X", seed*1_000_000+n)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	storeContract(t, store, addressSequence(1))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FindByAddress(ctx, "0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}

// TestPostgresStore runs against a real database when SIGNON_TEST_DATABASE_URL is set
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SIGNON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SIGNON_TEST_DATABASE_URL not set")
	}

	require.NoError(t, Migrate(dsn))
	pool, err := NewPool(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storeContract(t, NewPostgresStore(pool), addressSequence(time.Now().UnixNano()%1_000_000))
}

func TestPgx5DSN(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h/db", pgx5DSN("postgres://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", pgx5DSN("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", pgx5DSN("pgx5://u:p@h/db"))
}
