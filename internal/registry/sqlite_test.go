package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raysniper/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "pools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePool(baseMint string) *domain.PoolKeySet {
	return &domain.PoolKeySet{
		ID:            "pool-" + baseMint,
		BaseMint:      baseMint,
		QuoteMint:     "So11111111111111111111111111111111111111112",
		BaseDecimals:  6,
		QuoteDecimals: 9,
		Version:       4,
		MarketID:      "market-" + baseMint,
		MarketVersion: 3,
	}
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pool := samplePool("mintA")
	require.NoError(t, store.Upsert(ctx, pool))

	got, err := store.Get(ctx, "mintA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pool, got)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := samplePool("mintA")
	require.NoError(t, store.Upsert(ctx, first))

	second := samplePool("mintA")
	second.ID = "pool-replacement"
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, "pool-replacement", got.ID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_RejectsEmptyBaseMint(t *testing.T) {
	store := openTestStore(t)

	err := store.Upsert(context.Background(), &domain.PoolKeySet{})
	assert.Error(t, err)
}

func TestSQLiteStore_List(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, samplePool("b")))
	require.NoError(t, store.Upsert(ctx, samplePool("a")))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].BaseMint)
	assert.Equal(t, "b", all[1].BaseMint)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pools.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, samplePool("mintA")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "mintA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mintA", got.BaseMint)
}
