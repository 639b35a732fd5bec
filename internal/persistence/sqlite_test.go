package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/core"
	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/service"
)

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	host := hostapi.NewFakeHost()
	host.AddFarm(1, 50_000_00)
	c := core.New(42, host, service.NewInventory(), nil)
	require.NoError(t, c.Credit.RecordEvent(1, credit.PaymentOnTime, 1000, "seed"))

	snap := c.Snapshot()
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
