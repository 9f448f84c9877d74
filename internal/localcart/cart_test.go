package localcart

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopvisit/internal/db"
	"shopvisit/internal/kv"
	"shopvisit/internal/model"
)

func newRedisCart(t *testing.T) *Cart {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(kv.NewRedisStorage(client, "test"), CartKey)
}

func slot(catalogID, date, clock string) model.CandidateSlot {
	return model.CandidateSlot{CatalogID: catalogID, ShopID: "shop-1", Date: date, Time: clock}
}

func TestAddReplacesSameCatalog(t *testing.T) {
	cart := newRedisCart(t)
	ctx := context.Background()

	_, err := cart.Add(ctx, model.LocalCartEntry{Slot: slot("c1", "2026-10-19", "10:00")})
	require.NoError(t, err)
	_, err = cart.Add(ctx, model.LocalCartEntry{Slot: slot("c2", "2026-10-19", "11:00")})
	require.NoError(t, err)
	_, err = cart.Add(ctx, model.LocalCartEntry{Slot: slot("c1", "2026-10-20", "15:00")})
	require.NoError(t, err)

	entries, err := cart.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]model.LocalCartEntry{}
	for _, e := range entries {
		byID[e.CatalogID] = e
	}
	assert.Equal(t, "2026-10-20", byID["c1"].Slot.Date)
	assert.Equal(t, "15:00", byID["c1"].Slot.Time)
}

func TestAddRequiresCatalog(t *testing.T) {
	cart := newRedisCart(t)
	_, err := cart.Add(context.Background(), model.LocalCartEntry{})
	assert.ErrorIs(t, err, ErrMissingCatalog)
}

func TestRemoveAndClear(t *testing.T) {
	cart := newRedisCart(t)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := cart.Add(ctx, model.LocalCartEntry{Slot: slot(id, "2026-10-19", "10:00")})
		require.NoError(t, err)
	}

	require.NoError(t, cart.Remove(ctx, "c2"))
	require.NoError(t, cart.Remove(ctx, "missing"))
	entries, err := cart.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, cart.Clear(ctx))
	entries, err = cart.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListOrderedByAddedAt(t *testing.T) {
	cart := newRedisCart(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	_, err := cart.Add(ctx, model.LocalCartEntry{Slot: slot("late", "2026-10-19", "10:00"), AddedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = cart.Add(ctx, model.LocalCartEntry{Slot: slot("early", "2026-10-19", "10:00"), AddedAt: base})
	require.NoError(t, err)

	entries, err := cart.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "early", entries[0].CatalogID)
	assert.Equal(t, "late", entries[1].CatalogID)
}

func TestDrainHidesAndSettleRemoves(t *testing.T) {
	cart := newRedisCart(t)
	ctx := context.Background()

	_, err := cart.Add(ctx, model.LocalCartEntry{Slot: slot("c1", "2026-10-19", "10:00")})
	require.NoError(t, err)
	_, err = cart.Add(ctx, model.LocalCartEntry{Slot: slot("c2", "2026-10-19", "11:00")})
	require.NoError(t, err)

	batch, err := cart.Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Entries, 2)
	assert.Equal(t, CartKey, batch.Key)

	// A concurrent reader sees nothing while the batch is out.
	second, err := cart.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Entries)
	listed, err := cart.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Re-selected while merging: survives the settle.
	_, err = cart.Add(ctx, model.LocalCartEntry{
		Slot:    slot("c2", "2026-10-21", "12:00"),
		AddedAt: time.Now().Add(time.Minute).UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, cart.Settle(ctx, batch))
	listed, err = cart.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "2026-10-21", listed[0].Slot.Date)
}

func TestReleaseRestoresDrainedEntries(t *testing.T) {
	cart := newRedisCart(t)
	ctx := context.Background()

	_, err := cart.Add(ctx, model.LocalCartEntry{Slot: slot("c1", "2026-10-19", "10:00")})
	require.NoError(t, err)

	batch, err := cart.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Entries, 1)

	cart.Release(batch)
	cart.Release(nil)

	listed, err := cart.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "c1", listed[0].CatalogID)

	again, err := cart.Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Entries, 1)
}

func TestSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	ctx := context.Background()

	database, err := db.NewDB(path)
	require.NoError(t, err)
	_, err = New(database, InquiriesKey).Add(ctx, model.LocalCartEntry{Slot: slot("c9", "2026-10-19", "10:00")})
	require.NoError(t, err)
	require.NoError(t, database.Close())

	reopened, err := db.NewDB(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := New(reopened, InquiriesKey).List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c9", entries[0].CatalogID)

	other, err := New(reopened, CartKey).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)
}
