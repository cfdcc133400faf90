package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

func day(d int) domain.Date {
	return domain.Date{Year: 2024, Month: time.May, Day: d}
}

func TestHistoryStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()

	_, err := store.Get(ctx, day(1))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 4, 1)))

	got, err := store.Get(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Percentage)
	assert.Equal(t, int64(1), got.Revision)
}

func TestHistoryStore_UpsertTwiceKeepsSecond(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()

	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 4, 1)))

	second := domain.NewCriticalHistoryEntry(day(1), 10, 3)
	second.Revision = 1
	require.NoError(t, store.Upsert(ctx, second))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].CriticalItems)
	assert.Equal(t, int64(2), all[0].Revision)
}

func TestHistoryStore_StaleRevisionConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()

	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 4, 1)))

	// a writer that has not seen revision 1
	err := store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 4, 2))
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := store.Get(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, got.CriticalItems)
}

func TestHistoryStore_AllSorted(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()

	for _, d := range []int{9, 2, 5} {
		require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(d), 1, 0)))
	}

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(2), all[0].Date)
	assert.Equal(t, day(5), all[1].Date)
	assert.Equal(t, day(9), all[2].Date)
}

func TestHistoryStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 1, 1)))

	require.NoError(t, store.ReplaceAll(ctx, []*domain.CriticalHistoryEntry{
		domain.NewCriticalHistoryEntry(day(3), 2, 1),
	}))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, day(3), all[0].Date)
}

func TestHistoryStore_InvalidInput(t *testing.T) {
	store := NewHistoryStore()
	assert.ErrorIs(t, store.Upsert(context.Background(), nil), storage.ErrInvalidInput)
}

func TestHistoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 4, 1)))

	got, err := store.Get(ctx, day(1))
	require.NoError(t, err)
	got.CriticalItems = 99

	again, err := store.Get(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, again.CriticalItems)
}
