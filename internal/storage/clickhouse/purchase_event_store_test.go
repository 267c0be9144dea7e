package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

func TestPurchaseEventStore_InsertBulkAndGetByRunID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPurchaseEventStore(conn)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []*domain.PurchaseEvent{
		{RunID: "run-1", UserID: 42, AccountID: 1, DestinationID: -100, OfferID: 20, Price: 50, Supply: 1000, Quantity: 1, PurchasedAt: base.Add(2 * time.Second)},
		{RunID: "run-1", UserID: 42, AccountID: 1, DestinationID: -100, OfferID: 10, Price: 25, Supply: 500, Quantity: 2, PurchasedAt: base},
		{RunID: "run-2", UserID: 42, AccountID: 2, DestinationID: -200, OfferID: 10, Price: 25, Supply: 500, Quantity: 1, PurchasedAt: base},
	}

	err := store.InsertBulk(ctx, events)
	require.NoError(t, err)

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by purchased_at ASC
	assert.Equal(t, int64(10), got[0].OfferID)
	assert.Equal(t, int64(20), got[1].OfferID)
	assert.Equal(t, int64(42), got[0].UserID)
	assert.Equal(t, int64(-100), got[0].DestinationID)
	assert.Equal(t, int64(25), got[0].Price)
	assert.Equal(t, int64(2), got[0].Quantity)
	assert.True(t, got[0].PurchasedAt.Equal(base))
}

func TestPurchaseEventStore_DuplicateInBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPurchaseEventStore(conn)
	ctx := context.Background()

	events := []*domain.PurchaseEvent{
		{RunID: "run-1", UserID: 42, AccountID: 1, OfferID: 10, Price: 25, PurchasedAt: time.Now().UTC()},
		{RunID: "run-1", UserID: 42, AccountID: 1, OfferID: 10, Price: 25, PurchasedAt: time.Now().UTC()},
	}

	err := store.InsertBulk(ctx, events)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
}

func TestPurchaseEventStore_DuplicateAgainstExisting(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPurchaseEventStore(conn)
	ctx := context.Background()

	first := []*domain.PurchaseEvent{
		{RunID: "run-1", UserID: 42, AccountID: 1, OfferID: 10, Price: 25, PurchasedAt: time.Now().UTC()},
	}
	require.NoError(t, store.InsertBulk(ctx, first))

	second := []*domain.PurchaseEvent{
		{RunID: "run-1", UserID: 42, AccountID: 1, OfferID: 10, Price: 25, PurchasedAt: time.Now().UTC()},
	}
	err := store.InsertBulk(ctx, second)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
}

func TestPurchaseEventStore_EmptyBatchIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPurchaseEventStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, nil))

	got, err := store.GetByRunID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
