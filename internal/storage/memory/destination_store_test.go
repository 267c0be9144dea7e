package memory

import (
	"context"
	"errors"
	"testing"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

func int64Ptr(v int64) *int64 { return &v }

func TestDestinationStore_InsertAndList(t *testing.T) {
	store := NewDestinationStore()
	ctx := context.Background()

	for _, r := range []*domain.DestinationRule{
		{ID: 2, UserID: 42, DestinationID: -200, PriceMax: int64Ptr(100)},
		{ID: 1, UserID: 42, DestinationID: -100, SupplyMax: int64Ptr(5000)},
		{ID: 3, UserID: 7, DestinationID: -300},
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.ListForUser(ctx, 42)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("Expected ids [1 2], got [%d %d]", got[0].ID, got[1].ID)
	}
}

func TestDestinationStore_RejectsInvalidRule(t *testing.T) {
	store := NewDestinationStore()
	ctx := context.Background()

	// min above max fails validation
	r := &domain.DestinationRule{
		ID: 1, UserID: 42, DestinationID: -100,
		PriceMin: int64Ptr(100), PriceMax: int64Ptr(10),
	}
	err := store.Insert(ctx, r)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestDestinationStore_DuplicateKey(t *testing.T) {
	store := NewDestinationStore()
	ctx := context.Background()

	r := &domain.DestinationRule{ID: 1, UserID: 42, DestinationID: -100}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, r)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestDestinationStore_Delete(t *testing.T) {
	store := NewDestinationStore()
	ctx := context.Background()

	r := &domain.DestinationRule{ID: 1, UserID: 42, DestinationID: -100}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	err := store.Delete(ctx, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	got, _ := store.ListForUser(ctx, 42)
	if len(got) != 0 {
		t.Errorf("Expected empty list after delete, got %d rules", len(got))
	}
}
