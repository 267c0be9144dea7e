package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// PurchaseEventStore implements storage.PurchaseEventStore using ClickHouse.
type PurchaseEventStore struct {
	conn *Conn
}

// NewPurchaseEventStore creates a new PurchaseEventStore.
func NewPurchaseEventStore(conn *Conn) *PurchaseEventStore {
	return &PurchaseEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PurchaseEventStore = (*PurchaseEventStore)(nil)

// InsertBulk adds multiple events. Fails the entire batch on any duplicate
// (run_id, account_id, offer_id).
func (s *PurchaseEventStore) InsertBulk(ctx context.Context, events []*domain.PurchaseEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		runID     string
		accountID int64
		offerID   int64
	}
	seen := make(map[key]struct{})
	for _, e := range events {
		if e == nil || e.RunID == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.RunID, e.AccountID, e.OfferID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.RunID, e.AccountID, e.OfferID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO purchase_events (
			run_id, user_id, account_id, destination_id, offer_id, price, supply, quantity, purchased_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.RunID, e.UserID, e.AccountID, e.DestinationID,
			e.OfferID, e.Price, e.Supply, e.Quantity, e.PurchasedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all events of one run, ordered by purchased_at ASC.
func (s *PurchaseEventStore) GetByRunID(ctx context.Context, runID string) ([]*domain.PurchaseEvent, error) {
	query := `
		SELECT run_id, user_id, account_id, destination_id, offer_id, price, supply, quantity, purchased_at
		FROM purchase_events
		WHERE run_id = ?
		ORDER BY purchased_at ASC, offer_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanPurchaseEvents(rows)
}

func (s *PurchaseEventStore) exists(ctx context.Context, runID string, accountID, offerID int64) (bool, error) {
	query := `
		SELECT count() FROM purchase_events
		WHERE run_id = ? AND account_id = ? AND offer_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, accountID, offerID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPurchaseEvents(rows driver.Rows) ([]*domain.PurchaseEvent, error) {
	var result []*domain.PurchaseEvent
	for rows.Next() {
		e := &domain.PurchaseEvent{}
		err := rows.Scan(
			&e.RunID, &e.UserID, &e.AccountID, &e.DestinationID,
			&e.OfferID, &e.Price, &e.Supply, &e.Quantity, &e.PurchasedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan purchase event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase events: %w", err)
	}
	return result, nil
}
