package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// DestinationStore implements storage.DestinationStore using PostgreSQL.
type DestinationStore struct {
	pool *Pool
}

// NewDestinationStore creates a new DestinationStore.
func NewDestinationStore(pool *Pool) *DestinationStore {
	return &DestinationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DestinationStore = (*DestinationStore)(nil)

// Insert adds a new rule. Returns ErrDuplicateKey if the id exists and
// ErrInvalidInput if the rule fails validation.
func (s *DestinationStore) Insert(ctx context.Context, r *domain.DestinationRule) error {
	if r == nil || r.ID == 0 {
		return storage.ErrInvalidInput
	}
	if err := r.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO destination_rules (
			id, user_id, destination_id, price_min, price_max, supply_min, supply_max
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.UserID, r.DestinationID,
		r.PriceMin, r.PriceMax, r.SupplyMin, r.SupplyMax,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert destination rule: %w", err)
	}
	return nil
}

// ListForUser retrieves all rules of a user, ordered by id ASC.
func (s *DestinationStore) ListForUser(ctx context.Context, userID int64) ([]*domain.DestinationRule, error) {
	query := `
		SELECT id, user_id, destination_id, price_min, price_max, supply_min, supply_max
		FROM destination_rules
		WHERE user_id = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list destination rules for user: %w", err)
	}
	defer rows.Close()

	var result []*domain.DestinationRule
	for rows.Next() {
		r, err := scanDestinationRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan destination rule: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destination rules: %w", err)
	}
	return result, nil
}

// Delete removes a rule. Returns ErrNotFound if not exists.
func (s *DestinationStore) Delete(ctx context.Context, ruleID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM destination_rules WHERE id = $1`, ruleID)
	if err != nil {
		return fmt.Errorf("delete destination rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanDestinationRule(row pgx.Row) (*domain.DestinationRule, error) {
	r := &domain.DestinationRule{}
	err := row.Scan(
		&r.ID, &r.UserID, &r.DestinationID,
		&r.PriceMin, &r.PriceMax, &r.SupplyMin, &r.SupplyMax,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}
