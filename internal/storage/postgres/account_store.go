package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Insert adds a new account. Returns ErrDuplicateKey if the id exists.
func (s *AccountStore) Insert(ctx context.Context, a *domain.AccountSnapshot) error {
	if a == nil || a.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO accounts (id, user_id, credentials, premium, balance)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, a.ID, a.UserID, a.Credentials, a.Premium, a.Balance)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
func (s *AccountStore) GetByID(ctx context.Context, accountID int64) (*domain.AccountSnapshot, error) {
	query := `
		SELECT id, user_id, credentials, premium, balance
		FROM accounts
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, accountID)
	a, err := scanAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// ListForUser retrieves all accounts of a user, ordered by id ASC.
func (s *AccountStore) ListForUser(ctx context.Context, userID int64) ([]*domain.AccountSnapshot, error) {
	query := `
		SELECT id, user_id, credentials, premium, balance
		FROM accounts
		WHERE user_id = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for user: %w", err)
	}
	defer rows.Close()

	var result []*domain.AccountSnapshot
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return result, nil
}

func scanAccount(row pgx.Row) (*domain.AccountSnapshot, error) {
	a := &domain.AccountSnapshot{}
	err := row.Scan(&a.ID, &a.UserID, &a.Credentials, &a.Premium, &a.Balance)
	if err != nil {
		return nil, err
	}
	return a, nil
}
