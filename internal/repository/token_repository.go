package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/pkg/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// tokenRepository implements TokenRepository over one of the single-use
// token tables. The password-reset and email-verification flows get separate
// instances pointed at their own table; the contract is identical.
type tokenRepository struct {
	db    *database.Postgres
	table string
}

// NewTokenRepository creates a token repository bound to the given table
func NewTokenRepository(db *database.Postgres, table string) TokenRepository {
	return &tokenRepository{db: db, table: table}
}

// Create creates a new single-use token
func (r *tokenRepository) Create(ctx context.Context, token *domain.AuthToken) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, token_hash, kind, target_email, expires_at, consumed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`, r.table)

	if token.ID == "" {
		token.ID = uuid.New().String()
	}

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.Kind,
		token.TargetEmail,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("token with hash already exists: %w", ErrDuplicateToken)
			}
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// GetByHash retrieves a token by its hash
func (r *tokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, token_hash, kind, target_email, expires_at, consumed, created_at
		FROM %s
		WHERE token_hash = $1
	`, r.table)

	token := &domain.AuthToken{}
	var targetEmail sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.Kind,
		&targetEmail,
		&token.ExpiresAt,
		&token.Consumed,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get token by hash: %w", err)
	}

	if targetEmail.Valid {
		token.TargetEmail = &targetEmail.String
	}

	return token, nil
}

// Consume flips consumed=false to true for the token. The WHERE clause makes
// the transition happen at most once; the affected-row count tells the
// caller whether it won the race.
func (r *tokenRepository) Consume(ctx context.Context, tokenHash string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET consumed = true
		WHERE token_hash = $1 AND consumed = false
	`, r.table)

	result, err := r.db.DB.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// DeleteUnconsumed removes all unconsumed tokens of the given kind for a
// user. The password-reset flow calls this after a successful reset so only
// one reset link is ever redeemable.
func (r *tokenRepository) DeleteUnconsumed(ctx context.Context, userID string, kind domain.TokenKind) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND kind = $2 AND consumed = false`, r.table)

	_, err := r.db.DB.ExecContext(ctx, query, userID, kind)
	if err != nil {
		return fmt.Errorf("failed to delete unconsumed tokens: %w", err)
	}

	return nil
}

// DeleteExpired deletes all expired tokens
func (r *tokenRepository) DeleteExpired(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, r.table)

	_, err := r.db.DB.ExecContext(ctx, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return nil
}
