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

// oauthAccountRepository implements OAuthAccountRepository interface
type oauthAccountRepository struct {
	db *database.Postgres
}

// NewOAuthAccountRepository creates a new OAuth account repository
func NewOAuthAccountRepository(db *database.Postgres) OAuthAccountRepository {
	return &oauthAccountRepository{db: db}
}

// Link inserts a new provider identity or refreshes an existing one.
// The primary flag is computed inside the INSERT (first account for the user
// wins) and is never touched on conflict, so repeated logins cannot reassign
// it. The upsert also makes linking idempotent under concurrent callbacks
// for the same (provider, provider_user_id) pair.
func (r *oauthAccountRepository) Link(ctx context.Context, account *domain.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			NOT EXISTS (SELECT 1 FROM oauth_accounts WHERE user_id = $2),
			$8, $8)
		ON CONFLICT (provider, provider_user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = COALESCE(EXCLUDED.refresh_token, oauth_accounts.refresh_token),
		    token_expires_at = EXCLUDED.token_expires_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, is_primary, created_at
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now()
	err := r.db.DB.QueryRowContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		now,
	).Scan(
		&account.ID,
		&account.UserID,
		&account.IsPrimary,
		&account.CreatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// The partial unique index on (user_id) WHERE is_primary fired:
			// another first link for this user landed concurrently. Retry as
			// an explicitly non-primary account.
			return r.linkNonPrimary(ctx, account)
		}
		return fmt.Errorf("failed to link oauth account: %w", err)
	}

	account.UpdatedAt = now
	return nil
}

func (r *oauthAccountRepository) linkNonPrimary(ctx context.Context, account *domain.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $8)
		ON CONFLICT (provider, provider_user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = COALESCE(EXCLUDED.refresh_token, oauth_accounts.refresh_token),
		    token_expires_at = EXCLUDED.token_expires_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, is_primary, created_at
	`

	now := time.Now()
	err := r.db.DB.QueryRowContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		now,
	).Scan(
		&account.ID,
		&account.UserID,
		&account.IsPrimary,
		&account.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to link oauth account: %w", err)
	}

	account.UpdatedAt = now
	return nil
}

const oauthAccountColumns = `id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at, is_primary, created_at, updated_at`

// GetByProvider retrieves an OAuth account by provider and provider user ID
func (r *oauthAccountRepository) GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.OAuthAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM oauth_accounts WHERE provider = $1 AND provider_user_id = $2`, oauthAccountColumns)

	account := &domain.OAuthAccount{}
	var refreshToken sql.NullString
	var tokenExpiresAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderUserID,
		&account.AccessToken,
		&refreshToken,
		&tokenExpiresAt,
		&account.IsPrimary,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("oauth account not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get oauth account: %w", err)
	}

	if refreshToken.Valid {
		account.RefreshToken = &refreshToken.String
	}
	if tokenExpiresAt.Valid {
		account.TokenExpiresAt = &tokenExpiresAt.Time
	}

	return account, nil
}

// GetByUserID retrieves all OAuth accounts for a user
func (r *oauthAccountRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.OAuthAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM oauth_accounts WHERE user_id = $1 ORDER BY created_at DESC`, oauthAccountColumns)

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth accounts by user id: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.OAuthAccount
	for rows.Next() {
		account := &domain.OAuthAccount{}
		var refreshToken sql.NullString
		var tokenExpiresAt sql.NullTime

		err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Provider,
			&account.ProviderUserID,
			&account.AccessToken,
			&refreshToken,
			&tokenExpiresAt,
			&account.IsPrimary,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oauth account: %w", err)
		}

		if refreshToken.Valid {
			account.RefreshToken = &refreshToken.String
		}
		if tokenExpiresAt.Valid {
			account.TokenExpiresAt = &tokenExpiresAt.Time
		}

		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate oauth accounts: %w", err)
	}

	return accounts, nil
}

// SetPrimary reassigns the primary flag to the given account. This is the
// only path that moves the flag after the first link, used when a user
// explicitly picks a default login method.
func (r *oauthAccountRepository) SetPrimary(ctx context.Context, userID, accountID string) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE oauth_accounts SET is_primary = false, updated_at = $2 WHERE user_id = $1 AND is_primary`,
		userID, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to clear primary flag: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE oauth_accounts SET is_primary = true, updated_at = $3 WHERE id = $1 AND user_id = $2`,
		accountID, userID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set primary flag: %w", err)
	}

	if err := checkAffected(result, "oauth account", accountID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes an OAuth account link by ID
func (r *oauthAccountRepository) Delete(ctx context.Context, accountID string) error {
	query := `DELETE FROM oauth_accounts WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete oauth account: %w", err)
	}

	return checkAffected(result, "oauth account", accountID)
}
