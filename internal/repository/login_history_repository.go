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
)

// loginHistoryRepository implements LoginHistoryRepository interface
type loginHistoryRepository struct {
	db *database.Postgres
}

// NewLoginHistoryRepository creates a new login history repository
func NewLoginHistoryRepository(db *database.Postgres) LoginHistoryRepository {
	return &loginHistoryRepository{db: db}
}

// Create appends one audit row. Rows are never updated or deleted.
func (r *loginHistoryRepository) Create(ctx context.Context, entry *domain.LoginHistoryEntry) error {
	query := `
		INSERT INTO login_history (id, user_id, ip_address, user_agent, method, success, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.IPAddress,
		entry.UserAgent,
		entry.Method,
		entry.Success,
		entry.Reason,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create login history entry: %w", err)
	}

	return nil
}

// CountFailedSince counts failed attempts for a user after the given instant
func (r *loginHistoryRepository) CountFailedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM login_history
		WHERE user_id = $1 AND success = false AND created_at >= $2
	`

	var count int
	err := r.db.DB.QueryRowContext(ctx, query, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", err)
	}

	return count, nil
}

// LastSuccessful returns the most recent successful login for a user
func (r *loginHistoryRepository) LastSuccessful(ctx context.Context, userID string) (*domain.LoginHistoryEntry, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, method, success, reason, created_at
		FROM login_history
		WHERE user_id = $1 AND success = true
		ORDER BY created_at DESC
		LIMIT 1
	`

	entry, err := scanLoginHistoryRow(r.db.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no successful login for user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get last successful login: %w", err)
	}

	return entry, nil
}

// MethodStats aggregates successful logins per method
func (r *loginHistoryRepository) MethodStats(ctx context.Context, userID string) ([]*domain.LoginMethodStat, error) {
	query := `
		SELECT method, COUNT(*), MAX(created_at)
		FROM login_history
		WHERE user_id = $1 AND success = true
		GROUP BY method
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get login method stats: %w", err)
	}
	defer rows.Close()

	var stats []*domain.LoginMethodStat
	for rows.Next() {
		stat := &domain.LoginMethodStat{}
		var lastUsed sql.NullTime

		if err := rows.Scan(&stat.Method, &stat.Count, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan login method stat: %w", err)
		}

		if lastUsed.Valid {
			stat.LastUsed = &lastUsed.Time
		}

		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate login method stats: %w", err)
	}

	return stats, nil
}

// ListRecent returns the newest entries for a user, newest first
func (r *loginHistoryRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.LoginHistoryEntry, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, method, success, reason, created_at
		FROM login_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list login history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LoginHistoryEntry
	for rows.Next() {
		entry := &domain.LoginHistoryEntry{}
		var reason sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Method,
			&entry.Success,
			&reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login history entry: %w", err)
		}

		if reason.Valid {
			entry.Reason = &reason.String
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate login history: %w", err)
	}

	return entries, nil
}

func scanLoginHistoryRow(row *sql.Row) (*domain.LoginHistoryEntry, error) {
	entry := &domain.LoginHistoryEntry{}
	var reason sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.IPAddress,
		&entry.UserAgent,
		&entry.Method,
		&entry.Success,
		&reason,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reason.Valid {
		entry.Reason = &reason.String
	}

	return entry, nil
}
