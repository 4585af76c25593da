package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/repository"
	"go.uber.org/zap"
)

// auditService implements AuditService. Every login attempt is appended,
// including failures for unknown users (recorded under the sentinel user id
// so attacker behavior stays visible).
type auditService struct {
	history   repository.LoginHistoryRepository
	window    time.Duration
	threshold int
	logger    *zap.Logger
}

// NewAuditService creates a new login audit service
func NewAuditService(history repository.LoginHistoryRepository, window time.Duration, threshold int, logger *zap.Logger) AuditService {
	return &auditService{
		history:   history,
		window:    window,
		threshold: threshold,
		logger:    logger,
	}
}

// Record appends one audit row. A failing append is logged but never fails
// the login it describes.
func (s *auditService) Record(ctx context.Context, userID, ip, userAgent, method string, success bool, reason string) {
	if userID == "" {
		userID = domain.SentinelUserID
	}

	entry := &domain.LoginHistoryEntry{
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Method:    method,
		Success:   success,
	}
	if reason != "" {
		entry.Reason = &reason
	}

	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record login attempt",
			zap.String("user_id", userID),
			zap.String("method", method),
			zap.Bool("success", success),
			zap.Error(err),
		)
	}
}

// IsSuspicious reports whether failed attempts for the user reached the
// threshold inside the trailing window.
func (s *auditService) IsSuspicious(ctx context.Context, userID string) (bool, error) {
	count, err := s.history.CountFailedSince(ctx, userID, time.Now().Add(-s.window))
	if err != nil {
		return false, fmt.Errorf("failed to check suspicious activity: %w", err)
	}

	return count >= s.threshold, nil
}

// LastSuccessfulLogin returns the newest successful entry for the user
func (s *auditService) LastSuccessfulLogin(ctx context.Context, userID string) (*domain.LoginHistoryEntry, error) {
	return s.history.LastSuccessful(ctx, userID)
}

// LoginMethodStats aggregates successful logins per method
func (s *auditService) LoginMethodStats(ctx context.Context, userID string) ([]*domain.LoginMethodStat, error) {
	return s.history.MethodStats(ctx, userID)
}
