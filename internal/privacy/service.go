package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/zscore-fintech/zscore-engine/internal/database"
	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
)

// PrivacyService handles applicant data retention and erasure. Alternative
// data is consent-based: an applicant can withdraw consent at any time, and
// assessments older than the retention window are purged on a schedule.
type PrivacyService struct {
	db   *database.DB
	repo *database.Repository
}

// NewService creates a new privacy service
func NewService(db *database.DB, repo *database.Repository) *PrivacyService {
	return &PrivacyService{db: db, repo: repo}
}

// AnonymizeApplicantID returns a stable anonymized handle for an applicant,
// safe to expose on public surfaces like the leaderboard.
func AnonymizeApplicantID(applicantID string) string {
	hash := sha256.Sum256([]byte(applicantID))
	return hex.EncodeToString(hash[:])[:12]
}

// DeleteApplicantData removes every stored trace of an applicant: the
// assessment audit trail and the gamification event log.
func (ps *PrivacyService) DeleteApplicantData(ctx context.Context, applicantID string) error {
	slog.Info("Deleting applicant data on consent withdrawal",
		"applicant", AnonymizeApplicantID(applicantID))

	assessResult, err := ps.db.ExecContext(ctx,
		"DELETE FROM assessments WHERE applicant_id = ?", applicantID)
	if err != nil {
		return apperrors.WrapError(err, "failed to delete assessments for %s", AnonymizeApplicantID(applicantID))
	}

	eventResult, err := ps.db.ExecContext(ctx,
		"DELETE FROM gamification_events WHERE applicant_id = ?", applicantID)
	if err != nil {
		return apperrors.WrapError(err, "failed to delete gamification events for %s", AnonymizeApplicantID(applicantID))
	}

	assessments, _ := assessResult.RowsAffected()
	events, _ := eventResult.RowsAffected()
	slog.Info("Applicant data deleted",
		"applicant", AnonymizeApplicantID(applicantID),
		"assessments", assessments,
		"events", events)

	return nil
}

// ScheduleDataCleanup purges assessments older than the retention window.
// Gamification events are kept: they are the applicant's earned credit
// history and only leave through DeleteApplicantData.
func (ps *PrivacyService) ScheduleDataCleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("retention days must be positive, got %d", retentionDays))
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	purged, err := ps.repo.PurgeAssessmentsBefore(ctx, cutoff)
	if err != nil {
		return apperrors.WrapError(err, "failed to purge assessments older than %d days", retentionDays)
	}

	if purged > 0 {
		slog.Info("Purged assessments past retention window",
			"purged", purged,
			"retention_days", retentionDays)
	}
	return nil
}
