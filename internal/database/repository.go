package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/zscore-fintech/zscore-engine/internal/engine"
	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
	"github.com/zscore-fintech/zscore-engine/internal/gamification"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveAssessment persists one assessment as an audit row. The explanation is
// serialized to JSON; a marshal failure drops the explanation rather than
// the row.
func (r *Repository) SaveAssessment(ctx context.Context, a *engine.Assessment, recordVersion int) error {
	stmt, err := r.db.GetPreparedStatement("insert_assessment")
	if err != nil {
		return err
	}

	explanation := ""
	if a.Explanation != nil {
		if data, jsonErr := json.Marshal(a.Explanation); jsonErr == nil {
			explanation = string(data)
		}
	}

	_, err = stmt.ExecContext(ctx,
		a.ID, a.ApplicantID, recordVersion,
		a.Trust.Overall, a.Trust.Behavioral, a.Trust.Social, a.Trust.Digital,
		a.Obscurity.Index,
		a.Prediction.PD, a.Prediction.Lower, a.Prediction.Upper,
		string(a.Decision.Category), a.Decision.Eligible,
		a.Prediction.ModelVersion, a.Prediction.Fallback,
		explanation, a.AssessedAt,
	)
	if err != nil {
		return apperrors.NewStorageError("failed to save assessment", err)
	}

	return nil
}

// ListAssessments returns the most recent assessments for an applicant,
// newest first.
func (r *Repository) ListAssessments(ctx context.Context, applicantID string, limit int) ([]AssessmentSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	stmt, err := r.db.GetPreparedStatement("get_assessments")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, applicantID, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query assessments", err)
	}
	defer rows.Close()

	var out []AssessmentSummary
	for rows.Next() {
		var s AssessmentSummary
		if err := rows.Scan(
			&s.ID, &s.ApplicantID, &s.RecordVersion, &s.OverallTrust,
			&s.ObscurityIndex, &s.PD, &s.CILower, &s.CIUpper, &s.Category,
			&s.CreditEligible, &s.ModelVersion, &s.UsedFallback, &s.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStorageError("failed to scan assessment", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// GetAssessment returns the full audit row for one assessment, including the
// explanation blob. Returns nil without error when the id is unknown.
func (r *Repository) GetAssessment(ctx context.Context, id string) (*AssessmentRow, error) {
	stmt, err := r.db.GetPreparedStatement("get_assessment")
	if err != nil {
		return nil, err
	}

	var row AssessmentRow
	err = stmt.QueryRowContext(ctx, id).Scan(
		&row.ID, &row.ApplicantID, &row.RecordVersion, &row.OverallTrust,
		&row.BehavioralScore, &row.SocialScore, &row.DigitalScore,
		&row.ObscurityIndex, &row.PD, &row.CILower, &row.CIUpper,
		&row.Category, &row.CreditEligible, &row.ModelVersion,
		&row.UsedFallback, &row.Explanation, &row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load assessment", err)
	}
	return &row, nil
}

// AppendEvent persists one gamification event. The table is append-only;
// there is no update path.
func (r *Repository) AppendEvent(ctx context.Context, ev gamification.ActionEvent) error {
	stmt, err := r.db.GetPreparedStatement("insert_event")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, ev.ID, ev.ApplicantID, string(ev.Type), ev.Credits, ev.OccurredAt)
	if err != nil {
		return apperrors.NewStorageError("failed to append event", err)
	}

	return nil
}

// LoadEvents returns every gamification event in occurrence order, for
// rebuilding ledger state at startup.
func (r *Repository) LoadEvents(ctx context.Context) ([]gamification.ActionEvent, error) {
	stmt, err := r.db.GetPreparedStatement("get_events")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query events", err)
	}
	defer rows.Close()

	var out []gamification.ActionEvent
	for rows.Next() {
		var row EventRow
		if err := rows.Scan(&row.ID, &row.ApplicantID, &row.ActionType, &row.Credits, &row.OccurredAt); err != nil {
			return nil, apperrors.NewStorageError("failed to scan event", err)
		}
		out = append(out, gamification.ActionEvent{
			ID:          row.ID,
			ApplicantID: row.ApplicantID,
			Type:        gamification.ActionType(row.ActionType),
			Credits:     row.Credits,
			OccurredAt:  row.OccurredAt,
		})
	}

	return out, rows.Err()
}

// PurgeAssessmentsBefore removes audit rows older than the cutoff. Retention
// is an operator action, not part of the request path.
func (r *Repository) PurgeAssessmentsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to purge assessments", err)
	}
	return res.RowsAffected()
}
