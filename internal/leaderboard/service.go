package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zscore-fintech/zscore-engine/internal/database"
	"github.com/zscore-fintech/zscore-engine/internal/gamification"
	"github.com/zscore-fintech/zscore-engine/internal/privacy"
)

// Entry is one anonymized row on the community leaderboard.
type Entry struct {
	Rank          int                `json:"rank"`
	ApplicantHash string             `json:"applicant_hash"`
	ZCredits      int64              `json:"z_credits"`
	Level         int                `json:"level"`
	LevelName     string             `json:"level_name"`
	TrustBar      float64            `json:"trust_bar"`
	Phase         gamification.Phase `json:"phase"`
}

// Response is the payload for leaderboard queries.
type Response struct {
	Entries     []Entry   `json:"entries"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Service ranks applicants by earned z-credits. Identifiers are anonymized
// before they leave the service; the leaderboard is a public surface.
type Service struct {
	db     *database.DB
	ledger *gamification.Ledger
	cache  *LeaderboardCache
}

// NewService creates a new leaderboard service
func NewService(db *database.DB, ledger *gamification.Ledger) *Service {
	return &Service{
		db:     db,
		ledger: ledger,
		cache:  NewLeaderboardCache(15 * time.Minute),
	}
}

// Top returns the highest-credit applicants, serving from cache when fresh.
func (s *Service) Top(ctx context.Context, limit int) (*Response, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	if cached, found := s.cache.GetLeaderboard(limit); found {
		return cached, nil
	}

	resp, err := s.build(ctx, limit)
	if err != nil {
		return nil, err
	}

	s.cache.SetLeaderboard(limit, resp)
	return resp, nil
}

// build ranks applicants from the persisted event log and folds in the
// live ledger state for level and trust bar.
func (s *Service) build(ctx context.Context, limit int) (*Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT applicant_id, SUM(credits) AS total
		FROM gamification_events
		GROUP BY applicant_id
		ORDER BY total DESC, applicant_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var applicantID string
		var credits int64
		if err := rows.Scan(&applicantID, &credits); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}

		st := s.ledger.State(applicantID)
		entries = append(entries, Entry{
			Rank:          len(entries) + 1,
			ApplicantHash: privacy.AnonymizeApplicantID(applicantID),
			ZCredits:      credits,
			Level:         st.Level,
			LevelName:     st.LevelName,
			TrustBar:      st.TrustBar,
			Phase:         st.Phase,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard rows: %w", err)
	}

	return &Response{
		Entries:     entries,
		Total:       len(entries),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// WarmCache precomputes the default leaderboard view.
func (s *Service) WarmCache() {
	if _, err := s.Top(context.Background(), 25); err != nil {
		slog.Error("Failed to warm leaderboard cache", "error", err)
	}
}

// StartAutoRefresh rebuilds the cached leaderboard on an interval until the
// context is cancelled.
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cache.Invalidate()
				s.WarmCache()
			}
		}
	}()
}
