package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	"github.com/zscore-fintech/zscore-engine/internal/database"
	"github.com/zscore-fintech/zscore-engine/internal/gamification"
)

func testLeaderboard(t *testing.T) (*Service, *gamification.Ledger, *database.Repository) {
	t.Helper()
	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger := gamification.NewLedger(config.Default().Gamification)
	return NewService(db, ledger), ledger, database.NewRepository(db)
}

func recordAction(t *testing.T, ledger *gamification.Ledger, repo *database.Repository, applicantID string, action gamification.ActionType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		event, _, err := ledger.Record(applicantID, action, time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, repo.AppendEvent(context.Background(), event))
	}
}

func TestTopRanksByCredits(t *testing.T) {
	svc, ledger, repo := testLeaderboard(t)

	recordAction(t, ledger, repo, "low-earner", gamification.ActionOnTimePayment, 1) // 25
	recordAction(t, ledger, repo, "high-earner", gamification.ActionLiteracy, 3)     // 150
	recordAction(t, ledger, repo, "mid-earner", gamification.ActionEndorsement, 2)   // 80

	resp, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)

	assert.Equal(t, 1, resp.Entries[0].Rank)
	assert.Equal(t, int64(150), resp.Entries[0].ZCredits)
	assert.Equal(t, int64(80), resp.Entries[1].ZCredits)
	assert.Equal(t, int64(25), resp.Entries[2].ZCredits)

	// Level comes from the live ledger state
	assert.Equal(t, 2, resp.Entries[0].Level)
	assert.Equal(t, 1, resp.Entries[2].Level)
}

func TestTopAnonymizesApplicants(t *testing.T) {
	svc, ledger, repo := testLeaderboard(t)
	recordAction(t, ledger, repo, "applicant-secret", gamification.ActionConsent, 1)

	resp, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.NotContains(t, resp.Entries[0].ApplicantHash, "applicant")
	assert.Len(t, resp.Entries[0].ApplicantHash, 12)
}

func TestTopServesFromCache(t *testing.T) {
	svc, ledger, repo := testLeaderboard(t)
	recordAction(t, ledger, repo, "applicant-1", gamification.ActionConsent, 1)

	first, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)

	// New events do not appear until the cache is invalidated
	recordAction(t, ledger, repo, "applicant-2", gamification.ActionConsent, 1)
	second, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)

	svc.cache.Invalidate()
	third, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Total)
}

func TestTopClampsLimit(t *testing.T) {
	svc, _, _ := testLeaderboard(t)

	resp, err := svc.Top(context.Background(), -5)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
}
