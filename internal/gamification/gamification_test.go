package gamification

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zscore-fintech/zscore-engine/internal/config"
)

func newTestLedger() *Ledger {
	return NewLedger(config.Default().Gamification)
}

func TestAdvanceTrustBarProperties(t *testing.T) {
	const k = 0.25

	t.Run("zero credits leave the bar unchanged", func(t *testing.T) {
		assert.Equal(t, 42.5, advanceTrustBar(42.5, 0, k))
	})

	t.Run("bar is monotone in credits", func(t *testing.T) {
		prev := 0.0
		for c := int64(10); c <= 1000; c += 10 {
			next := advanceTrustBar(0, c, k)
			assert.Greater(t, next, prev)
			prev = next
		}
	})

	t.Run("bar never exceeds 100", func(t *testing.T) {
		bar := 0.0
		for i := 0; i < 200; i++ {
			bar = advanceTrustBar(bar, 500, k)
			assert.LessOrEqual(t, bar, 100.0)
		}
	})

	t.Run("diminishing returns near the top", func(t *testing.T) {
		lowGain := advanceTrustBar(10, 50, k) - 10
		highGain := advanceTrustBar(90, 50, k) - 90
		assert.Greater(t, lowGain, highGain)
	})
}

func TestRecordAccumulatesState(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	ev, st, err := l.Record("applicant-1", ActionLiteracy, now)
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, int64(50), ev.Credits)
	assert.Equal(t, int64(50), st.ZCredits)
	assert.Greater(t, st.TrustBar, 0.0)
	assert.Equal(t, PhaseBuilding, st.Phase)
	assert.Contains(t, st.Achievements, "first_step")

	_, st, err = l.Record("applicant-1", ActionOnTimePayment, now)
	require.NoError(t, err)
	assert.Equal(t, int64(75), st.ZCredits)
	assert.Equal(t, 1, st.ActionCounts[ActionOnTimePayment])
}

func TestGraduationRequiresSustainedEngagement(t *testing.T) {
	l := newTestLedger()
	now := time.Now()
	bar := config.Default().Gamification.GraduationBar

	_, st, err := l.Record("one-shot", ActionLiteracy, now)
	require.NoError(t, err)
	assert.Less(t, st.TrustBar, bar, "a single action must not graduate an applicant")
	assert.Equal(t, PhaseBuilding, st.Phase)

	actions := 1
	for st.Phase != PhaseGraduated {
		_, st, err = l.Record("one-shot", ActionLiteracy, now)
		require.NoError(t, err)
		actions++
		require.Less(t, actions, 100, "graduation must stay reachable")
	}
	assert.GreaterOrEqual(t, actions, 5, "graduation takes repeated engagement")
}

func TestRecordValidation(t *testing.T) {
	l := newTestLedger()

	_, _, err := l.Record("", ActionConsent, time.Now())
	assert.Error(t, err)

	_, _, err = l.Record("a", ActionType("bribe"), time.Now())
	assert.Error(t, err)
}

func TestLevelProgression(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	st := l.State("fresh")
	assert.Equal(t, 1, st.Level)
	assert.Equal(t, "Building Trust", st.LevelName)

	// literacy modules pay 50 credits each
	var latest *State
	for i := 0; i < 20; i++ {
		_, latest, _ = l.Record("climber", ActionLiteracy, now)
	}
	assert.Equal(t, int64(1000), latest.ZCredits)
	assert.Equal(t, 5, latest.Level)
	assert.Equal(t, "Credit Elite", latest.LevelName)
}

func TestLevelsFollowTrustBar(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	var st *State
	expectAfter := func(total int, wantLevel int, wantName string) {
		t.Helper()
		for i := countActions(st); i < total; i++ {
			var err error
			_, st, err = l.Record("banded", ActionLiteracy, now)
			require.NoError(t, err)
		}
		assert.Equal(t, wantLevel, st.Level)
		assert.Equal(t, wantName, st.LevelName)
		assert.Equal(t, levelFor(st.TrustBar), st.Level)
		if st.Level < maxLevel {
			assert.InDelta(t, float64(st.Level*20)-st.TrustBar, st.NextMilestone, 1e-9)
		} else {
			assert.Zero(t, st.NextMilestone)
		}
	}

	expectAfter(1, 1, "Building Trust")
	expectAfter(4, 2, "Growing Foundation")
	expectAfter(6, 3, "Steady Progress")
	expectAfter(10, 4, "Strong Credit")
	expectAfter(30, 5, "Credit Elite")
}

func countActions(st *State) int {
	if st == nil {
		return 0
	}
	total := 0
	for _, n := range st.ActionCounts {
		total += n
	}
	return total
}

func TestPhaseTransitions(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	assert.Equal(t, PhaseObscure, l.State("nobody").Phase)

	var st *State
	for i := 0; i < 100; i++ {
		_, st, _ = l.Record("grinder", ActionOnTimePayment, now)
		if st.Phase == PhaseGraduated {
			break
		}
	}
	require.NotNil(t, st)
	assert.Equal(t, PhaseGraduated, st.Phase)
	assert.GreaterOrEqual(t, st.TrustBar, config.Default().Gamification.GraduationBar)
}

func TestMissionsUnlockMonotonically(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	visible := func(st *State) map[string]bool {
		out := map[string]bool{}
		for _, m := range st.Missions {
			out[m.ID] = true
		}
		return out
	}

	st := l.State("novice")
	before := visible(st)
	assert.True(t, before["first-consent"])
	assert.False(t, before["learn-basics"], "tier 2 locked at level 1")

	var latest *State
	for i := 0; i < 10; i++ {
		_, latest, _ = l.Record("novice", ActionLiteracy, now)
	}
	after := visible(latest)
	for id := range before {
		assert.True(t, after[id], "leveling up must not remove mission %s", id)
	}
	assert.True(t, after["learn-basics"])
}

func TestMissionCompletion(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	var st *State
	for i := 0; i < 3; i++ {
		_, st, _ = l.Record("streaker", ActionOnTimePayment, now)
	}

	byID := map[string]Mission{}
	for _, m := range st.Missions {
		byID[m.ID] = m
	}
	assert.True(t, byID["first-payment"].Completed)
	if m, ok := byID["payment-streak"]; ok {
		assert.True(t, m.Completed)
	}
}

func TestRehydrateReproducesState(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, _, err := l.Record("replayed", ActionEndorsement, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	want := l.State("replayed")

	fresh := newTestLedger()
	fresh.Rehydrate(l.Events("replayed"))
	got := fresh.State("replayed")

	assert.Equal(t, want.ZCredits, got.ZCredits)
	assert.InDelta(t, want.TrustBar, got.TrustBar, 1e-9)
	assert.Equal(t, want.Level, got.Level)
	assert.Equal(t, want.Phase, got.Phase)
	assert.Equal(t, want.ActionCounts, got.ActionCounts)
}

func TestConcurrentRecordsAreConsistent(t *testing.T) {
	l := newTestLedger()
	const applicants = 8
	const perApplicant = 25

	var wg sync.WaitGroup
	for a := 0; a < applicants; a++ {
		id := fmt.Sprintf("applicant-%d", a)
		for i := 0; i < perApplicant; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := l.Record(id, ActionConsent, time.Now())
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for a := 0; a < applicants; a++ {
		id := fmt.Sprintf("applicant-%d", a)
		st := l.State(id)
		assert.Equal(t, int64(perApplicant*30), st.ZCredits)
		assert.Len(t, l.Events(id), perApplicant)
		assert.LessOrEqual(t, st.TrustBar, 100.0)
	}
}

func TestStateReturnsCopies(t *testing.T) {
	l := newTestLedger()
	_, _, err := l.Record("copied", ActionConsent, time.Now())
	require.NoError(t, err)

	st := l.State("copied")
	st.ZCredits = 999999
	st.ActionCounts[ActionConsent] = 42

	again := l.State("copied")
	assert.Equal(t, int64(30), again.ZCredits)
	assert.Equal(t, 1, again.ActionCounts[ActionConsent])
}
