// Package gamification tracks applicant incentives: z-credits earned through
// verified actions, a bounded trust bar, levels, achievements, and missions.
// State is derived by folding an append-only event log per applicant, so a
// rebuild from persisted events always reproduces the same state.
package gamification

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zscore-fintech/zscore-engine/internal/config"
	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
)

// ActionType identifies a credit-earning applicant action.
type ActionType string

const (
	ActionOnTimePayment ActionType = "on_time_payment"
	ActionLiteracy      ActionType = "literacy_module"
	ActionConsent       ActionType = "data_consent"
	ActionEndorsement   ActionType = "endorsement"
)

// Phase describes where an applicant stands on the path to credit access.
type Phase string

const (
	PhaseObscure   Phase = "obscure"
	PhaseBuilding  Phase = "building_trust"
	PhaseGraduated Phase = "graduated"
)

// ActionEvent is one immutable entry in an applicant's event log.
type ActionEvent struct {
	ID          string     `json:"id"`
	ApplicantID string     `json:"applicant_id"`
	Type        ActionType `json:"type"`
	Credits     int64      `json:"credits"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// State is the folded view of an applicant's event log.
type State struct {
	ApplicantID   string             `json:"applicant_id"`
	ZCredits      int64              `json:"z_credits"`
	TrustBar      float64            `json:"trust_bar"`
	Level         int                `json:"level"`
	LevelName     string             `json:"level_name"`
	NextMilestone float64            `json:"next_milestone"`
	Phase         Phase              `json:"phase"`
	Achievements  []string           `json:"achievements"`
	ActionCounts  map[ActionType]int `json:"action_counts"`
	Missions      []Mission          `json:"missions"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

const maxLevel = 5

var levelNames = map[int]string{
	1: "Building Trust",
	2: "Growing Foundation",
	3: "Steady Progress",
	4: "Strong Credit",
	5: "Credit Elite",
}

// levelFor maps the trust bar onto levels 1..5 in 20-point bands.
func levelFor(bar float64) int {
	lvl := int(bar/20) + 1
	if lvl > maxLevel {
		lvl = maxLevel
	}
	return lvl
}

// nextMilestone returns the trust-bar points remaining to the next level,
// zero at the top.
func nextMilestone(bar float64, lvl int) float64 {
	if lvl >= maxLevel {
		return 0
	}
	gap := float64(lvl*20) - bar
	if gap < 0 {
		gap = 0
	}
	return gap
}

const shardCount = 32

type shard struct {
	mu     sync.Mutex
	states map[string]*State
	logs   map[string][]ActionEvent
}

// Ledger holds per-applicant gamification state behind sharded locks.
// Different applicants never contend on the same mutex unless they hash to
// the same shard.
type Ledger struct {
	cfg    config.GamificationConfig
	shards [shardCount]*shard
	rev    atomic.Uint64
}

// NewLedger returns an empty ledger.
func NewLedger(cfg config.GamificationConfig) *Ledger {
	l := &Ledger{cfg: cfg}
	for i := range l.shards {
		l.shards[i] = &shard{
			states: make(map[string]*State),
			logs:   make(map[string][]ActionEvent),
		}
	}
	return l
}

func (l *Ledger) shardFor(applicantID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(applicantID))
	return l.shards[h.Sum32()%shardCount]
}

// RewardFor returns the configured credit reward for an action type.
func (l *Ledger) RewardFor(t ActionType) (int64, error) {
	switch t {
	case ActionOnTimePayment:
		return l.cfg.OnTimePaymentReward, nil
	case ActionLiteracy:
		return l.cfg.LiteracyReward, nil
	case ActionConsent:
		return l.cfg.ConsentReward, nil
	case ActionEndorsement:
		return l.cfg.EndorsementReward, nil
	default:
		return 0, apperrors.NewValidationError(fmt.Sprintf("unknown action type %q", t))
	}
}

// Record appends an action to the applicant's log and returns the event and
// the updated state. The trust bar update is bounded: it approaches 100
// asymptotically and never exceeds it regardless of credits granted.
func (l *Ledger) Record(applicantID string, action ActionType, at time.Time) (ActionEvent, *State, error) {
	if applicantID == "" {
		return ActionEvent{}, nil, apperrors.NewValidationError("applicant_id is required")
	}
	credits, err := l.RewardFor(action)
	if err != nil {
		return ActionEvent{}, nil, err
	}

	event := ActionEvent{
		ID:          uuid.New().String(),
		ApplicantID: applicantID,
		Type:        action,
		Credits:     credits,
		OccurredAt:  at.UTC(),
	}

	s := l.shardFor(applicantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[applicantID] = append(s.logs[applicantID], event)
	state := l.applyLocked(s, applicantID, event)
	l.rev.Add(1)
	return event, snapshotState(state), nil
}

// Revision increments on every mutation. Consumers that cache derived views
// (assessment responses, leaderboards) key on it to observe ledger changes.
func (l *Ledger) Revision() uint64 {
	return l.rev.Load()
}

// Rehydrate replays persisted events into the ledger, oldest first. Used at
// startup to rebuild in-memory state from the event table.
func (l *Ledger) Rehydrate(events []ActionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
	for _, ev := range events {
		s := l.shardFor(ev.ApplicantID)
		s.mu.Lock()
		s.logs[ev.ApplicantID] = append(s.logs[ev.ApplicantID], ev)
		l.applyLocked(s, ev.ApplicantID, ev)
		s.mu.Unlock()
	}
	if len(events) > 0 {
		l.rev.Add(1)
	}
}

// State returns the current folded state for an applicant. Unknown
// applicants get a zero-valued starting state.
func (l *Ledger) State(applicantID string) *State {
	s := l.shardFor(applicantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[applicantID]; ok {
		return snapshotState(st)
	}
	return snapshotState(l.newState(applicantID))
}

// Forget drops an applicant's state and event log, for consent withdrawal.
func (l *Ledger) Forget(applicantID string) {
	s := l.shardFor(applicantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, applicantID)
	delete(s.logs, applicantID)
	l.rev.Add(1)
}

// Events returns a copy of the applicant's event log in append order.
func (l *Ledger) Events(applicantID string) []ActionEvent {
	s := l.shardFor(applicantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActionEvent(nil), s.logs[applicantID]...)
}

func (l *Ledger) newState(applicantID string) *State {
	st := &State{
		ApplicantID:   applicantID,
		Level:         1,
		LevelName:     levelNames[1],
		NextMilestone: nextMilestone(0, 1),
		Phase:         PhaseObscure,
		ActionCounts:  make(map[ActionType]int),
	}
	st.Missions = missionsFor(st)
	return st
}

func (l *Ledger) applyLocked(s *shard, applicantID string, ev ActionEvent) *State {
	st, ok := s.states[applicantID]
	if !ok {
		st = l.newState(applicantID)
		s.states[applicantID] = st
	}

	st.ZCredits += ev.Credits
	st.TrustBar = advanceTrustBar(st.TrustBar, ev.Credits, l.cfg.DampingK)
	st.ActionCounts[ev.Type]++
	st.UpdatedAt = ev.OccurredAt

	st.Level = levelFor(st.TrustBar)
	st.LevelName = levelNames[st.Level]
	st.NextMilestone = nextMilestone(st.TrustBar, st.Level)

	switch {
	case st.TrustBar >= l.cfg.GraduationBar:
		st.Phase = PhaseGraduated
	case st.TrustBar > 0:
		st.Phase = PhaseBuilding
	default:
		st.Phase = PhaseObscure
	}

	st.Achievements = achievementsFor(st)
	st.Missions = missionsFor(st)
	return st
}

// advanceTrustBar applies the damped update: the remaining gap to 100 decays
// exponentially in granted credits. Monotone non-decreasing, exactly
// unchanged for zero credits, and bounded above by 100 for any input.
func advanceTrustBar(bar float64, credits int64, k float64) float64 {
	if credits <= 0 {
		return bar
	}
	next := 100 - (100-bar)*math.Exp(-k*float64(credits)/100)
	if next > 100 {
		next = 100
	}
	if next < bar {
		next = bar
	}
	return next
}

func achievementsFor(st *State) []string {
	var out []string
	if st.TrustBar >= 30 {
		out = append(out, "trust_spark")
	}
	if st.TrustBar >= 70 {
		out = append(out, "trust_builder")
	}
	if st.TrustBar >= 90 {
		out = append(out, "trust_champion")
	}
	total := 0
	for _, n := range st.ActionCounts {
		total += n
	}
	if total >= 1 {
		out = append(out, "first_step")
	}
	if total >= 3 {
		out = append(out, "on_a_roll")
	}
	if total >= 5 {
		out = append(out, "habit_formed")
	}
	return out
}

func snapshotState(st *State) *State {
	cp := *st
	cp.ActionCounts = make(map[ActionType]int, len(st.ActionCounts))
	for k, v := range st.ActionCounts {
		cp.ActionCounts[k] = v
	}
	cp.Achievements = append([]string(nil), st.Achievements...)
	cp.Missions = append([]Mission(nil), st.Missions...)
	return &cp
}
