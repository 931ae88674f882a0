package gamification

// Mission is a suggested next action shown to the applicant. Missions unlock
// monotonically by level: reaching a higher level never takes a mission away.
type Mission struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Tier          int        `json:"tier"`
	RequiredLevel int        `json:"required_level"`
	Action        ActionType `json:"action"`
	Completed     bool       `json:"completed"`
}

var missionCatalog = []Mission{
	{
		ID:            "first-consent",
		Title:         "Share Your Story",
		Description:   "Consent to sharing one alternative data source",
		Tier:          1,
		RequiredLevel: 1,
		Action:        ActionConsent,
	},
	{
		ID:            "first-payment",
		Title:         "Pay It On Time",
		Description:   "Record an on-time bill payment",
		Tier:          1,
		RequiredLevel: 1,
		Action:        ActionOnTimePayment,
	},
	{
		ID:            "learn-basics",
		Title:         "Money Basics",
		Description:   "Complete a financial literacy module",
		Tier:          2,
		RequiredLevel: 2,
		Action:        ActionLiteracy,
	},
	{
		ID:            "get-endorsed",
		Title:         "Community Voice",
		Description:   "Earn an endorsement from a community member",
		Tier:          2,
		RequiredLevel: 2,
		Action:        ActionEndorsement,
	},
	{
		ID:            "payment-streak",
		Title:         "Streak Keeper",
		Description:   "Record three on-time payments",
		Tier:          3,
		RequiredLevel: 3,
		Action:        ActionOnTimePayment,
	},
	{
		ID:            "network-builder",
		Title:         "Network Builder",
		Description:   "Collect three community endorsements",
		Tier:          3,
		RequiredLevel: 3,
		Action:        ActionEndorsement,
	},
}

// missionRequiredCount maps streak-style missions to the number of actions
// needed; everything else completes on the first action of its type.
var missionRequiredCount = map[string]int{
	"payment-streak":  3,
	"network-builder": 3,
}

// missionsFor returns the missions visible at the applicant's level with
// completion derived from action counts.
func missionsFor(st *State) []Mission {
	var out []Mission
	for _, m := range missionCatalog {
		if st.Level < m.RequiredLevel {
			continue
		}
		need := missionRequiredCount[m.ID]
		if need == 0 {
			need = 1
		}
		m.Completed = st.ActionCounts[m.Action] >= need
		out = append(out, m)
	}
	return out
}
