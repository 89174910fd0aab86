package models

// PrizeCount is the number of prizes drawn per campaign, one per
// Loteria Federal extraction (1st, 2nd and 3rd prize).
const PrizeCount = 3

// LuckyNumberDigits is the width of every lucky number.
const LuckyNumberDigits = 6

// Participant represents an enrolled student taking part in the campaign.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	GuardianCPF string `json:"guardianCpf"`
}

// LuckyNumber is a 6-digit ticket issued to a participant at re-enrollment.
// Number is always zero padded ("004211").
type LuckyNumber struct {
	Number          string `json:"number"`
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName,omitempty"`
	GuardianCPF     string `json:"guardianCpf,omitempty"`
	Tier            int    `json:"tier,omitempty"` // enrollment lot that issued the number
}

// DrawResult is one official lottery extraction. Only the centena (last
// three digits) takes part in adjudication.
type DrawResult struct {
	Slot     int    `json:"slot"`
	RawValue int    `json:"rawValue"`
	Centena  string `json:"centena"`
}

// DecisionTier names the rule that decided a prize.
type DecisionTier string

const (
	TierExactUnique       DecisionTier = "exact-unique"
	TierExactTiebreak     DecisionTier = "exact-tiebreak"
	TierProximityUnique   DecisionTier = "proximity-unique"
	TierProximityTiebreak DecisionTier = "proximity-tiebreak"
)

// Candidate is a lucky number considered at the deciding tier of a slot.
type Candidate struct {
	Number        string `json:"number"`
	ParticipantID string `json:"participant_id"`
	Centena       string `json:"centena"`
	Difference    int    `json:"difference"`
}

// TiebreakStep records one digit comparison of the tiebreak, Position 1
// being the units digit.
type TiebreakStep struct {
	Position int            `json:"position"`
	Digits   map[string]int `json:"digits"`
	Kept     []string       `json:"kept"`
}

// PrizeAward is the outcome of one slot together with its decision trail.
type PrizeAward struct {
	Slot            int            `json:"slot"`
	DrawValue       int            `json:"draw_value"`
	TargetCentena   string         `json:"target_centena"`
	WinningNumber   string         `json:"winning_number"`
	ParticipantID   string         `json:"participant_id"`
	ParticipantName string         `json:"participant_name,omitempty"`
	DecisionTier    DecisionTier   `json:"decision_tier"`
	CandidateTrail  []Candidate    `json:"candidate_trail"`
	Tiebreak        []TiebreakStep `json:"tiebreak,omitempty"`
	// Excluded holds numbers of earlier winners that would have matched
	// or beaten the winning number.
	Excluded []Candidate `json:"excluded,omitempty"`
}
