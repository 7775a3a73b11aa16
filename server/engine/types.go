package engine

type Side string

const (
	Player   Side = "player"
	Opponent Side = "opponent"
)

func (s Side) Other() Side {
	if s == Player {
		return Opponent
	}
	return Player
}

// Effect is the closed set of special behaviours a card can carry.
type Effect string

const (
	Normal    Effect = "normal"
	Defend    Effect = "defend"
	Heal      Effect = "heal"
	RestoreMp Effect = "restore_mp"
)

type Phase string

const (
	Dealing            Phase = "dealing"
	AwaitingSelections Phase = "awaiting_selections"
	Resolving          Phase = "resolving"
	RoundComplete      Phase = "round_complete"
	MatchOver          Phase = "match_over"
)

type Verdict string

const (
	NoVerdict    Verdict = ""
	Draw         Verdict = "draw"
	PlayerWins   Verdict = "player_wins"
	OpponentWins Verdict = "opponent_wins"
)

// Rules holds the tunable design constants of a match.
type Rules struct {
	MaxHp           int
	MaxMp           int
	StartDistance   int
	MpRegenPerRound int
	HealAmount      int
	RestoreMpAmount int
	BlockThreshold  int // Defend blocks damage strictly below this
	HandSize        int
	PlayerName      string
	OpponentName    string
}

func DefaultRules() Rules {
	return Rules{
		MaxHp:           10,
		MaxMp:           10,
		StartDistance:   5,
		MpRegenPerRound: 1,
		HealAmount:      5,
		RestoreMpAmount: 2,
		BlockThreshold:  2,
		HandSize:        3,
		PlayerName:      "Player",
		OpponentName:    "AI",
	}
}

// CombatantView is a read-only copy of a combatant's meters.
type CombatantView struct {
	Name  string `json:"name"`
	Side  Side   `json:"side"`
	Hp    int    `json:"hp"`
	MaxHp int    `json:"max_hp"`
	Mp    int    `json:"mp"`
	MaxMp int    `json:"max_mp"`
}

// Snapshot is the read-only state handed to collaborators after each transition.
type Snapshot struct {
	Round    int           `json:"round"`
	Phase    Phase         `json:"phase"`
	Distance int           `json:"distance"`
	Player   CombatantView `json:"player"`
	Opponent CombatantView `json:"opponent"`
	Verdict  Verdict       `json:"verdict,omitempty"`

	// Generation counts restarts; work from an earlier generation is stale.
	Generation uint64 `json:"generation"`
}

// Hands is one deal: two disjoint hands drawn from the catalog.
type Hands struct {
	Player   []SkillCard `json:"player"`
	Opponent []SkillCard `json:"opponent"`
}
