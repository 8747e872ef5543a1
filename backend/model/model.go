package model

// Phase is the lifecycle stage of a room. Item submission happens during
// PhaseWaiting; there is no separate submission phase.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseVoting   Phase = "voting"
	PhaseFinished Phase = "finished"
)

type Choice string

const (
	ChoiceSmash Choice = "smash"
	ChoicePass  Choice = "pass"
)

type Outcome string

const (
	OutcomeSmashed Outcome = "smashed"
	OutcomePassed  Outcome = "passed"
)

type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Ready        bool   `json:"ready"`
	HasSubmitted bool   `json:"has_submitted"`
	IsCreator    bool   `json:"is_creator"`
}

// Item is one submitted image+label pair. Index is assigned at submission
// time and doubles as the round index during voting.
type Item struct {
	Index       int    `json:"index"`
	MediaRef    string `json:"media_ref"`
	Label       string `json:"label"`
	SubmitterID string `json:"submitter_id"`
}

type RoundResult struct {
	ItemIndex  int     `json:"item_index"`
	Outcome    Outcome `json:"outcome"`
	SmashCount int     `json:"smash_count"`
	PassCount  int     `json:"pass_count"`
}

// PlayerStanding aggregates one player's committed votes over the whole game.
type PlayerStanding struct {
	PlayerID  string  `json:"player_id"`
	Name      string  `json:"name"`
	VoteCount int     `json:"vote_count"`
	AverageMs float64 `json:"average_ms"`
	FastestMs int64   `json:"fastest_ms"`
	SlowestMs int64   `json:"slowest_ms"`
}

type ItemStanding struct {
	ItemIndex int     `json:"item_index"`
	Label     string  `json:"label"`
	VoteCount int     `json:"vote_count"`
	AverageMs float64 `json:"average_ms"`
}

// Leaderboard ranks players and items by average reaction time, fastest
// first. Entries with zero committed votes are excluded entirely.
type Leaderboard struct {
	FastestPlayer    *PlayerStanding  `json:"fastest_player,omitempty"`
	SlowestPlayer    *PlayerStanding  `json:"slowest_player,omitempty"`
	PlayersByAverage []PlayerStanding `json:"players_by_average"`
	FastestItem      *ItemStanding    `json:"fastest_item,omitempty"`
	SlowestItem      *ItemStanding    `json:"slowest_item,omitempty"`
	ItemsByAverage   []ItemStanding   `json:"items_by_average"`
}

// RoomSnapshot is the full observable room state sent to clients on roster
// or phase changes.
type RoomSnapshot struct {
	RoomID            string        `json:"room_id"`
	Phase             Phase         `json:"phase"`
	Players           []Player      `json:"players"`
	CurrentRoundIndex int           `json:"current_round_index"`
	TotalRounds       int           `json:"total_rounds"`
	CurrentItem       *Item         `json:"current_item,omitempty"`
	Results           []RoundResult `json:"results"`
}
