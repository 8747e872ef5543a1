package model

// Event types emitted by a room for the transport layer to fan out.
const (
	EventRoomSnapshot       = "room_snapshot"
	EventPlayerJoined       = "player_joined"
	EventPlayerLeft         = "player_left"
	EventItemSubmitted      = "item_submitted"
	EventReadyStatusChanged = "ready_status_changed"
	EventRoundStarted       = "round_started"
	EventVoteAcknowledged   = "vote_acknowledged"
	EventRoundResult        = "round_result"
	EventGameFinished       = "game_finished"
	EventRejected           = "rejected"
)

// Event is the envelope for every outbound domain event. Payload is one of
// the fixed payload structs below, keyed by Type.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type PlayerJoinedPayload struct {
	PlayerName string       `json:"player_name"`
	Snapshot   RoomSnapshot `json:"snapshot"`
}

type PlayerLeftPayload struct {
	PlayerName string       `json:"player_name"`
	Snapshot   RoomSnapshot `json:"snapshot"`
}

type ItemSubmittedPayload struct {
	PlayerName string `json:"player_name"`
	Label      string `json:"label"`
	ItemCount  int    `json:"item_count"`
}

type ReadyStatusPayload struct {
	PlayerName string       `json:"player_name"`
	Snapshot   RoomSnapshot `json:"snapshot"`
}

type RoundStartedPayload struct {
	Item        Item `json:"item"`
	RoundIndex  int  `json:"round_index"`
	TotalRounds int  `json:"total_rounds"`
}

type VoteAcknowledgedPayload struct {
	PlayerName      string `json:"player_name"`
	RemainingVoters int    `json:"remaining_voters"`
}

type RoundResultPayload struct {
	Item       Item    `json:"item"`
	Outcome    Outcome `json:"outcome"`
	SmashCount int     `json:"smash_count"`
	PassCount  int     `json:"pass_count"`
}

type GameFinishedPayload struct {
	Results     []RoundResult `json:"results"`
	Leaderboard Leaderboard   `json:"leaderboard"`
}

// RejectedPayload is unicast to the caller whose intent was refused. It is
// never broadcast to the room.
type RejectedPayload struct {
	Intent string `json:"intent"`
	Reason string `json:"reason"`
}

// Addressed pairs an event with its delivery scope. Events with TargetID ""
// go to every member of the room; otherwise only to that player.
type Addressed struct {
	TargetID string
	Event    Event
}

func Broadcast(e Event) Addressed {
	return Addressed{Event: e}
}

func Unicast(playerID string, e Event) Addressed {
	return Addressed{TargetID: playerID, Event: e}
}
