package model

import "encoding/json"

// Intent types accepted from clients over the websocket transport.
const (
	IntentJoin         = "join"
	IntentSubmitItem   = "submit_item"
	IntentSetReady     = "set_ready"
	IntentCastVote     = "cast_vote"
	IntentConfirmVote  = "confirm_vote"
	IntentAdvanceRound = "advance_round"
	IntentPlayAgain    = "play_again"
)

// IntentEnvelope is the wire form of an inbound intent. Payload is decoded
// into the matching intent struct once Type is known.
type IntentEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinIntent struct {
	Name string `json:"name"`
}

type SubmitItemIntent struct {
	MediaRef string `json:"media_ref"`
	Label    string `json:"label"`
}

type CastVoteIntent struct {
	Choice     Choice `json:"choice"`
	RoundIndex int    `json:"round_index"`
}
