package game

import "errors"

// Rejection sentinels. Every one of these leaves room state untouched and is
// reported only to the caller whose intent was refused.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidPhase       = errors.New("intent not valid in current phase")
	ErrDuplicatePlayer    = errors.New("player id already present in room")
	ErrUnknownPlayer      = errors.New("player is not a member of this room")
	ErrStaleRound         = errors.New("vote targets a round that is not open")
	ErrEmptySubmissionSet = errors.New("no items have been submitted")
	ErrVoteAlreadyCast    = errors.New("vote for this round is already committed")
	ErrNoTentativeVote    = errors.New("no tentative vote to confirm")
	ErrNotRoomCreator     = errors.New("only the room creator may do that")
)
