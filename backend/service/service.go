package service

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/adraglia/smashparty/backend/game"
	"github.com/adraglia/smashparty/backend/model"
)

var (
	ErrJoin              = errors.New("unable to join room")
	ErrBadIntent         = errors.New("malformed intent")
	ErrRoomCodeExhausted = errors.New("unable to generate a free room code")
)

type (
	// RoomDirectory is the registry of live rooms. Rooms come into being on
	// first join and retire themselves through the directory's removal hook.
	RoomDirectory interface {
		GetOrCreate(roomID string) *game.Room
		Get(roomID string) (*game.Room, error)
		Exists(roomID string) bool
	}

	// Hub attaches and detaches member wires and fans room events out.
	Hub interface {
		Connect(roomID, playerID string, wire model.Wire) bool
		Disconnect(roomID, playerID string)
		Deliver(roomID string, msgs ...model.Addressed)
	}

	Service struct {
		directory RoomDirectory
		hub       Hub
		logger    zerolog.Logger
	}

	Config struct {
		Directory RoomDirectory
		Hub       Hub
		Logger    *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		directory: cfg.Directory,
		hub:       cfg.Hub,
		logger:    cfg.Logger.With().Str("component", "api").Logger(),
	}
}

// CreateRoom picks a short room code that is not currently in the directory.
// The room itself materializes on first join.
func (svc *Service) CreateRoom() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := newRoomCode()
		if err != nil {
			return "", err
		}
		if !svc.directory.Exists(code) {
			svc.logger.Debug().Str("roomID", code).Msg("room code issued")
			return code, nil
		}
	}
	return "", ErrRoomCodeExhausted
}

// JoinRoom attaches the player's wire and adds them to the room, creating
// the room if this is its first join. The wire is connected before the join
// so the joiner receives the initial room snapshot.
func (svc *Service) JoinRoom(roomID, playerID, name string, wire model.Wire) error {
	room := svc.directory.GetOrCreate(roomID)
	if !svc.hub.Connect(roomID, playerID, wire) {
		close(wire.TX)
		return errors.Join(ErrJoin, game.ErrDuplicatePlayer)
	}
	if err := room.Join(playerID, name); err != nil {
		svc.hub.Disconnect(roomID, playerID)
		return errors.Join(ErrJoin, err)
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomID", roomID).
		Msg("player joined room")
	return nil
}

// LeaveRoom detaches the wire and removes the player. An emptied room
// retires itself and drops out of the directory.
func (svc *Service) LeaveRoom(roomID, playerID string) {
	svc.hub.Disconnect(roomID, playerID)
	room, err := svc.directory.Get(roomID)
	if err != nil {
		return
	}
	if err = room.Leave(playerID); err != nil {
		svc.logger.Debug().
			Err(err).
			Str("playerID", playerID).
			Str("roomID", roomID).
			Msg("leave ignored")
		return
	}
	svc.logger.Debug().
		Str("playerID", playerID).
		Str("roomID", roomID).
		Msg("player left room")
}

// HandleIntent decodes one inbound intent envelope and dispatches it to the
// room. A rejection is unicast back to the originating caller only; it never
// reaches the rest of the room.
func (svc *Service) HandleIntent(roomID, playerID string, env model.IntentEnvelope) error {
	err := svc.dispatch(roomID, playerID, env)
	if err != nil {
		svc.logger.Debug().
			Err(err).
			Str("intent", env.Type).
			Str("playerID", playerID).
			Str("roomID", roomID).
			Msg("intent rejected")
		svc.hub.Deliver(roomID, model.Unicast(playerID, model.Event{
			Type: model.EventRejected,
			Payload: model.RejectedPayload{
				Intent: env.Type,
				Reason: err.Error(),
			},
		}))
	}
	return err
}

func (svc *Service) dispatch(roomID, playerID string, env model.IntentEnvelope) error {
	room, err := svc.directory.Get(roomID)
	if err != nil {
		return err
	}

	switch env.Type {
	case model.IntentSubmitItem:
		var in model.SubmitItemIntent
		if err = json.Unmarshal(env.Payload, &in); err != nil {
			return errors.Join(ErrBadIntent, err)
		}
		return room.SubmitItem(playerID, in.MediaRef, in.Label)

	case model.IntentSetReady:
		return room.SetReady(playerID)

	case model.IntentCastVote:
		var in model.CastVoteIntent
		if err = json.Unmarshal(env.Payload, &in); err != nil {
			return errors.Join(ErrBadIntent, err)
		}
		return room.CastVote(playerID, in.RoundIndex, in.Choice)

	case model.IntentConfirmVote:
		return room.ConfirmVote(playerID)

	case model.IntentAdvanceRound:
		return room.AdvanceRound(playerID)

	case model.IntentPlayAgain:
		return room.Reset(playerID)

	default:
		return ErrBadIntent
	}
}
