package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/adraglia/smashparty/backend/model"
)

// Hub fans room events out to the wires of connected members. Delivery is
// non-blocking: a member whose wire buffer is full misses the event rather
// than stalling a room transition (rooms call Deliver while holding their
// own lock).
type Hub struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	wires  map[string]map[string]model.Wire
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		mx:     &sync.RWMutex{},
		wires:  make(map[string]map[string]model.Wire),
	}
}

// Connect attaches a player's wire. It refuses to clobber an existing wire
// for the same identity; the caller treats that as a duplicate join.
func (h *Hub) Connect(roomID, playerID string, wire model.Wire) bool {
	h.mx.Lock()
	defer h.mx.Unlock()

	room, ok := h.wires[roomID]
	if !ok {
		room = make(map[string]model.Wire)
		h.wires[roomID] = room
	}
	if _, exists := room[playerID]; exists {
		return false
	}
	room[playerID] = wire
	h.logger.Debug().
		Str("roomID", roomID).
		Str("playerID", playerID).
		Msg("wire connected")
	return true
}

// Disconnect detaches a player's wire and closes it, which ends the
// connection's sender pump. Removing the last wire of a room drops the room
// entry.
func (h *Hub) Disconnect(roomID, playerID string) {
	h.mx.Lock()
	defer h.mx.Unlock()

	room, ok := h.wires[roomID]
	if !ok {
		return
	}
	wire, ok := room[playerID]
	if !ok {
		return
	}
	delete(room, playerID)
	if len(room) == 0 {
		delete(h.wires, roomID)
	}
	close(wire.TX)
	h.logger.Debug().
		Str("roomID", roomID).
		Str("playerID", playerID).
		Msg("wire disconnected")
}

// Deliver implements game.EventSink. Sends happen under the read lock so a
// concurrent Disconnect cannot close a wire mid-send; they never block, so
// the lock is held only briefly.
func (h *Hub) Deliver(roomID string, msgs ...model.Addressed) {
	h.mx.RLock()
	defer h.mx.RUnlock()

	wires := h.wires[roomID]
	for _, msg := range msgs {
		if msg.TargetID != "" {
			wire, ok := wires[msg.TargetID]
			if !ok {
				h.logger.Debug().
					Str("roomID", roomID).
					Str("dst", msg.TargetID).
					Msg("cannot deliver, dst not connected")
				continue
			}
			h.send(roomID, msg.TargetID, wire, msg.Event)
			continue
		}
		for id, wire := range wires {
			h.send(roomID, id, wire, msg.Event)
		}
	}
}

func (h *Hub) send(roomID, playerID string, wire model.Wire, e model.Event) {
	select {
	case wire.TX <- e:
	default:
		h.logger.Warn().
			Str("roomID", roomID).
			Str("dst", playerID).
			Str("type", e.Type).
			Msg("wire buffer full, event dropped")
	}
}
