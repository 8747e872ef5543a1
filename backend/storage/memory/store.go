package memory

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/adraglia/smashparty/backend/game"
)

// Directory is the process-wide registry of live rooms. Rooms are created on
// first join and drop out when they retire (last player gone or invariant
// violation). The mutex guards only the map; it is never held across calls
// into a room, so a room retiring from inside one of its own handlers can
// safely remove itself.
type Directory struct {
	mx     *sync.Mutex
	rooms  map[string]*game.Room
	logger zerolog.Logger

	newRoom func(id string, onRetire func(string)) *game.Room
}

type Config struct {
	Logger *zerolog.Logger

	// NewRoom builds a room for an unknown id. The directory passes its own
	// removal hook as onRetire.
	NewRoom func(id string, onRetire func(string)) *game.Room
}

func NewDirectory(cfg Config) *Directory {
	return &Directory{
		mx:      &sync.Mutex{},
		rooms:   make(map[string]*game.Room),
		logger:  cfg.Logger.With().Str("component", "room-directory").Logger(),
		newRoom: cfg.NewRoom,
	}
}

// GetOrCreate returns the room with the given id, creating it if absent.
func (d *Directory) GetOrCreate(roomID string) *game.Room {
	d.mx.Lock()
	defer d.mx.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		room = d.newRoom(roomID, d.remove)
		d.rooms[roomID] = room
		d.logger.Debug().Str("roomID", roomID).Msg("room created")
	}
	return room
}

// Get returns the room with the given id, or ErrRoomNotFound.
func (d *Directory) Get(roomID string) (*game.Room, error) {
	d.mx.Lock()
	defer d.mx.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return room, nil
}

// Exists reports whether a room id is currently taken. Used by the room-code
// generator for collision checks.
func (d *Directory) Exists(roomID string) bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, ok := d.rooms[roomID]
	return ok
}

func (d *Directory) Len() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return len(d.rooms)
}

func (d *Directory) remove(roomID string) {
	d.mx.Lock()
	defer d.mx.Unlock()
	delete(d.rooms, roomID)
	d.logger.Debug().Str("roomID", roomID).Msg("room removed")
}
