package hub

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adraglia/smashparty/backend/model"
)

func newTestHub() *Hub {
	logger := zerolog.Nop()
	return NewHub(&logger)
}

func drain(wire model.Wire) []model.Event {
	var out []model.Event
	for {
		select {
		case e := <-wire.TX:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestHubBroadcast(t *testing.T) {
	h := newTestHub()
	w1, w2 := model.NewWire(), model.NewWire()
	h.Connect("R1", "P1", w1)
	h.Connect("R1", "P2", w2)

	other := model.NewWire()
	h.Connect("R2", "P9", other)

	h.Deliver("R1", model.Broadcast(model.Event{Type: model.EventRoundStarted}))

	require.Len(t, drain(w1), 1)
	require.Len(t, drain(w2), 1)
	assert.Empty(t, drain(other), "events stay within their room")
}

func TestHubUnicast(t *testing.T) {
	h := newTestHub()
	w1, w2 := model.NewWire(), model.NewWire()
	h.Connect("R1", "P1", w1)
	h.Connect("R1", "P2", w2)

	h.Deliver("R1", model.Unicast("P2", model.Event{Type: model.EventRejected}))

	assert.Empty(t, drain(w1))
	got := drain(w2)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventRejected, got[0].Type)
}

func TestHubConnectRefusesDuplicate(t *testing.T) {
	h := newTestHub()
	w1, w2 := model.NewWire(), model.NewWire()

	require.True(t, h.Connect("R1", "P1", w1))
	require.False(t, h.Connect("R1", "P1", w2), "existing wire must not be clobbered")

	h.Deliver("R1", model.Broadcast(model.Event{Type: model.EventPlayerJoined}))
	assert.Len(t, drain(w1), 1)
	assert.Empty(t, drain(w2))
}

func TestHubUnicastUnknownTarget(t *testing.T) {
	h := newTestHub()
	w1 := model.NewWire()
	h.Connect("R1", "P1", w1)

	h.Deliver("R1", model.Unicast("ghost", model.Event{Type: model.EventRejected}))
	assert.Empty(t, drain(w1))
}

func TestHubDisconnectClosesWire(t *testing.T) {
	h := newTestHub()
	w1 := model.NewWire()
	h.Connect("R1", "P1", w1)
	h.Disconnect("R1", "P1")

	_, open := <-w1.TX
	assert.False(t, open, "disconnect ends the sender pump")

	// further deliveries are dropped, not panicking on a closed wire
	h.Deliver("R1", model.Broadcast(model.Event{Type: model.EventPlayerLeft}))
	h.Disconnect("R1", "P1")
}

func TestHubFullWireDropsEvent(t *testing.T) {
	h := newTestHub()
	w1 := model.NewWire()
	h.Connect("R1", "P1", w1)

	for i := 0; i < cap(w1.TX)+5; i++ {
		h.Deliver("R1", model.Broadcast(model.Event{Type: model.EventVoteAcknowledged}))
	}

	assert.Len(t, drain(w1), cap(w1.TX), "overflow is dropped, never blocks")
}
