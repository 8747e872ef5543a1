package model

// Wire is the event channel attached to one connected client. The hub owns
// the sending side; the websocket sender pump drains TX until it is closed
// or the connection dies.
type Wire struct {
	TX chan Event
}

func NewWire() Wire {
	return Wire{
		TX: make(chan Event, 32),
	}
}
