package service

import "crypto/rand"

const (
	roomCodeLen     = 6
	roomCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxCodeAttempts = 5
)

// newRoomCode returns a short uppercase code of the kind players read out
// loud; ambiguous characters (0/O, 1/I) are left out of the charset.
func newRoomCode() (string, error) {
	b := make([]byte, roomCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = roomCodeCharset[int(b[i])%len(roomCodeCharset)]
	}
	return string(b), nil
}
