package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	roomIDPrefix = "chat_"
	roomIDLength = 16
)

// RoomIDFor derives the stable room id for a visitor key. The same key
// always maps to the same room, so two sessions sharing a key share a room.
func RoomIDFor(key string) string {
	sum := sha256.Sum256([]byte(roomIDPrefix + key))
	return hex.EncodeToString(sum[:])[:roomIDLength]
}

// IsRoomID reports whether id has the shape RoomIDFor produces.
func IsRoomID(id string) bool {
	if len(id) != roomIDLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
