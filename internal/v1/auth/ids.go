package auth

import (
	"crypto/rand"
	"math/big"
)

const (
	userIDLen      = 11
	userIDAlphabet = "ABCDFGHIJKLMNOPQSTUVWXYZabcdfghijklmnopqstuvwxyz0123456789"

	roomIDLen      = 10
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateUserID returns a fresh user id. Ids are 11 characters with fixed
// markers 'e' at index 3 and 'R' at index 7; the random positions never use
// the marker characters, so the shape is unambiguous.
func GenerateUserID() string {
	id := make([]byte, userIDLen)
	for i := range id {
		switch i {
		case 3:
			id[i] = 'e'
		case 7:
			id[i] = 'R'
		default:
			id[i] = userIDAlphabet[randIndex(len(userIDAlphabet))]
		}
	}
	return string(id)
}

// UserIDIsValid reports whether s has the shape GenerateUserID produces.
func UserIDIsValid(s string) bool {
	if len(s) != userIDLen {
		return false
	}
	return s[3] == 'e' && s[7] == 'R'
}

// GenerateRoomID returns a fresh 10-character alphanumeric room id.
func GenerateRoomID() string {
	id := make([]byte, roomIDLen)
	for i := range id {
		id[i] = roomIDAlphabet[randIndex(len(roomIDAlphabet))]
	}
	return string(id)
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the platform's entropy source is broken.
		panic(err)
	}
	return int(v.Int64())
}
