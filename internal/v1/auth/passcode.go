// Package auth issues and verifies room passcodes and generates user ids.
//
// A passcode is a signed token carrying the holder's public and private ids.
// Clients present it on every HTTP call (Passcode header) and on the WebSocket
// handshake (passcode query parameter); the server never stores it.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidPasscode is returned for any passcode that fails verification,
// regardless of the underlying cause.
var ErrInvalidPasscode = errors.New("invalid passcode")

// Identity is the pair of ids a passcode binds together. The public id is
// shared with other players; the private id never leaves the server's
// responses to its owner.
type Identity struct {
	PublicID  string
	PrivateID string
}

type passcodeClaims struct {
	PublicID  string `json:"publicId"`
	PrivateID string `json:"privateId"`
	jwt.RegisteredClaims
}

// Passcodes signs and verifies passcode tokens with a symmetric key.
type Passcodes struct {
	key []byte
}

// NewPasscodes returns a Passcodes using the given HMAC signing key.
func NewPasscodes(key []byte) *Passcodes {
	return &Passcodes{key: key}
}

// Issue creates a fresh identity and returns it with its signed passcode.
func (p *Passcodes) Issue() (Identity, string, error) {
	identity := Identity{
		PublicID:  GenerateUserID(),
		PrivateID: GenerateUserID(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, passcodeClaims{
		PublicID:  identity.PublicID,
		PrivateID: identity.PrivateID,
	})
	signed, err := token.SignedString(p.key)
	if err != nil {
		return Identity{}, "", fmt.Errorf("failed to sign passcode: %w", err)
	}
	return identity, signed, nil
}

// Decode verifies a passcode and returns the identity it carries. Tokens
// signed with any method other than HS256 are rejected.
func (p *Passcodes) Decode(passcode string) (*Identity, error) {
	var claims passcodeClaims
	_, err := jwt.ParseWithClaims(passcode, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidPasscode
	}
	if !UserIDIsValid(claims.PublicID) || !UserIDIsValid(claims.PrivateID) {
		return nil, ErrInvalidPasscode
	}
	return &Identity{PublicID: claims.PublicID, PrivateID: claims.PrivateID}, nil
}
