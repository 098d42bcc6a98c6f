package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const PKCEChallengeMethodS256 = "S256"

// PKCEPair is a code verifier and its S256 challenge.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

func NewPKCEPair() (PKCEPair, error) {
	verifier, err := randomToken(32)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("generate pkce verifier: %w", err)
	}

	return PKCEPair{Verifier: verifier, Challenge: ChallengeFor(verifier)}, nil
}

func ChallengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewState returns an unguessable value for the OAuth state parameter.
func NewState() (string, error) {
	state, err := randomToken(16)
	if err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return state, nil
}

func randomToken(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
