package domain

import (
	"fmt"
	"time"
)

// CredentialBundle is the token material handed over by a platform's OAuth
// flow. It is stored in a SecretStore and never on the account itself.
type CredentialBundle struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	Identifiers  map[string]string `json:"identifiers,omitempty"`
	Expiry       *time.Time        `json:"expiry,omitempty"`
}

// Validate checks the bundle against the platform's credential schema.
func (b CredentialBundle) Validate(schema CredentialSchema) error {
	if b.AccessToken == "" {
		return fmt.Errorf("%w: access token is empty", ErrInvalidCredential)
	}
	for _, key := range schema.Identifiers {
		if b.Identifiers[key] == "" {
			return fmt.Errorf("%w: missing identifier %q", ErrInvalidCredential, key)
		}
	}
	return nil
}

func (b CredentialBundle) Expired(now time.Time) bool {
	return b.Expiry != nil && !now.Before(*b.Expiry)
}
