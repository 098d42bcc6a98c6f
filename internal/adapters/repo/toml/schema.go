package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported accounts schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	ID                 string              `toml:"id"`
	Name               string              `toml:"name"`
	Email              string              `toml:"email,omitempty"`
	Business           businessSchema      `toml:"business,omitempty"`
	Subscription       *subscriptionSchema `toml:"subscription,omitempty"`
	Usage              usageSchema         `toml:"usage"`
	ConnectedPlatforms []string            `toml:"connected_platforms"`
	Connections        []connectionSchema  `toml:"connections,omitempty"`
	CreatedAt          string              `toml:"created_at,omitempty"`
	UpdatedAt          string              `toml:"updated_at,omitempty"`
}

type businessSchema struct {
	Name string `toml:"name,omitempty"`
	Type string `toml:"type,omitempty"`
}

type subscriptionSchema struct {
	Plan      string `toml:"plan"`
	Status    string `toml:"status"`
	StartedAt string `toml:"started_at,omitempty"`
}

type usageSchema struct {
	Counts         map[string]int64 `toml:"counts"`
	LastUpdated    string           `toml:"last_updated,omitempty"`
	ResetWatermark string           `toml:"reset_watermark"`
}

type connectionSchema struct {
	Platform    string            `toml:"platform"`
	Connected   bool              `toml:"connected"`
	SecretRef   string            `toml:"secret_ref,omitempty"`
	Identifiers map[string]string `toml:"identifiers,omitempty"`
	Expiry      string            `toml:"expiry,omitempty"`
	ConnectedAt string            `toml:"connected_at,omitempty"`
}
