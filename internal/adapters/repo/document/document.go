// Package document is the JSON form of an account shared by the redis and
// postgres repositories.
package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/marketwin/internal/domain"
)

const Version = 1

type Account struct {
	Version            int                   `json:"version"`
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Email              string                `json:"email,omitempty"`
	Business           Business              `json:"business"`
	Subscription       *Subscription         `json:"subscription,omitempty"`
	Usage              Usage                 `json:"usage"`
	ConnectedPlatforms []string              `json:"connected_platforms"`
	Connections        map[string]Connection `json:"connections"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type Business struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

type Subscription struct {
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

type Usage struct {
	Counts         map[string]int64 `json:"counts"`
	LastUpdated    time.Time        `json:"last_updated"`
	ResetWatermark time.Time        `json:"reset_watermark"`
}

type Connection struct {
	Connected   bool              `json:"connected"`
	SecretRef   string            `json:"secret_ref,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Expiry      *time.Time        `json:"expiry,omitempty"`
	ConnectedAt time.Time         `json:"connected_at"`
}

func Marshal(account domain.Account) ([]byte, error) {
	data, err := json.Marshal(From(account))
	if err != nil {
		return nil, fmt.Errorf("encode account document: %w", err)
	}
	return data, nil
}

func Unmarshal(data []byte) (domain.Account, error) {
	var doc Account
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Account{}, fmt.Errorf("decode account document: %w", err)
	}
	if doc.Version > Version {
		return domain.Account{}, fmt.Errorf("unsupported account document version %d (current %d)", doc.Version, Version)
	}
	return doc.Domain(), nil
}

func From(account domain.Account) Account {
	doc := Account{
		Version:  Version,
		ID:       string(account.ID),
		Name:     account.Name,
		Email:    account.Email,
		Business: Business{Name: account.Business.Name, Type: account.Business.Type},
		Usage: Usage{
			Counts:         make(map[string]int64, len(account.Usage.Counts)),
			LastUpdated:    account.Usage.LastUpdated.UTC(),
			ResetWatermark: account.Usage.ResetWatermark.UTC(),
		},
		ConnectedPlatforms: make([]string, 0, len(account.Connections.Platforms)),
		Connections:        make(map[string]Connection, len(account.Connections.ByPlatform)),
		CreatedAt:          account.CreatedAt.UTC(),
		UpdatedAt:          account.UpdatedAt.UTC(),
	}
	if account.Subscription != nil {
		doc.Subscription = &Subscription{
			Plan:      string(account.Subscription.Plan),
			Status:    string(account.Subscription.Status),
			StartedAt: account.Subscription.StartedAt.UTC(),
		}
	}
	for feature, count := range account.Usage.Counts {
		doc.Usage.Counts[string(feature)] = count
	}
	for _, platform := range account.Connections.Platforms {
		doc.ConnectedPlatforms = append(doc.ConnectedPlatforms, string(platform))
	}
	for platform, conn := range account.Connections.ByPlatform {
		entry := Connection{
			Connected:   conn.Connected,
			SecretRef:   conn.SecretRef,
			Identifiers: conn.Identifiers,
			ConnectedAt: conn.ConnectedAt.UTC(),
		}
		if conn.Expiry != nil {
			expiry := conn.Expiry.UTC()
			entry.Expiry = &expiry
		}
		doc.Connections[string(platform)] = entry
	}
	return doc
}

func (d Account) Domain() domain.Account {
	account := domain.Account{
		ID:       domain.AccountID(d.ID),
		Name:     d.Name,
		Email:    d.Email,
		Business: domain.Business{Name: d.Business.Name, Type: d.Business.Type},
		Usage: domain.UsageRecord{
			Counts:         make(map[domain.Feature]int64, len(domain.Features())),
			LastUpdated:    d.Usage.LastUpdated,
			ResetWatermark: d.Usage.ResetWatermark,
		},
		Connections: domain.NewConnections(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Subscription != nil {
		account.Subscription = &domain.Subscription{
			Plan:      domain.PlanID(d.Subscription.Plan),
			Status:    domain.SubscriptionStatus(d.Subscription.Status),
			StartedAt: d.Subscription.StartedAt,
		}
	}
	for _, feature := range domain.Features() {
		account.Usage.Counts[feature] = d.Usage.Counts[string(feature)]
	}
	for platform, conn := range d.Connections {
		account.Connections.ByPlatform[domain.Platform(platform)] = domain.PlatformConnection{
			Connected:   conn.Connected,
			SecretRef:   conn.SecretRef,
			Identifiers: conn.Identifiers,
			Expiry:      conn.Expiry,
			ConnectedAt: conn.ConnectedAt,
		}
	}
	account.Connections.Sync()
	return account
}
