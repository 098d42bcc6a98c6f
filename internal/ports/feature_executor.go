package ports

import (
	"context"

	"github.com/bnema/marketwin/internal/domain"
)

// FeatureRequest is what a metered action sends to the system that performs it.
type FeatureRequest struct {
	AccountID domain.AccountID
	Feature   domain.Feature
	Input     map[string]any
	// Payloads is set for social posts, one per target platform.
	Payloads map[domain.Platform]domain.Payload
	// Credentials is set for social posts, keyed like Payloads.
	Credentials map[domain.Platform]domain.CredentialBundle
}

type FeatureResult struct {
	Output map[string]any
}

// FeatureExecutor performs a feature's side effect. It knows nothing about quotas.
type FeatureExecutor interface {
	Execute(ctx context.Context, req FeatureRequest) (FeatureResult, error)
}
