package application

import (
	"time"

	"github.com/bnema/marketwin/internal/domain"
)

type FeatureSummary struct {
	Feature   domain.Feature   `json:"feature"`
	Quota     domain.Quota     `json:"quota"`
	Used      int64            `json:"used"`
	Remaining domain.Remaining `json:"remaining"`
	Allowed   bool             `json:"allowed"`
}

type PlanSummary struct {
	AccountID          domain.AccountID          `json:"account_id"`
	AccountName        string                    `json:"account_name"`
	Plan               domain.PlanID             `json:"plan"`
	Status             domain.SubscriptionStatus `json:"status"`
	Features           []FeatureSummary          `json:"features"`
	ConnectedPlatforms []domain.Platform         `json:"connected_platforms"`
	PeriodStart        time.Time                 `json:"period_start"`
	NextReset          time.Time                 `json:"next_reset"`
}

func (s PlanSummary) Feature(feature domain.Feature) (FeatureSummary, bool) {
	for _, f := range s.Features {
		if f.Feature == feature {
			return f, true
		}
	}
	return FeatureSummary{}, false
}

type ConnectionStatus struct {
	Platform    domain.Platform   `json:"platform"`
	Connected   bool              `json:"connected"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Expiry      *time.Time        `json:"expiry,omitempty"`
	ConnectedAt *time.Time        `json:"connected_at,omitempty"`
}
