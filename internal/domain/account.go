package domain

import (
	"fmt"
	"time"
)

type AccountID string

type PlanID string

const (
	PlanFree              PlanID = "free"
	PlanLocalBoost        PlanID = "local_boost"
	PlanGrowthAccelerator PlanID = "growth_accelerator"
	PlanScale             PlanID = "scale"
	PlanEnterprise        PlanID = "enterprise"
)

// plans is ascending by tier.
var plans = []PlanID{
	PlanFree,
	PlanLocalBoost,
	PlanGrowthAccelerator,
	PlanScale,
	PlanEnterprise,
}

// LowestPlan is the plan applied to accounts without a subscription plan.
const LowestPlan = PlanFree

func (p PlanID) Valid() bool {
	for _, known := range plans {
		if p == known {
			return true
		}
	}
	return false
}

func ParsePlan(raw string) (PlanID, error) {
	p := PlanID(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, raw)
	}
	return p, nil
}

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusPastDue   SubscriptionStatus = "past_due"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCancelled, StatusPastDue:
		return true
	default:
		return false
	}
}

type Subscription struct {
	Plan      PlanID
	Status    SubscriptionStatus
	StartedAt time.Time
}

// EffectivePlan resolves the plan quotas are read from. A missing subscription
// or an empty plan falls back to LowestPlan.
func EffectivePlan(sub *Subscription) PlanID {
	if sub == nil || sub.Plan == "" {
		return LowestPlan
	}
	return sub.Plan
}

// EffectiveStatus treats a missing subscription as active on the lowest plan.
func EffectiveStatus(sub *Subscription) SubscriptionStatus {
	if sub == nil || sub.Status == "" {
		return StatusActive
	}
	return sub.Status
}

type Business struct {
	Name string
	Type string
}

type Account struct {
	ID           AccountID
	Name         string
	Email        string
	Business     Business
	Subscription *Subscription
	Usage        UsageRecord
	Connections  Connections
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Account) Plan() PlanID { return EffectivePlan(a.Subscription) }

func (a Account) Active() bool { return EffectiveStatus(a.Subscription) == StatusActive }

// Clone returns a deep copy so callers can mutate maps without aliasing.
func (a Account) Clone() Account {
	out := a
	if a.Subscription != nil {
		sub := *a.Subscription
		out.Subscription = &sub
	}
	if a.Usage.Counts != nil {
		out.Usage.Counts = make(map[Feature]int64, len(a.Usage.Counts))
		for k, v := range a.Usage.Counts {
			out.Usage.Counts[k] = v
		}
	}
	if a.Connections.ByPlatform != nil {
		out.Connections.ByPlatform = make(map[Platform]PlatformConnection, len(a.Connections.ByPlatform))
		for p, conn := range a.Connections.ByPlatform {
			if conn.Identifiers != nil {
				ids := make(map[string]string, len(conn.Identifiers))
				for k, v := range conn.Identifiers {
					ids[k] = v
				}
				conn.Identifiers = ids
			}
			if conn.Expiry != nil {
				expiry := *conn.Expiry
				conn.Expiry = &expiry
			}
			out.Connections.ByPlatform[p] = conn
		}
	}
	out.Connections.Platforms = append([]Platform(nil), a.Connections.Platforms...)
	return out
}
