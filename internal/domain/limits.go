package domain

import "fmt"

// Quota is a per-period cap. QuotaUnlimited means no cap and QuotaDisabled
// means the feature is not part of the plan.
type Quota int64

const (
	QuotaUnlimited Quota = -1
	QuotaDisabled  Quota = 0
)

func (q Quota) Unlimited() bool { return q < 0 }

func (q Quota) Disabled() bool { return q == QuotaDisabled }

func (q Quota) String() string {
	switch {
	case q.Unlimited():
		return "unlimited"
	case q.Disabled():
		return "disabled"
	default:
		return fmt.Sprintf("%d", int64(q))
	}
}

// Allows reports whether one more unit fits on top of used.
func (q Quota) Allows(used int64) bool {
	if q.Unlimited() {
		return true
	}
	return used < int64(q)
}

type PlanTable map[PlanID]map[Feature]Quota

// PlanCatalog is an immutable plan to quota table. Build it once and inject it.
type PlanCatalog struct {
	table PlanTable
}

// NewPlanCatalog copies table and rejects plans that do not carry every feature.
func NewPlanCatalog(table PlanTable) (PlanCatalog, error) {
	copied := make(PlanTable, len(table))
	for plan, quotas := range table {
		if !plan.Valid() {
			return PlanCatalog{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
		}
		row := make(map[Feature]Quota, len(features))
		for _, feature := range features {
			quota, ok := quotas[feature]
			if !ok {
				return PlanCatalog{}, fmt.Errorf("plan %q: missing quota for %q", plan, feature)
			}
			if quota < QuotaUnlimited {
				return PlanCatalog{}, fmt.Errorf("plan %q: invalid quota %d for %q", plan, quota, feature)
			}
			row[feature] = quota
		}
		for feature := range quotas {
			if !feature.Valid() {
				return PlanCatalog{}, fmt.Errorf("plan %q: %w: %q", plan, ErrUnknownFeature, feature)
			}
		}
		copied[plan] = row
	}

	return PlanCatalog{table: copied}, nil
}

// DefaultPlanCatalog returns the production plan table.
func DefaultPlanCatalog() PlanCatalog {
	catalog, err := NewPlanCatalog(PlanTable{
		PlanFree: {
			FeatureAIContent:        0,
			FeatureSocialPosts:      0,
			FeatureEmailCampaigns:   0,
			FeatureReviewsMonitored: 10,
		},
		PlanLocalBoost: {
			FeatureAIContent:        10,
			FeatureSocialPosts:      30,
			FeatureEmailCampaigns:   10,
			FeatureReviewsMonitored: 100,
		},
		PlanGrowthAccelerator: {
			FeatureAIContent:        50,
			FeatureSocialPosts:      100,
			FeatureEmailCampaigns:   50,
			FeatureReviewsMonitored: 500,
		},
		PlanScale: {
			FeatureAIContent:        200,
			FeatureSocialPosts:      500,
			FeatureEmailCampaigns:   200,
			FeatureReviewsMonitored: 2000,
		},
		PlanEnterprise: {
			FeatureAIContent:        QuotaUnlimited,
			FeatureSocialPosts:      QuotaUnlimited,
			FeatureEmailCampaigns:   QuotaUnlimited,
			FeatureReviewsMonitored: QuotaUnlimited,
		},
	})
	if err != nil {
		panic(err)
	}
	return catalog
}

func (c PlanCatalog) Lookup(plan PlanID, feature Feature) (Quota, error) {
	row, ok := c.table[plan]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	quota, ok := row[feature]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	return quota, nil
}

// Quotas returns a copy of every feature quota for plan.
func (c PlanCatalog) Quotas(plan PlanID) (map[Feature]Quota, error) {
	row, ok := c.table[plan]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	out := make(map[Feature]Quota, len(row))
	for feature, quota := range row {
		out[feature] = quota
	}
	return out, nil
}

// Plans lists the catalog's plans in ascending tier order.
func (c PlanCatalog) Plans() []PlanID {
	out := make([]PlanID, 0, len(c.table))
	for _, plan := range plans {
		if _, ok := c.table[plan]; ok {
			out = append(out, plan)
		}
	}
	return out
}
