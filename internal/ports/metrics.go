package ports

import "github.com/bnema/marketwin/internal/domain"

type Metrics interface {
	UsageRecorded(plan domain.PlanID, feature domain.Feature)
	Denied(feature domain.Feature, code domain.DenialCode)
	AccountingFailed(feature domain.Feature)
}

type NopMetrics struct{}

func (NopMetrics) UsageRecorded(domain.PlanID, domain.Feature) {}

func (NopMetrics) Denied(domain.Feature, domain.DenialCode) {}

func (NopMetrics) AccountingFailed(domain.Feature) {}
