package application

import "github.com/bnema/marketwin/internal/domain"

type CreateAccountCommand struct {
	ID           domain.AccountID
	Name         string
	Email        string
	BusinessName string
	BusinessType string
	Plan         domain.PlanID
}

type SetSubscriptionCommand struct {
	ID     domain.AccountID
	Plan   domain.PlanID
	Status domain.SubscriptionStatus
}

type UseFeatureCommand struct {
	AccountID domain.AccountID
	Feature   domain.Feature
	Input     map[string]any
}

type PublishCommand struct {
	AccountID domain.AccountID
	Content   string
	Platforms []domain.Platform
	Input     map[string]any
}
