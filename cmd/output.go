package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	summaryadapter "github.com/bnema/marketwin/internal/adapters/render/summary"
	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

type accountOutput struct {
	ID                 domain.AccountID          `json:"id"`
	Name               string                    `json:"name"`
	Email              string                    `json:"email,omitempty"`
	BusinessName       string                    `json:"business_name,omitempty"`
	BusinessType       string                    `json:"business_type,omitempty"`
	Plan               domain.PlanID             `json:"plan"`
	Status             domain.SubscriptionStatus `json:"status"`
	ConnectedPlatforms []domain.Platform         `json:"connected_platforms"`
	CreatedAt          time.Time                 `json:"created_at"`
}

func newAccountOutput(account domain.Account) accountOutput {
	return accountOutput{
		ID:                 account.ID,
		Name:               account.Name,
		Email:              account.Email,
		BusinessName:       account.Business.Name,
		BusinessType:       account.Business.Type,
		Plan:               account.Plan(),
		Status:             domain.EffectiveStatus(account.Subscription),
		ConnectedPlatforms: append([]domain.Platform{}, account.Connections.Platforms...),
		CreatedAt:          account.CreatedAt,
	}
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeSummariesOutput(cmd *cobra.Command, app *app, summaries []application.PlanSummary, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, summaries)
	}

	rendered, err := app.summaryRenderer(summaries, summaryadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render plan summary: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadSummaries(cmd *cobra.Command, app *app, accountID string) ([]application.PlanSummary, error) {
	if accountID == "" {
		return app.evaluator.PlanSummaries(cmd.Context())
	}

	summary, err := app.evaluator.PlanSummary(cmd.Context(), domain.AccountID(accountID))
	if err != nil {
		return nil, err
	}

	return []application.PlanSummary{summary}, nil
}
