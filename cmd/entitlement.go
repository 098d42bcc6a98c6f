package cmd

import (
	"fmt"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

func newEntitlementCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entitlement",
		Aliases: []string{"ent"},
		Short:   "Query plan entitlements",
	}

	cmd.AddCommand(
		newEntitlementCheckCmd(app),
		newEntitlementRemainingCmd(app),
		newEntitlementSummaryCmd(app),
	)

	return cmd
}

type decisionOutput struct {
	AccountID domain.AccountID  `json:"account_id"`
	Feature   domain.Feature    `json:"feature"`
	Allowed   bool              `json:"allowed"`
	Reason    domain.DenialCode `json:"reason,omitempty"`
	Plan      domain.PlanID     `json:"plan"`
	Quota     domain.Quota      `json:"quota"`
	Used      int64             `json:"used"`
	Remaining domain.Remaining  `json:"remaining"`
}

func newEntitlementCheckCmd(app *app) *cobra.Command {
	var (
		accountID string
		feature   string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether an account may use a feature now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseFeature(feature)
			if err != nil {
				return err
			}

			decision, err := app.evaluator.Check(cmd.Context(), domain.AccountID(accountID), parsed)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, decisionOutput{
					AccountID: domain.AccountID(accountID),
					Feature:   decision.Feature,
					Allowed:   decision.Allowed,
					Reason:    decision.Reason,
					Plan:      decision.Plan,
					Quota:     decision.Quota,
					Used:      decision.Used,
					Remaining: decision.Remaining,
				})
			}

			verdict := "allowed"
			if !decision.Allowed {
				verdict = fmt.Sprintf("denied (%s)", decision.Reason)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s on %s: %s, used %d of %s, remaining %s\n",
				decision.Feature, decision.Plan, verdict, decision.Used, decision.Quota, decision.Remaining)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&feature, "feature", "", "Feature to check")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("feature")

	return cmd
}

func newEntitlementRemainingCmd(app *app) *cobra.Command {
	var accountID, feature string

	cmd := &cobra.Command{
		Use:   "remaining",
		Short: "Print how many units of a feature are left this period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseFeature(feature)
			if err != nil {
				return err
			}

			remaining, err := app.evaluator.Remaining(cmd.Context(), domain.AccountID(accountID), parsed)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), remaining.String())
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&feature, "feature", "", "Feature to query")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("feature")

	return cmd
}

func newEntitlementSummaryCmd(app *app) *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show plan, quotas, usage and next reset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := loadSummaries(cmd, app, accountID)
			if err != nil {
				return err
			}
			return writeSummariesOutput(cmd, app, summaries, asJSON)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID (default: all accounts)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}
