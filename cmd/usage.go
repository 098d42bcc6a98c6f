package cmd

import (
	"fmt"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

func newUsageCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect and record metered feature usage",
	}

	cmd.AddCommand(newUsageShowCmd(app), newUsageRecordCmd(app))

	return cmd
}

func newUsageShowCmd(app *app) *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display this period's usage against plan quotas",
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

// newUsageRecordCmd records one unit without running anything, for work that
// happened outside the gateway.
func newUsageRecordCmd(app *app) *cobra.Command {
	var accountID, feature string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one unit of feature usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseFeature(feature)
			if err != nil {
				return err
			}

			count, err := app.ledger.RecordUsage(cmd.Context(), domain.AccountID(accountID), parsed)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s usage for account %s: %d this period\n", parsed, accountID, count)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&feature, "feature", "", "Feature: aiContent, socialPosts, emailCampaigns, reviewsMonitored")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("feature")

	return cmd
}
