package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

func newFeatureCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Run metered features",
	}

	cmd.AddCommand(newFeatureUseCmd(app))

	return cmd
}

func newFeatureUseCmd(app *app) *cobra.Command {
	var (
		accountID string
		feature   string
		inputs    map[string]string
		content   string
		platforms []string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "use",
		Short: "Run a feature through its workflow if the plan allows it",
		Long:  "Checks the account's entitlement, runs the feature's workflow and records one unit of usage. socialPosts needs --content and at least one --platform.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseFeature(feature)
			if err != nil {
				return err
			}

			input := make(map[string]any, len(inputs))
			for key, value := range inputs {
				input[key] = value
			}

			id := domain.AccountID(accountID)
			var outcome application.Outcome
			run := func(ctx context.Context) error {
				if parsed != domain.FeatureSocialPosts {
					result, useErr := app.gateway.Use(ctx, application.UseFeatureCommand{
						AccountID: id,
						Feature:   parsed,
						Input:     input,
					})
					outcome = result
					return useErr
				}

				if len(platforms) == 0 {
					return fmt.Errorf("%w: --platform is required for socialPosts", domain.ErrInvalidContent)
				}
				targets, parseErr := parsePlatformFlags(platforms)
				if parseErr != nil {
					return parseErr
				}
				result, publishErr := app.gateway.Publish(ctx, application.PublishCommand{
					AccountID: id,
					Content:   content,
					Platforms: targets,
					Input:     input,
				})
				outcome = result
				return publishErr
			}

			err = runJob(cmd.Context(), cmd.ErrOrStderr(), featureJob(id, parsed), run)

			var accounting *application.AccountingError
			if errors.As(err, &accounting) {
				count, retryErr := app.gateway.RetryAccounting(cmd.Context(), accounting)
				if retryErr != nil {
					return fmt.Errorf("%w; retry failed: %v", err, retryErr)
				}
				app.log.Warn("usage recorded on retry", "account_id", id, "feature", parsed, "count", count)
				remaining, remainingErr := app.evaluator.Remaining(cmd.Context(), id, parsed)
				if remainingErr != nil {
					return remainingErr
				}
				outcome = application.Outcome{Result: accounting.Result, Count: count, Remaining: remaining}
				err = nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"feature":   parsed,
					"count":     outcome.Count,
					"remaining": outcome.Remaining,
					"result":    outcome.Result.Output,
				})
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s done for account %s: %d used this period, %s remaining\n",
				parsed, id, outcome.Count, outcome.Remaining)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&feature, "feature", "", "Feature: aiContent, socialPosts, emailCampaigns, reviewsMonitored")
	cmd.Flags().StringToStringVar(&inputs, "input", nil, "Workflow input as key=value")
	cmd.Flags().StringVar(&content, "content", "", "Post content for socialPosts")
	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "Target platforms for socialPosts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("feature")

	return cmd
}
