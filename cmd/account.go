package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/marketwin/internal/adapters/httpapi"
	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts and their subscription",
	}

	cmd.AddCommand(
		newAccountCreateCmd(app),
		newAccountListCmd(app),
		newAccountShowCmd(app),
		newAccountPlanCmd(app),
		newAccountTokenCmd(app),
	)

	return cmd
}

func newAccountCreateCmd(app *app) *cobra.Command {
	var (
		input  application.CreateAccountCommand
		id     string
		plan   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account on a plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input.ID = domain.AccountID(id)
			if plan != "" {
				parsed, err := domain.ParsePlan(plan)
				if err != nil {
					return err
				}
				input.Plan = parsed
			}

			account, err := app.accounts.CreateAccount(cmd.Context(), input)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, newAccountOutput(account))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (%s) on plan %s\n", account.Name, account.ID, account.Plan())
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Account ID (default: generated UUID)")
	cmd.Flags().StringVar(&input.Name, "name", "", "Account display name")
	cmd.Flags().StringVar(&input.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&input.BusinessName, "business-name", "", "Business name")
	cmd.Flags().StringVar(&input.BusinessType, "business-type", "", "Business type, e.g. restaurant")
	cmd.Flags().StringVar(&plan, "plan", "", "Plan ID (default: free)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.accounts.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]accountOutput, 0, len(accounts))
				for _, account := range accounts {
					out = append(out, newAccountOutput(account))
				}
				return writeJSON(cmd, out)
			}

			for _, account := range accounts {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					account.ID, account.Name, account.Plan(), domain.EffectiveStatus(account.Subscription))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newAccountShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := app.accounts.GetAccount(cmd.Context(), domain.AccountID(args[0]))
			if err != nil {
				return err
			}

			out := newAccountOutput(account)
			if asJSON {
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "id:        %s\n", out.ID)
			_, _ = fmt.Fprintf(w, "name:      %s\n", out.Name)
			if out.Email != "" {
				_, _ = fmt.Fprintf(w, "email:     %s\n", out.Email)
			}
			if out.BusinessName != "" {
				_, _ = fmt.Fprintf(w, "business:  %s (%s)\n", out.BusinessName, out.BusinessType)
			}
			_, _ = fmt.Fprintf(w, "plan:      %s\n", out.Plan)
			_, _ = fmt.Fprintf(w, "status:    %s\n", out.Status)
			_, _ = fmt.Fprintf(w, "connected: %s\n", platformsLabel(out.ConnectedPlatforms))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newAccountPlanCmd(app *app) *cobra.Command {
	var plan, status string

	cmd := &cobra.Command{
		Use:   "plan <account-id>",
		Short: "Change an account's plan or subscription status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if plan == "" && status == "" {
				return fmt.Errorf("at least one of --plan or --status is required")
			}

			input := application.SetSubscriptionCommand{
				ID:     domain.AccountID(args[0]),
				Status: domain.SubscriptionStatus(status),
			}
			if plan != "" {
				parsed, err := domain.ParsePlan(plan)
				if err != nil {
					return err
				}
				input.Plan = parsed
			}

			account, err := app.accounts.SetSubscription(cmd.Context(), input)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Account %s is on plan %s (%s)\n",
				account.ID, account.Plan(), domain.EffectiveStatus(account.Subscription))
			return err
		},
	}

	cmd.Flags().StringVar(&plan, "plan", "", "New plan ID")
	cmd.Flags().StringVar(&status, "status", "", "New subscription status: active, inactive, cancelled, past_due")

	return cmd
}

func newAccountTokenCmd(app *app) *cobra.Command {
	var (
		admin bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [account-id]",
		Short: "Issue an HTTP API bearer token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id domain.AccountID
			if len(args) == 1 {
				id = domain.AccountID(args[0])
				if _, err := app.accounts.GetAccount(cmd.Context(), id); err != nil {
					return err
				}
			}
			if id == "" && !admin {
				return fmt.Errorf("an account id is required unless --admin is set")
			}

			token, err := httpapi.IssueToken(app.cfg.HTTP.JWTSecret, id, admin, ttl, app.now())
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin access to every account")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}

func platformsLabel(platforms []domain.Platform) string {
	if len(platforms) == 0 {
		return "none"
	}
	names := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		names = append(names, string(platform))
	}
	return strings.Join(names, ", ")
}
