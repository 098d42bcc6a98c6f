package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	authadapter "github.com/bnema/marketwin/internal/adapters/auth"
	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

var errOAuthNotConfigured = errors.New("oauth provider not configured")

func newConnectionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"conn"},
		Short:   "Manage social platform connections",
	}

	cmd.AddCommand(
		newConnectionStatusCmd(app),
		newConnectionConnectCmd(app),
		newConnectionDisconnectCmd(app),
		newConnectionLoginCmd(app),
		newConnectionRefreshCmd(app),
	)

	return cmd
}

func newConnectionStatusCmd(app *app) *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which platforms an account is connected to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := app.registry.Status(cmd.Context(), domain.AccountID(accountID))
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, statuses)
			}

			for _, status := range statuses {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), connectionLine(status, app.now()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func connectionLine(status application.ConnectionStatus, now time.Time) string {
	if !status.Connected {
		return fmt.Sprintf("%-10s not connected", status.Platform)
	}

	line := fmt.Sprintf("%-10s connected", status.Platform)
	if status.Expiry != nil {
		if status.Expiry.After(now) {
			line += fmt.Sprintf(", expires %s", status.Expiry.Format(time.RFC3339))
		} else {
			line += ", expired"
		}
	}
	return line
}

func newConnectionConnectCmd(app *app) *cobra.Command {
	var (
		accountID    string
		platform     string
		accessToken  string
		refreshToken string
		identifiers  map[string]string
		expiresIn    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store platform credentials obtained elsewhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParsePlatform(platform)
			if err != nil {
				return err
			}

			bundle := domain.CredentialBundle{
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
				Identifiers:  identifiers,
			}
			if expiresIn > 0 {
				expiry := app.now().Add(expiresIn).UTC()
				bundle.Expiry = &expiry
			}

			if err := app.registry.Connect(cmd.Context(), domain.AccountID(accountID), parsed, bundle); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connected %s for account %s\n", parsed, accountID)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform: facebook, instagram, twitter, linkedin, tiktok, threads")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Platform access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Platform refresh token")
	cmd.Flags().StringToStringVar(&identifiers, "identifier", nil, "Platform identifier as key=value, e.g. page_id=123")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Token lifetime for platforms whose tokens expire")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("access-token")

	return cmd
}

func newConnectionDisconnectCmd(app *app) *cobra.Command {
	var accountID, platform string

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Remove a platform connection and its stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParsePlatform(platform)
			if err != nil {
				return err
			}

			if err := app.registry.Disconnect(cmd.Context(), domain.AccountID(accountID), parsed); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s for account %s\n", parsed, accountID)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform to disconnect")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}

func newConnectionLoginCmd(app *app) *cobra.Command {
	var (
		accountID  string
		platform   string
		listenAddr string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect a platform through its browser OAuth flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := domain.AccountID(accountID)
			provider, err := oauthProvider(app, platform)
			if err != nil {
				return err
			}
			if _, err := app.accounts.GetAccount(cmd.Context(), id); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			bundle, err := authadapter.Login(ctx, authadapter.LoginRequest{
				Provider:   provider,
				ListenAddr: listenAddr,
				HTTPClient: app.httpClient,
				Now:        app.now,
				Prompt: func(authURL string) error {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to connect %s for account %s:\n%s\n", provider.Platform, id, authURL)
					return err
				},
			})
			if err != nil {
				return err
			}

			if err := app.registry.Connect(cmd.Context(), id, provider.Platform, bundle); err != nil {
				return fmt.Errorf("save %s connection: %w", provider.Platform, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connected %s for account %s\n", provider.Platform, id)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform to connect")
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:1455", "Local address for the OAuth callback")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser callback")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}

func newConnectionRefreshCmd(app *app) *cobra.Command {
	var accountID, platform string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Renew a platform's access token with its refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := oauthProvider(app, platform)
			if err != nil {
				return err
			}

			renew := func(ctx context.Context, current domain.CredentialBundle) (domain.CredentialBundle, error) {
				return authadapter.Refresh(ctx, app.httpClient, provider, current, app.now())
			}
			refresh := func(ctx context.Context) error {
				return app.registry.Refresh(ctx, domain.AccountID(accountID), provider.Platform, renew)
			}

			job := refreshJob(domain.AccountID(accountID), provider.Platform)
			if err := runJob(cmd.Context(), cmd.ErrOrStderr(), job, refresh); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s for account %s\n", provider.Platform, accountID)
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform to refresh")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}

func oauthProvider(app *app, raw string) (authadapter.Provider, error) {
	platform, err := domain.ParsePlatform(raw)
	if err != nil {
		return authadapter.Provider{}, err
	}

	cfg, ok := app.cfg.OAuth[platform]
	if !ok {
		return authadapter.Provider{}, fmt.Errorf("%w for %s: set oauth.%s.auth_url, token_url and client_id", errOAuthNotConfigured, platform, platform)
	}

	return authadapter.Provider{
		Platform:     platform,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}, nil
}
