package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mw",
		Short:         "marketwin (mw): plan entitlements, usage accounting and platform connections",
		Long:          "mw manages marketwin accounts: subscription plans and their monthly feature quotas, metered feature execution through workflow webhooks, social platform connections, and the HTTP API that fronts them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(context.Background())
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		rootCmd.AddCommand(newVersionCmd())
		return rootCmd
	}

	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newUsageCmd(app),
		newEntitlementCmd(app),
		newConnectionCmd(app),
		newDispatchCmd(app),
		newFeatureCmd(app),
		newServeCmd(app),
	)

	return rootCmd
}
