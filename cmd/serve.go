package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/marketwin/internal/adapters/httpapi"
	"github.com/spf13/cobra"
)

func newServeCmd(app *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = app.cfg.HTTP.Listen
			}

			server, err := httpapi.New(httpapi.Deps{
				Accounts:  app.accounts,
				Evaluator: app.evaluator,
				Registry:  app.registry,
				Gateway:   app.gateway,
				Adapter:   app.adapter,
			}, app.cfg.HTTP.JWTSecret,
				httpapi.WithLogger(app.log),
				httpapi.WithMetrics(app.metrics),
				httpapi.WithClock(app.now),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app.log.Info("starting marketwin api", "storage", app.cfg.Storage.Driver, "addr", listen)
			return server.Run(ctx, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default: http.listen)")

	return cmd
}
