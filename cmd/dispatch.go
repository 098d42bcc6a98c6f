package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/spf13/cobra"
)

func newDispatchCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Shape content for social platforms",
	}

	cmd.AddCommand(newDispatchPreviewCmd(app))

	return cmd
}

func newDispatchPreviewCmd(app *app) *cobra.Command {
	var (
		platforms []string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "preview <content>",
		Short: "Show how content would be posted on each platform",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parsePlatformFlags(platforms)
			if err != nil {
				return err
			}

			content := strings.Join(args, " ")
			shaped, err := app.adapter.Adapt(content, targets)
			if err != nil {
				return err
			}

			payloads := make([]domain.Payload, 0, len(targets))
			for _, platform := range targets {
				payloads = append(payloads, shaped[platform])
			}

			if asJSON {
				return writeJSON(cmd, payloads)
			}

			for _, payload := range payloads {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), payloadBlock(payload))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "Target platforms (default: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func payloadBlock(payload domain.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", payload.Platform)
	if payload.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString("\n")
	b.WriteString(payload.Content)
	if len(payload.Hashtags) > 0 {
		b.WriteString("\nhashtags: #")
		b.WriteString(strings.Join(payload.Hashtags, " #"))
	}
	return b.String()
}

func parsePlatformFlags(raw []string) ([]domain.Platform, error) {
	if len(raw) == 0 {
		return domain.Platforms(), nil
	}

	out := make([]domain.Platform, 0, len(raw))
	seen := make(map[domain.Platform]struct{}, len(raw))
	for _, value := range raw {
		platform, err := domain.ParsePlatform(value)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[platform]; dup {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, platform)
	}
	return out, nil
}
