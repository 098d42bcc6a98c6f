package summary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 24

type RenderOptions struct {
	Now time.Time
}

func renderView(summaries []application.PlanSummary, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Marketwin Plan Usage"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(summaries))),
	}

	if len(summaries) == 0 {
		lines = append(lines, s.empty.Render("No accounts registered."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, summary := range summaries {
		lines = append(lines, s.section.Render(renderAccount(summary, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(summary application.PlanSummary, opts RenderOptions, s styles) string {
	title := s.account.Render(accountTitle(summary))
	if summary.Status != domain.StatusActive {
		title += " " + s.warning.Render(fmt.Sprintf("[%s]", summary.Status))
	}

	parts := []string{title}
	for _, feature := range summary.Features {
		parts = append(parts, featureLine(feature, s))
	}

	parts = append(parts,
		s.meta.Render(formatResetRelative(summary.NextReset, opts.Now)),
		s.detail.Render("connected: "+platformList(summary.ConnectedPlatforms)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func accountTitle(summary application.PlanSummary) string {
	name := strings.TrimSpace(summary.AccountName)
	if name == "" {
		name = string(summary.AccountID)
	}
	return fmt.Sprintf("%s (%s) · %s", name, summary.AccountID, summary.Plan)
}

func featureLine(feature application.FeatureSummary, s styles) string {
	label := s.featureKey.Render(feature.Feature.Label() + ":")

	switch {
	case feature.Quota.Disabled():
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.disabled.Render("not included"))
	case feature.Quota.Unlimited():
		return lipgloss.JoinHorizontal(
			lipgloss.Top,
			label,
			" ",
			s.meta.Render(fmt.Sprintf("%d used", feature.Used)),
			" ",
			s.detail.Render("(unlimited)"),
		)
	}

	quota := int64(feature.Quota)
	leftPercent := 100 * float64(feature.Remaining.Count) / float64(quota)
	metaStyle := lipgloss.NewStyle().Foreground(interpolateColor(leftPercent, 0, 100))

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(feature.Used, quota, barWidth, s),
		" ",
		metaStyle.Render(fmt.Sprintf("%d/%d used, %d left", feature.Used, quota, feature.Remaining.Count)),
	)
	if feature.Remaining.Exhausted() {
		line += " " + s.warning.Render("[exhausted]")
	}
	return line
}

// renderProgressBar fills the bar with what is still available.
func renderProgressBar(used, quota int64, width int, s styles) string {
	if width <= 0 || quota <= 0 {
		return ""
	}

	leftFraction := float64(quota-used) / float64(quota)
	filled := int(math.Round(float64(width) * leftFraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func platformList(platforms []domain.Platform) string {
	if len(platforms) == 0 {
		return "none"
	}
	names := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		names = append(names, string(platform))
	}
	return strings.Join(names, ", ")
}

func formatResetRelative(resetsAt, now time.Time) string {
	if resetsAt.IsZero() {
		return "resets: unknown"
	}
	if now.IsZero() {
		return "resets " + resetsAt.Format("02 Jan 2006 15:04")
	}
	if !resetsAt.After(now) {
		return "reset now"
	}

	remaining := resetsAt.Sub(now)
	if remaining < 24*time.Hour {
		hours := int(math.Ceil(remaining.Hours()))
		return fmt.Sprintf("resets in %d %s (%s)", hours, plural(hours, "hour"), resetsAt.Format("15:04"))
	}

	days := int(math.Ceil(remaining.Hours() / 24))
	return fmt.Sprintf("resets in %d %s (%s)", days, plural(days, "day"), resetsAt.Format("15:04 on 02 Jan"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
