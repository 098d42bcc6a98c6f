package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	jobSubjectStyle = lipgloss.NewStyle().Bold(true)
	jobElapsedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// job names what a long-running command is doing: "Running aiContent for
// acc-1" or "Refreshing tiktok token for acc-1".
type job struct {
	verb    string
	subject string
	suffix  string
	account domain.AccountID
}

func featureJob(account domain.AccountID, feature domain.Feature) job {
	return job{verb: "Running", subject: string(feature), account: account}
}

func refreshJob(account domain.AccountID, platform domain.Platform) job {
	return job{verb: "Refreshing", subject: string(platform), suffix: "token", account: account}
}

func (j job) describe(styled bool) string {
	subject := j.subject
	if styled {
		subject = jobSubjectStyle.Render(subject)
	}
	text := j.verb + " " + subject
	if j.suffix != "" {
		text += " " + j.suffix
	}
	return fmt.Sprintf("%s for %s", text, j.account)
}

type jobDoneMsg struct {
	err error
}

type jobModel struct {
	spinner spinner.Model
	job     job
	task    tea.Cmd
	started time.Time
	now     func() time.Time
	err     error
	done    bool
}

func newJobModel(j job, task tea.Cmd, now func() time.Time) jobModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return jobModel{
		spinner: s,
		job:     j,
		task:    task,
		started: now(),
		now:     now,
	}
}

func (m jobModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.task)
}

func (m jobModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case jobDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m jobModel) View() string {
	if m.done {
		return ""
	}

	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	return fmt.Sprintf("%s %s... %s", m.spinner.View(), m.job.describe(true), jobElapsedStyle.Render(elapsed.String()))
}

// runJob animates j on output while task runs and returns the task's error.
func runJob(ctx context.Context, output io.Writer, j job, task func(context.Context) error) error {
	taskCmd := func() tea.Msg {
		return jobDoneMsg{err: task(ctx)}
	}

	p := tea.NewProgram(
		newJobModel(j, taskCmd, time.Now),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("%s: %w", j.describe(false), err)
	}

	result, ok := finalModel.(jobModel)
	if !ok {
		return fmt.Errorf("unexpected final job model type %T", finalModel)
	}

	return result.err
}
