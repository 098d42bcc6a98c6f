package summary

import (
	"errors"
	"io"

	"github.com/bnema/marketwin/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	summaries []application.PlanSummary
	opts      RenderOptions
	styles    styles
	output    string
}

func newModel(summaries []application.PlanSummary, opts RenderOptions) model {
	return model{
		summaries: summaries,
		opts:      opts,
		styles:    newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.summaries, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render draws plan summaries through a one-shot bubbletea program and returns
// the final frame.
func Render(summaries []application.PlanSummary, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(summaries, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
