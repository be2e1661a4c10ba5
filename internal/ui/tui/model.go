package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

// Dashboards are the local ports shown in the footer section.
type Dashboards struct {
	Model      int
	Prometheus int
	Grafana    int
}

// Model is the Bubble Tea model for the monitor dashboard.
type Model struct {
	ModelName  string
	Params     provisioning.ParameterSet
	Dashboards Dashboards
	Interval   time.Duration

	// Latest observation
	Sample  Sample
	Sampled bool
	Advice  []Advice

	// Animation
	SpinnerFrame int

	// UI state
	Width     int
	Height    int
	Err       error
	Done      bool
	StartTime time.Time

	ctx      context.Context
	sampler  *Sampler
	sampling bool
}

// NewModel creates the monitor model. The sampler is only used from
// commands issued by Update, one at a time.
func NewModel(ctx context.Context, sampler *Sampler, modelName string, params provisioning.ParameterSet, dashboards Dashboards, interval time.Duration) Model {
	return Model{
		ModelName:  modelName,
		Params:     params,
		Dashboards: dashboards,
		Interval:   interval,
		StartTime:  time.Now(),
		ctx:        ctx,
		sampler:    sampler,
		sampling:   true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.sampleCmd(), m.tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Done = true
			return m, tea.Quit
		case "r":
			if !m.sampling {
				m.sampling = true
				return m, m.sampleCmd()
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case SampleMsg:
		m.sampling = false
		m.Sample = msg.Sample
		m.Sampled = true
		m.Advice = Advise(msg.Sample, m.Params)

	case TickMsg:
		m.SpinnerFrame++
		cmds := []tea.Cmd{m.tickCmd()}
		if !m.sampling {
			m.sampling = true
			cmds = append(cmds, m.sampleCmd())
		}
		return m, tea.Batch(cmds...)

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) sampleCmd() tea.Cmd {
	if m.sampler == nil {
		return nil
	}
	ctx, sampler := m.ctx, m.sampler
	return func() tea.Msg {
		return SampleMsg{Sample: sampler.Sample(ctx)}
	}
}

func (m Model) tickCmd() tea.Cmd {
	interval := m.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return tea.Tick(interval, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
