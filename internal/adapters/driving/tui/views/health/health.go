// Package health implements the component health view.
package health

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/messages"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/styles"
	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// View displays the aggregate health report for the corpus store, the
// vector index and the AI backends.
type View struct {
	styles        *styles.Styles
	healthService driving.HealthService

	report  *domain.Health
	loading bool

	width  int
	height int
	ready  bool
}

// NewView creates a new health view.
func NewView(s *styles.Styles, healthService driving.HealthService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles:        s,
		healthService: healthService,
	}
}

// Init starts a health check.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.checkHealth()
}

// Update handles messages for the health view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ready = true

	case messages.HealthChecked:
		v.loading = false
		v.report = msg.Report

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "r":
		v.loading = true
		return v, v.checkHealth()

	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	return v, nil
}

// checkHealth probes all components through the health service.
func (v *View) checkHealth() tea.Cmd {
	return func() tea.Msg {
		if v.healthService == nil {
			return messages.HealthChecked{Report: nil}
		}

		report := v.healthService.Check(context.Background())
		return messages.HealthChecked{Report: report}
	}
}

// View renders the health view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Health"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Checking components..."))
		b.WriteString("\n")
	case v.report == nil:
		b.WriteString(v.styles.Muted.Render("No health report available."))
		b.WriteString("\n")
	default:
		b.WriteString(v.renderReport())
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[r] re-check  [esc] back"))

	return b.String()
}

// renderReport formats the overall status and the per-component rows.
func (v *View) renderReport() string {
	var b strings.Builder

	b.WriteString(v.styles.Normal.Render("Overall: "))
	b.WriteString(v.statusStyle(v.report.Status).Render(string(v.report.Status)))
	b.WriteString("\n")

	if !v.report.CheckedAt.IsZero() {
		checked := fmt.Sprintf("Checked at %s", v.report.CheckedAt.Format("15:04:05"))
		b.WriteString(v.styles.Muted.Render(checked))
		b.WriteString("\n")
	}

	b.WriteString("\n")

	for _, component := range v.report.Components {
		b.WriteString(v.styles.Normal.Render(fmt.Sprintf("  %-12s ", component.Name)))
		b.WriteString(v.statusStyle(component.Status).Render(string(component.Status)))

		if component.Error != "" {
			b.WriteString(v.styles.Muted.Render("  " + component.Error))
		}

		b.WriteString("\n")
	}

	return b.String()
}

// statusStyle picks the style for a health status.
func (v *View) statusStyle(status domain.HealthStatus) lipgloss.Style {
	switch status {
	case domain.HealthOK:
		return v.styles.Success
	case domain.HealthDegraded:
		return v.styles.Degraded
	case domain.HealthError:
		return v.styles.Error
	default:
		return v.styles.Normal
	}
}

// SetDimensions updates the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Report returns the last health report.
func (v *View) Report() *domain.Health {
	return v.report
}

// IsLoading returns true when a check is in flight.
func (v *View) IsLoading() bool {
	return v.loading
}
