// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/styles"
	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// SourceList displays the sources cited by an answer in a navigable list.
type SourceList struct {
	sources  []domain.SourceRef
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		sources:  nil,
		selected: 0,
		styles:   s,
		width:    80,
		height:   10,
	}
}

// Init initialises the source list.
func (l *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyUp:
			l.MoveUp()
		case tea.KeyDown:
			l.MoveDown()
		default:
			// Handle other keys
		}
		switch msg.String() {
		case "k":
			l.MoveUp()
		case "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the source list.
func (l *SourceList) View() string {
	if len(l.sources) == 0 {
		return l.styles.Muted.Render("No sources cited")
	}

	lines := make([]string, 0, len(l.sources)*2+2)

	// Header
	header := l.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(l.sources)))
	lines = append(lines, header, "")

	// Calculate visible range based on height
	// Each source takes 2 lines (citation + sections)
	visibleCount := (l.height - 4) / 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if l.selected >= visibleCount {
		start = l.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(l.sources) {
		end = len(l.sources)
	}

	for i := start; i < end; i++ {
		line := l.renderSource(i, &l.sources[i])
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// renderSource formats a single cited source with its sections.
func (l *SourceList) renderSource(index int, source *domain.SourceRef) string {
	// Indicator for selected item
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	marker := fmt.Sprintf("[%d]", index+1)

	title := source.Title
	if title == "" {
		title = source.DocumentID
	}

	// Truncate title if too long
	maxTitleLen := l.width - 24
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	var titleLine string
	if index == l.selected {
		titleLine = l.styles.Selected.Render(fmt.Sprintf("%s%s %-*s  %s", indicator, marker, maxTitleLen, title, source.SourceType))
	} else {
		titleLine = l.styles.Citation.Render(fmt.Sprintf("%s%s ", indicator, marker)) +
			l.styles.Normal.Render(fmt.Sprintf("%-*s  ", maxTitleLen, title)) +
			l.styles.Muted.Render(source.SourceType)
	}

	// Section line (if the source cites specific sections)
	sections := ""
	if len(source.Sections) > 0 {
		sections = strings.Join(source.Sections, ", ")
	}

	// Truncate sections to fit width
	maxSectionLen := l.width - 8
	if maxSectionLen < 20 {
		maxSectionLen = 20
	}
	if len(sections) > maxSectionLen {
		sections = sections[:maxSectionLen-3] + "..."
	}

	if sections == "" {
		return titleLine
	}

	sectionLine := l.styles.Muted.Render("      " + sections)

	return titleLine + "\n" + sectionLine
}

// SetSources updates the source list.
func (l *SourceList) SetSources(sources []domain.SourceRef) {
	l.sources = sources
	l.selected = 0
}

// Sources returns the current sources.
func (l *SourceList) Sources() []domain.SourceRef {
	return l.sources
}

// Selected returns the index of the selected source.
func (l *SourceList) Selected() int {
	return l.selected
}

// SetSelected sets the selected index.
func (l *SourceList) SetSelected(index int) {
	if index >= 0 && index < len(l.sources) {
		l.selected = index
	}
}

// SelectedSource returns the currently selected source, or nil if none.
func (l *SourceList) SelectedSource() *domain.SourceRef {
	if len(l.sources) == 0 || l.selected < 0 || l.selected >= len(l.sources) {
		return nil
	}
	return &l.sources[l.selected]
}

// MoveUp moves selection up.
func (l *SourceList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *SourceList) MoveDown() {
	if l.selected < len(l.sources)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *SourceList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Width returns the current width.
func (l *SourceList) Width() int {
	return l.width
}

// Height returns the current height.
func (l *SourceList) Height() int {
	return l.height
}

// Count returns the number of sources.
func (l *SourceList) Count() int {
	return len(l.sources)
}

// IsEmpty returns whether the list is empty.
func (l *SourceList) IsEmpty() bool {
	return len(l.sources) == 0
}
