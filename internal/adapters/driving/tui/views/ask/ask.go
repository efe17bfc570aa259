// Package ask provides the question answering view for the TUI.
package ask

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/components/input"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/components/list"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/components/status"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/keymap"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/messages"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/styles"
	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// View represents the ask view with question input, answer display,
// cited sources, and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	sources   *list.SourceList
	statusbar *status.Bar

	askService driving.AskService
	ctx        context.Context

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = input mode (typing), false = answer mode (navigating sources)

	question string
	answer   *domain.Answer
	history  []domain.ChatTurn
}

// NewView creates a new ask view.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	askService driving.AskService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQuestionInput(s),
		sources:    list.NewSourceList(s),
		statusbar:  status.NewBar(s, km),
		askService: askService,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		ready:      false,
		focusInput: true, // Start in input mode
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswerReceived(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	// Forward to input component
	var inputCmd tea.Cmd
	v.input, inputCmd = v.input.Update(msg)
	if inputCmd != nil {
		cmds = append(cmds, inputCmd)
	}

	// Forward to sources component
	var listCmd tea.Cmd
	v.sources, listCmd = v.sources.Update(msg)
	if listCmd != nil {
		cmds = append(cmds, listCmd)
	}

	return v, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	// Esc always signals to go back to menu. The conversation is kept
	// so returning to the view resumes it.
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	// Enter in input mode submits the question
	if msg.Type == tea.KeyEnter && v.focusInput {
		question := v.input.Value()
		if question == "" {
			return v, nil
		}
		v.statusbar.SetState(status.StateThinking)
		v.focusInput = false // Move to answer mode while waiting
		v.input.Blur()
		cmd := v.performAsk(question)
		return v, cmd
	}

	// Input mode: all keys go to input
	if v.focusInput {
		v.input, _ = v.input.Update(msg)
		return v, nil
	}

	// Answer mode: Enter opens the selected source document
	if msg.Type == tea.KeyEnter {
		source := v.sources.SelectedSource()
		if source != nil {
			docID := source.DocumentID
			title := source.Title
			return v, func() tea.Msg {
				return messages.DocumentSelected{
					DocumentID: docID,
					Title:      title,
					ReturnTo:   messages.ViewAsk,
				}
			}
		}
		return v, nil
	}

	// Answer mode: handle navigation
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyUp:
		v.sources.MoveUp()
		return v, nil
	case tea.KeyDown:
		v.sources.MoveDown()
		return v, nil
	}

	switch msg.String() {
	case "k":
		v.sources.MoveUp()
		return v, nil
	case "j":
		v.sources.MoveDown()
		return v, nil
	case "n":
		// New question: clear input and focus it, keeping the
		// conversation so the follow-up has context
		v.focusInput = true
		v.input.Focus()
		v.input.SetValue("")
		return v, nil
	case "c":
		// Clear the conversation and start over
		v.Reset()
		return v, nil
	}

	return v, nil
}

// performAsk submits the question and returns the answer.
func (v *View) performAsk(question string) tea.Cmd {
	return func() tea.Msg {
		if v.askService == nil {
			return messages.ErrorOccurred{Err: ErrNoAskService}
		}

		answer, err := v.askService.Ask(v.ctx, question, domain.AskOptions{
			History: v.history,
		})
		if err != nil {
			return messages.AnswerReceived{Question: question, Answer: nil, Err: err}
		}
		return messages.AnswerReceived{Question: question, Answer: answer, Err: nil}
	}
}

// handleAnswerReceived processes a completed ask.
func (v *View) handleAnswerReceived(msg messages.AnswerReceived) {
	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}

	v.err = nil
	v.question = msg.Question
	v.answer = msg.Answer
	v.history = append(v.history,
		domain.ChatTurn{Role: "user", Content: msg.Question},
		domain.ChatTurn{Role: "assistant", Content: msg.Answer.Text},
	)
	v.sources.SetSources(msg.Answer.Sources)
	v.statusbar.SetState(status.StateAnswered)
	v.statusbar.SetConfidence(msg.Answer.Confidence)
	v.statusbar.SetDegraded(msg.Answer.Degraded)

	// Stay in answer mode so the sources can be navigated
	v.focusInput = false
	v.input.Blur()
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)

	// Header
	header := v.styles.Title.Render("LexQuery")
	sections = append(sections, header, "")

	// Question input
	inputView := v.input.View()
	sections = append(sections, inputView, "")

	// Error display
	if v.err != nil {
		errView := v.styles.Error.Render("Error: " + v.err.Error())
		sections = append(sections, errView, "")
	}

	// Answer display
	if v.answer != nil {
		questionLine := v.styles.Subtitle.Render("Q: " + v.question)
		sections = append(sections, questionLine)

		for _, line := range wrapText(v.answer.Text, v.width-4) {
			sections = append(sections, v.styles.Normal.Render(line))
		}

		if v.answer.Degraded {
			notice := v.styles.Degraded.Render("Synthesis unavailable, showing retrieved passages")
			sections = append(sections, notice)
		}
		sections = append(sections, "")

		// Cited sources
		sourcesView := v.sources.View()
		sections = append(sections, sourcesView)
	} else if v.err == nil {
		hint := v.styles.Muted.Render("Ask a question about your indexed documents.")
		sections = append(sections, hint)
	}

	// Status bar at bottom
	sections = append(sections, "")
	statusView := v.statusbar.View()
	sections = append(sections, statusView)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// wrapText breaks text into lines no wider than width, splitting on
// word boundaries.
func wrapText(text string, width int) []string {
	if width < 20 {
		width = 20
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) > width {
				lines = append(lines, current)
				current = word
				continue
			}
			current += " " + word
		}
		lines = append(lines, current)
	}
	return lines
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Allocate space to components
	v.input.SetWidth(width)
	v.sources.SetDimensions(width, height-14) // Reserve space for header, input, answer, status
	v.statusbar.SetWidth(width)
}

// Width returns the current width.
func (v *View) Width() int {
	return v.width
}

// Height returns the current height.
func (v *View) Height() int {
	return v.height
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Question returns the current input value.
func (v *View) Question() string {
	return v.input.Value()
}

// SetQuestion sets the question input value.
func (v *View) SetQuestion(question string) {
	v.input.SetValue(question)
}

// Answer returns the most recent answer, or nil if none.
func (v *View) Answer() *domain.Answer {
	return v.answer
}

// History returns the conversation so far.
func (v *View) History() []domain.ChatTurn {
	return v.history
}

// Sources returns the sources cited by the current answer.
func (v *View) Sources() []domain.SourceRef {
	return v.sources.Sources()
}

// SelectedIndex returns the index of the selected source.
func (v *View) SelectedIndex() int {
	return v.sources.Selected()
}

// SelectedSource returns the currently selected source.
func (v *View) SelectedSource() *domain.SourceRef {
	return v.sources.SelectedSource()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// ClearError clears the current error.
func (v *View) ClearError() {
	v.err = nil
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}

// Reset discards the conversation and returns to input mode.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.sources.SetSources(nil)
	v.question = ""
	v.answer = nil
	v.history = nil
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
