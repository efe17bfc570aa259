// Package documents provides the corpus document list view for the TUI.
package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/messages"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui/styles"
	"github.com/veritas-labs/lexquery/internal/connectors/filesystem"
	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// ActionOption represents a document action.
type ActionOption int

const (
	ActionShowContent ActionOption = iota
	ActionShowDetails
	ActionDelete
	ActionCancel
)

// View is the corpus document list view.
type View struct {
	styles          *styles.Styles
	documentService driving.DocumentService
	ingestService   driving.IngestService

	documents    []domain.DocumentInfo
	selected     int
	width        int
	height       int
	ready        bool
	err          error
	loading      bool
	showingMenu  bool
	menuSelected ActionOption
	scrollOffset int

	addingFile bool
	pathInput  textinput.Model
	statusMsg  string
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, documentService driving.DocumentService, ingestService driving.IngestService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "/path/to/document.md"
	ti.CharLimit = 512
	ti.Width = 50

	return &View{
		styles:          s,
		documentService: documentService,
		ingestService:   ingestService,
		documents:       []domain.DocumentInfo{},
		pathInput:       ti,
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Reload clears state and reloads the corpus listing.
func (v *View) Reload() tea.Cmd {
	v.loading = true
	v.selected = 0
	v.scrollOffset = 0
	v.err = nil
	v.showingMenu = false
	v.addingFile = false
	v.statusMsg = ""
	return v.loadDocuments()
}

// loadDocuments returns a command that loads the corpus listing.
func (v *View) loadDocuments() tea.Cmd {
	return func() tea.Msg {
		if v.documentService == nil {
			return messages.DocumentsLoaded{Err: fmt.Errorf("document service not available")}
		}

		docs, err := v.documentService.List(context.Background())
		return messages.DocumentsLoaded{
			Documents: docs,
			Err:       err,
		}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		if v.addingFile {
			return v.handleAddKeyMsg(msg)
		}
		if v.showingMenu {
			return v.handleMenuKeyMsg(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.documents = msg.Documents
			v.err = nil
			if v.selected >= len(v.documents) {
				v.selected = 0
			}
		}
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.statusMsg = fmt.Sprintf("Deleted %s", msg.DocumentID)
		cmd := v.loadDocuments()
		return v, cmd

	case messages.DocumentIngested:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.statusMsg = fmt.Sprintf("Indexed %s (%d chunks)", msg.Title, msg.ChunkCount)
		cmd := v.loadDocuments()
		return v, cmd

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case "down", "j":
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
	case "enter":
		if len(v.documents) > 0 {
			v.showingMenu = true
			v.menuSelected = ActionShowContent
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "a":
		// Add a file to the corpus by path
		v.addingFile = true
		v.statusMsg = ""
		v.pathInput.Reset()
		return v, v.pathInput.Focus()
	case "r":
		// Reload documents
		v.loading = true
		cmd := v.loadDocuments()
		return v, cmd
	}

	return v, nil
}

// handleAddKeyMsg handles key presses while entering a file path.
func (v *View) handleAddKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyEsc:
		v.addingFile = false
		v.pathInput.Blur()
		return v, nil
	case tea.KeyEnter:
		path := v.pathInput.Value()
		if path == "" {
			return v, nil
		}
		v.addingFile = false
		v.pathInput.Blur()
		cmd := v.ingestFile(path)
		return v, cmd
	default:
		// Other keys go to the path input
	}

	var cmd tea.Cmd
	v.pathInput, cmd = v.pathInput.Update(msg)
	return v, cmd
}

// handleMenuKeyMsg handles key presses in action menu mode.
func (v *View) handleMenuKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.menuSelected > ActionShowContent {
			v.menuSelected--
		}
	case "down", "j":
		if v.menuSelected < ActionCancel {
			v.menuSelected++
		}
	case "enter":
		return v.handleMenuSelect()
	case "esc":
		v.showingMenu = false
	}

	return v, nil
}

// handleMenuSelect handles selection of an action.
func (v *View) handleMenuSelect() (*View, tea.Cmd) {
	if v.selected >= len(v.documents) {
		v.showingMenu = false
		return v, nil
	}

	doc := v.documents[v.selected]

	switch v.menuSelected {
	case ActionShowContent:
		v.showingMenu = false
		return v, func() tea.Msg {
			return messages.DocumentSelected{
				DocumentID: doc.ID,
				Title:      doc.Title,
				ReturnTo:   messages.ViewDocuments,
			}
		}
	case ActionShowDetails:
		v.showingMenu = false
		cmd := v.loadDocDetails(doc.ID)
		return v, cmd
	case ActionDelete:
		v.showingMenu = false
		cmd := v.deleteDocument(doc.ID)
		return v, cmd
	case ActionCancel:
		v.showingMenu = false
	}

	return v, nil
}

// loadDocDetails returns a command that loads document details.
func (v *View) loadDocDetails(docID string) tea.Cmd {
	return func() tea.Msg {
		if v.documentService == nil {
			return messages.ErrorOccurred{Err: fmt.Errorf("document service not available")}
		}

		details, err := v.documentService.GetDetails(context.Background(), docID)
		return messages.DocumentDetailsLoaded{
			DocumentID: docID,
			Details:    details,
			Err:        err,
		}
	}
}

// deleteDocument returns a command that removes the document from the corpus.
func (v *View) deleteDocument(docID string) tea.Cmd {
	return func() tea.Msg {
		if v.documentService == nil {
			return messages.DocumentDeleted{DocumentID: docID, Err: fmt.Errorf("document service not available")}
		}

		err := v.documentService.Delete(context.Background(), docID)
		return messages.DocumentDeleted{DocumentID: docID, Err: err}
	}
}

// ingestFile returns a command that reads the file and indexes it.
func (v *View) ingestFile(path string) tea.Cmd {
	return func() tea.Msg {
		if v.ingestService == nil {
			return messages.DocumentIngested{Title: filepath.Base(path), Err: fmt.Errorf("ingest service not available")}
		}

		source := filesystem.New(filepath.Dir(path))
		raw, err := source.Load(path)
		if err != nil {
			return messages.DocumentIngested{Title: filepath.Base(path), Err: err}
		}
		if raw == nil {
			return messages.DocumentIngested{Title: filepath.Base(path), Err: fmt.Errorf("file type not supported")}
		}

		result, err := v.ingestService.Ingest(context.Background(), raw)
		if err != nil {
			return messages.DocumentIngested{Title: filepath.Base(path), Err: err}
		}
		return messages.DocumentIngested{Title: result.Title, ChunkCount: result.ChunkCount}
	}
}

// adjustScroll adjusts the scroll offset to keep the selected item visible.
func (v *View) adjustScroll() {
	visibleItems := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visibleItems {
		v.scrollOffset = v.selected - visibleItems + 1
	}
}

// visibleItemCount returns the number of items that can be displayed.
func (v *View) visibleItemCount() int {
	// Reserve lines for title, separator, help, and padding
	reserved := 8
	available := v.height - reserved
	if available < 1 {
		available = 1
	}
	return available
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	// Title
	title := fmt.Sprintf("Documents (%d)", len(v.documents))
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n\n")

	// Add-file input overlay
	if v.addingFile {
		b.WriteString(v.styles.Subtitle.Render("Add file: "))
		b.WriteString(v.pathInput.View())
		b.WriteString("\n\n")
		b.WriteString(v.styles.Help.Render("[enter] ingest  [esc] cancel"))
		return b.String()
	}

	// Loading state
	if v.loading {
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	// Error state
	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	// Empty state
	if len(v.documents) == 0 {
		b.WriteString(v.styles.Muted.Render("No documents in the corpus."))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	// Action menu overlay
	if v.showingMenu {
		b.WriteString(v.renderActionMenu())
		return b.String()
	}

	// Documents list
	visibleItems := v.visibleItemCount()
	for i := v.scrollOffset; i < len(v.documents) && i < v.scrollOffset+visibleItems; i++ {
		line := v.renderDocument(i, &v.documents[i])
		b.WriteString(line)
		b.WriteString("\n")
	}

	// Scroll indicator
	if len(v.documents) > visibleItems {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1,
			min(v.scrollOffset+visibleItems, len(v.documents)),
			len(v.documents))))
	}

	// Status line after ingest or delete
	if v.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

// renderDocument renders a single document line.
func (v *View) renderDocument(index int, doc *domain.DocumentInfo) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	title := doc.Title
	if title == "" {
		title = doc.ID
	}

	// Truncate title if needed
	maxTitleLen := v.width/2 - 4
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	chunks := fmt.Sprintf("%d chunks", doc.ChunkCount)

	// Truncate URI if needed
	uri := doc.URI
	maxURILen := v.width/2 - 16
	if maxURILen < 10 {
		maxURILen = 10
	}
	if len(uri) > maxURILen {
		uri = "..." + uri[len(uri)-maxURILen+3:]
	}

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %-10s  %s", indicator, maxTitleLen, title, chunks, uri))
	}

	return v.styles.Normal.Render(indicator) +
		v.styles.Normal.Render(fmt.Sprintf("%-*s  ", maxTitleLen, title)) +
		v.styles.Muted.Render(fmt.Sprintf("%-10s  ", chunks)) +
		v.styles.Muted.Render(uri)
}

// renderActionMenu renders the action menu overlay.
func (v *View) renderActionMenu() string {
	var b strings.Builder

	// Show selected document context
	if v.selected < len(v.documents) {
		doc := v.documents[v.selected]
		title := doc.Title
		if title == "" {
			title = doc.ID
		}
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Actions for: %s", title)))
		b.WriteString("\n\n")
	}

	// Menu options
	options := []struct {
		action ActionOption
		label  string
	}{
		{ActionShowContent, "Show Content"},
		{ActionShowDetails, "Show Details"},
		{ActionDelete, "Delete"},
		{ActionCancel, "Cancel"},
	}

	for _, opt := range options {
		indicator := "  "
		if v.menuSelected == opt.action {
			indicator = "> "
			b.WriteString(v.styles.Selected.Render(fmt.Sprintf("%s%s", indicator, opt.label)))
		} else {
			b.WriteString(v.styles.Normal.Render(fmt.Sprintf("%s%s", indicator, opt.label)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))

	return b.String()
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] navigate  [enter] actions  [a] add file  [r] reload  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.DocumentInfo {
	return v.documents
}

// SelectedIndex returns the currently selected document index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.DocumentInfo {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// IsShowingMenu returns true if the action menu is visible.
func (v *View) IsShowingMenu() bool {
	return v.showingMenu
}

// IsAddingFile returns true if the add-file input is visible.
func (v *View) IsAddingFile() bool {
	return v.addingFile
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
