package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/whisp/internal/models"
)

// NotesModel browses saved notes
type NotesModel struct {
	width  int
	height int

	// Note data
	all      []models.Note
	notes    []models.Note // all, filtered by the search query
	selected int           // index in notes

	// UI state
	focus  Focus
	search textinput.Model
	remove func(id uint) error
	err    error

	// Pagination
	currentPage  int
	notesPerPage int

	// set when the user asks to edit a note
	editID uint
}

// Focus represents what UI element has focus
type Focus int

const (
	FocusTable Focus = iota
	FocusSearch
	FocusModal
)

// NewNotesModel creates the browser. remove deletes a note and may be nil
// for a read-only view.
func NewNotesModel(notes []models.Note, remove func(id uint) error) NotesModel {
	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "title or transcript"
	search.CharLimit = 100

	return NotesModel{
		all:          notes,
		notes:        notes,
		focus:        FocusTable,
		search:       search,
		remove:       remove,
		notesPerPage: 10,
	}
}

func (m NotesModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m NotesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// header(2) + pagination(1) + help(1) + borders(4) + margins(4)
		m.notesPerPage = max(m.height-12, 3)
		m.currentPage = m.selected / m.notesPerPage
		return m, nil

	case tea.KeyMsg:
		switch m.focus {
		case FocusSearch:
			return m.handleSearchKeys(msg)
		case FocusModal:
			return m.handleConfirmKeys(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "esc":
			if m.search.Value() != "" {
				m.search.SetValue("")
				m.applyFilter()
				return m, nil
			}
			return m, tea.Quit

		case "up", "k":
			return m.moveSelectionUp(), nil

		case "down", "j":
			return m.moveSelectionDown(), nil

		case "left", "h":
			return m.prevPage(), nil

		case "right", "l":
			return m.nextPage(), nil

		case "/":
			m.focus = FocusSearch
			return m, m.search.Focus()

		case "e", "enter":
			if note, ok := m.Selected(); ok {
				m.editID = note.ID
				return m, tea.Quit
			}

		case "d":
			if _, ok := m.Selected(); ok && m.remove != nil {
				m.focus = FocusModal
			}
		}
	}

	return m, nil
}

// handleSearchKeys filters as the user types
func (m NotesModel) handleSearchKeys(msg tea.KeyMsg) (NotesModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.search.SetValue("")
		m.search.Blur()
		m.focus = FocusTable
		m.applyFilter()
		return m, nil

	case "enter":
		m.search.Blur()
		m.focus = FocusTable
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m NotesModel) handleConfirmKeys(msg tea.KeyMsg) (NotesModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		note, _ := m.Selected()
		m.focus = FocusTable
		if err := m.remove(note.ID); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		kept := m.all[:0:0]
		for _, n := range m.all {
			if n.ID != note.ID {
				kept = append(kept, n)
			}
		}
		m.all = kept
		m.applyFilter()
	case "n", "N", "esc":
		m.focus = FocusTable
	}
	return m, nil
}

// applyFilter rebuilds the visible list from the query and clamps the
// selection.
func (m *NotesModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	if query == "" {
		m.notes = m.all
	} else {
		m.notes = nil
		for _, n := range m.all {
			if strings.Contains(strings.ToLower(n.Title), query) ||
				strings.Contains(strings.ToLower(n.Transcript), query) {
				m.notes = append(m.notes, n)
			}
		}
	}
	m.selected = min(m.selected, max(len(m.notes)-1, 0))
	m.currentPage = m.selected / m.notesPerPage
}

// Selected returns the highlighted note.
func (m NotesModel) Selected() (models.Note, bool) {
	if m.selected < 0 || m.selected >= len(m.notes) {
		return models.Note{}, false
	}
	return m.notes[m.selected], true
}

// EditID is the note the user chose to edit, or 0.
func (m NotesModel) EditID() uint { return m.editID }

func (m NotesModel) moveSelectionUp() NotesModel {
	if m.selected > 0 {
		m.selected--
		if m.selected < m.currentPage*m.notesPerPage && m.currentPage > 0 {
			m.currentPage--
		}
	}
	return m
}

func (m NotesModel) moveSelectionDown() NotesModel {
	if m.selected < len(m.notes)-1 {
		m.selected++
		pageEnd := min((m.currentPage+1)*m.notesPerPage-1, len(m.notes)-1)
		if m.selected > pageEnd && m.currentPage < m.pages()-1 {
			m.currentPage++
		}
	}
	return m
}

func (m NotesModel) prevPage() NotesModel {
	if m.currentPage > 0 {
		m.currentPage--
		m.selected = m.currentPage * m.notesPerPage
	}
	return m
}

func (m NotesModel) nextPage() NotesModel {
	if m.currentPage < m.pages()-1 {
		m.currentPage++
		m.selected = m.currentPage * m.notesPerPage
	}
	return m
}

func (m NotesModel) pages() int {
	return (len(m.notes) + m.notesPerPage - 1) / m.notesPerPage
}

// View renders the TUI
func (m NotesModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	leftWidth := m.width * 55 / 100
	rightWidth := m.width - leftWidth - 1

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderNoteTable(leftWidth),
		" ",
		m.renderNoteDetails(rightWidth),
	)

	var bottom string
	switch m.focus {
	case FocusSearch:
		bottom = m.renderSearchBar()
	case FocusModal:
		bottom = m.renderConfirmBar()
	default:
		bottom = m.renderHelpBar()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		"",
		content,
		"",
		bottom,
	)
}

func (m NotesModel) renderNoteTable(width int) string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorAccentBright))

	header := "🎙 Notes"
	if q := m.search.Value(); q != "" {
		header += fmt.Sprintf("  matching %q", q)
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	if len(m.notes) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true)
		b.WriteString(emptyStyle.Render("No notes found"))
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Width(width).
			Render(b.String())
	}

	columnHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorAccentBright)).
		Padding(0, 1)

	idWidth := 5
	lengthWidth := 8
	dateWidth := 10
	titleWidth := max(width-4-idWidth-lengthWidth-dateWidth-6, 20)

	headers := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		idWidth, "ID",
		titleWidth, "TITLE",
		lengthWidth, "LENGTH",
		dateWidth, "DATE")
	b.WriteString(columnHeaderStyle.Render(headers))
	b.WriteString("\n\n")

	start := m.currentPage * m.notesPerPage
	end := min(start+m.notesPerPage, len(m.notes))

	for i := start; i < end; i++ {
		note := m.notes[i]

		title := truncate(note.Title, titleWidth-1)
		length := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).
			Render(fmt.Sprintf("%-*s", lengthWidth, formatElapsed(int(note.DurationSeconds))))
		date := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText)).
			Render(note.CreatedAt.Format("02/01/2006"))

		row := fmt.Sprintf("%-*s %-*s %s %s",
			idWidth, fmt.Sprintf("#%d", note.ID),
			titleWidth, title,
			length,
			date)

		if i == m.selected {
			selectedStyle := lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(ColorAccentMain)).
				Bold(true).
				Padding(0, 1)
			b.WriteString(selectedStyle.Render(row))
		} else {
			b.WriteString(" " + row)
		}
		b.WriteString("\n")
	}

	if m.notesPerPage < len(m.notes) {
		pageInfo := fmt.Sprintf("Page %d/%d (%d notes)", m.currentPage+1, m.pages(), len(m.notes))
		pageStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorHelpText)).
			Align(lipgloss.Center).
			Width(width - 2).
			MarginTop(1)
		b.WriteString(pageStyle.Render(pageInfo))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Width(width).
		Render(b.String())
}

func (m NotesModel) renderNoteDetails(width int) string {
	var b strings.Builder

	note, ok := m.Selected()
	if !ok {
		logoStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorAccentMain)).
			Bold(true).
			Align(lipgloss.Center).
			Width(width)
		b.WriteString(logoStyle.Render("whisp"))

		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Align(lipgloss.Center).
			Width(width).
			MarginTop(2)
		b.WriteString("\n")
		b.WriteString(emptyStyle.Render("Record a note with `whisp record`"))
	} else {
		titleStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorPrimaryText)).
			Width(width)
		b.WriteString(titleStyle.Render(note.Title))
		b.WriteString("\n\n")

		meta := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
		b.WriteString(meta.Render(fmt.Sprintf("Recorded %s · %s",
			note.CreatedAt.Format("02/01/2006 15:04"), formatElapsed(int(note.DurationSeconds)))))
		b.WriteString("\n")
		if note.Language != "" {
			b.WriteString(meta.Render("Language: " + note.Language))
			b.WriteString("\n")
		}

		b.WriteString("\n")
		transcript := note.Transcript
		if transcript == "" {
			transcript = "(no speech detected)"
		}
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorPrimaryText)).
			Width(width - 2).
			Render(transcript))

		if len(note.Transformations) > 0 {
			b.WriteString("\n\n")
			b.WriteString(lipgloss.NewStyle().Bold(true).
				Foreground(lipgloss.Color(ColorAccentBright)).
				Render("Transformations"))
			for _, t := range note.Transformations {
				b.WriteString("\n")
				label := t.TypeName
				if t.IsGenerating {
					label += " (generating)"
				}
				b.WriteString(meta.Render(fmt.Sprintf("• %s #%d", label, t.ID)))
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render("✗ " + m.err.Error()))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Width(width).
		Render(b.String())
}

func (m NotesModel) renderSearchBar() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Background(lipgloss.Color(ColorBorder)).
		Padding(0, 1).
		Width(m.width - 2).
		Render(m.search.View())
}

func (m NotesModel) renderConfirmBar() string {
	note, _ := m.Selected()
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorWarning)).
		Bold(true).
		Align(lipgloss.Center).
		Width(m.width).
		Render(fmt.Sprintf("Delete #%d %q?  y / n", note.ID, truncate(note.Title, 40)))
}

func (m NotesModel) renderHelpBar() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Align(lipgloss.Center).
		Width(m.width).
		Render("↑/↓ nav · ←/→ page · / search · e edit · d delete · q quit")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
