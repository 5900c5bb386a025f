package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/whisp/internal/models"
)

// SaveNoteFunc persists an edited title and transcript.
type SaveNoteFunc func(id uint, title, transcript string) (*models.Note, error)

type editField int

const (
	fieldTitle editField = iota
	fieldTranscript
)

// EditNoteModel edits a note's title and transcript
type EditNoteModel struct {
	note  models.Note
	save  SaveNoteFunc
	title textinput.Model
	body  textarea.Model
	field editField

	width  int
	height int

	err           error
	validationErr string
	completed     bool
	cancelled     bool

	// Save confirmation modal
	showSaveModal   bool
	saveModalChoice bool // true for Yes, false for No
}

// NewEditNoteModel creates an editor prefilled with the note.
func NewEditNoteModel(note models.Note, save SaveNoteFunc) EditNoteModel {
	title := textinput.New()
	title.Placeholder = "Note title (required)"
	title.CharLimit = 200
	title.Width = 60
	title.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimaryText))
	title.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPlaceholder))
	title.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright))
	title.SetValue(note.Title)
	title.Focus()

	body := textarea.New()
	body.Placeholder = "Transcript"
	body.ShowLineNumbers = false
	body.CharLimit = 0
	body.SetWidth(60)
	body.SetHeight(12)
	body.SetValue(note.Transcript)
	body.Blur()

	return EditNoteModel{
		note:  note,
		save:  save,
		title: title,
		body:  body,
		field: fieldTitle,
	}
}

// Init initializes the model
func (m EditNoteModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m EditNoteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		w := min(max(m.width-10, 30), 100)
		m.title.Width = w
		m.body.SetWidth(w)
		m.body.SetHeight(max(m.height-14, 4))
		return m, nil

	case tea.KeyMsg:
		if m.showSaveModal {
			switch msg.String() {
			case "left", "right":
				m.saveModalChoice = !m.saveModalChoice
				return m, nil
			case "y", "Y":
				m.saveModalChoice = true
				return m.handleSaveChoice()
			case "n", "N":
				m.saveModalChoice = false
				return m.handleSaveChoice()
			case "enter":
				return m.handleSaveChoice()
			case "esc":
				m.showSaveModal = false
				return m, nil
			case "ctrl+c":
				m.cancelled = true
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			m.cancelled = true
			return m, tea.Quit

		case "esc":
			if !m.hasChanges() {
				m.cancelled = true
				return m, tea.Quit
			}
			m.showSaveModal = true
			m.saveModalChoice = true
			return m, nil

		case "ctrl+s":
			return m.saveNote()

		case "tab", "shift+tab":
			return m.switchField()

		case "enter":
			if m.field == fieldTitle {
				return m.switchField()
			}
		}
	}

	var cmd tea.Cmd
	if m.field == fieldTitle {
		m.title, cmd = m.title.Update(msg)
		if strings.TrimSpace(m.title.Value()) != "" {
			m.validationErr = ""
		}
	} else {
		m.body, cmd = m.body.Update(msg)
	}
	return m, cmd
}

func (m EditNoteModel) switchField() (EditNoteModel, tea.Cmd) {
	if m.field == fieldTitle {
		m.field = fieldTranscript
		m.title.Blur()
		return m, m.body.Focus()
	}
	m.field = fieldTitle
	m.body.Blur()
	return m, m.title.Focus()
}

func (m EditNoteModel) hasChanges() bool {
	return m.title.Value() != m.note.Title || m.body.Value() != m.note.Transcript
}

func (m EditNoteModel) saveNote() (EditNoteModel, tea.Cmd) {
	if strings.TrimSpace(m.title.Value()) == "" {
		m.validationErr = "Note title is required"
		return m, nil
	}
	if !m.hasChanges() {
		m.cancelled = true
		return m, tea.Quit
	}

	note, err := m.save(m.note.ID, m.title.Value(), m.body.Value())
	if err != nil {
		m.err = err
		return m, nil
	}
	m.note = *note
	m.completed = true
	return m, tea.Quit
}

func (m EditNoteModel) handleSaveChoice() (EditNoteModel, tea.Cmd) {
	m.showSaveModal = false
	if m.saveModalChoice {
		return m.saveNote()
	}
	m.cancelled = true
	return m, tea.Quit
}

// View renders the TUI
func (m EditNoteModel) View() string {
	if m.cancelled || m.completed {
		return ""
	}

	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorAccentBright)).
		Render(fmt.Sprintf("✎ Edit note #%d", m.note.ID))
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(m.label("Title", m.field == fieldTitle))
	b.WriteString("\n")
	b.WriteString(m.title.View())
	b.WriteString("\n\n")

	b.WriteString(m.label("Transcript", m.field == fieldTranscript))
	b.WriteString("\n")
	b.WriteString(m.body.View())

	if m.validationErr != "" {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning)).Render("⚠ " + m.validationErr))
	}
	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render("✗ " + m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Render("tab switch field · ctrl+s save · esc close"))

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Padding(1).
		Render(b.String())

	if m.showSaveModal {
		return m.renderSaveModal()
	}
	return panel
}

func (m EditNoteModel) label(text string, focused bool) string {
	color := ColorSecondaryText
	if focused {
		color = ColorAccentBright
	}
	return lipgloss.NewStyle().Bold(focused).Foreground(lipgloss.Color(color)).Render(text)
}

func (m EditNoteModel) renderSaveModal() string {
	var content strings.Builder
	content.WriteString("Save changes?\n\n")

	yesStyle := lipgloss.NewStyle().Padding(0, 2)
	noStyle := lipgloss.NewStyle().Padding(0, 2)
	if m.saveModalChoice {
		yesStyle = yesStyle.
			Background(lipgloss.Color(ColorAccentBright)).
			Foreground(lipgloss.Color("#000000")).
			Bold(true)
	} else {
		noStyle = noStyle.
			Background(lipgloss.Color(ColorError)).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)
	}

	content.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, yesStyle.Render("Yes"), "   ", noStyle.Render("No")))
	content.WriteString("\n\n")
	content.WriteString("← → or Y/N to choose, Enter to confirm\nEsc to cancel")

	modal := lipgloss.NewStyle().
		Width(50).
		Height(7).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentBright)).
		Background(lipgloss.Color(ColorCardBackground)).
		Padding(1).
		Align(lipgloss.Center).
		Render(content.String())

	return lipgloss.Place(max(m.width, 52), max(m.height, 9), lipgloss.Center, lipgloss.Center, modal)
}

// Note returns the note as last saved.
func (m EditNoteModel) Note() models.Note { return m.note }

// Completed reports whether the edit was saved.
func (m EditNoteModel) Completed() bool { return m.completed }
