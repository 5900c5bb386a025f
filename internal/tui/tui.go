package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/whisp/internal/models"
)

// RunRecorder runs the live recording screen until the note is saved,
// discarded, or the user quits. It returns the saved note ID, or 0.
func RunRecorder(session Session, opts RecorderOptions) (uint, error) {
	model := NewRecorderModel(session, opts)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	finalModel, err := p.Run()
	if err != nil {
		return 0, err
	}

	m, ok := finalModel.(RecorderModel)
	if !ok {
		return 0, nil
	}
	switch {
	case m.SavedNoteID() > 0:
		fmt.Printf("✅ Note saved - ID: %d\n", m.SavedNoteID())
	case m.Discarded():
		fmt.Println("🗑  Recording discarded.")
	case m.Detached():
		fmt.Println("⏸  Recording kept. Run `whisp recover` to save it.")
	case m.Err() != nil:
		fmt.Printf("❌ Error: %v\n", m.Err())
	}
	return m.SavedNoteID(), nil
}

// RunNotesBrowser shows the notes list. It returns the ID of a note the
// user chose to edit, or 0.
func RunNotesBrowser(notes []models.Note, remove func(id uint) error) (uint, error) {
	p := tea.NewProgram(NewNotesModel(notes, remove), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return 0, err
	}
	if m, ok := finalModel.(NotesModel); ok {
		return m.EditID(), nil
	}
	return 0, nil
}

// RunEditNote opens the editor for one note.
func RunEditNote(note models.Note, save SaveNoteFunc) error {
	p := tea.NewProgram(NewEditNoteModel(note, save), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if m, ok := finalModel.(EditNoteModel); ok {
		if m.Completed() {
			fmt.Printf("✅ Note #%d updated - \"%s\"\n", m.Note().ID, m.Note().Title)
		} else {
			fmt.Println("❌ Edit cancelled.")
		}
	}
	return nil
}
