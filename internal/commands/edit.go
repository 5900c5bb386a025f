package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/tui"
)

var editCmd = &cobra.Command{
	Use:   "edit <note-id>",
	Short: "Edit a note's title or transcript",
	Long: `Edit a note in interactive mode, or set fields directly with --no-ui.

Usage:
  whisp edit 42                              - Open the editor for note 42
  whisp edit 42 --no-ui --title "Groceries"  - Rename note 42`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		id, err := parseNoteID(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			var req db.UpdateNoteRequest
			if cmd.Flags().Changed("title") {
				title, _ := cmd.Flags().GetString("title")
				req.Title = &title
			}
			if cmd.Flags().Changed("transcript") {
				transcript, _ := cmd.Flags().GetString("transcript")
				req.Transcript = &transcript
			}
			note, err := db.UpdateNote(id, req)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			fmt.Printf("✅ Note #%d updated - \"%s\"\n", note.ID, note.Title)
			return
		}

		editNote(id)
	},
}

// editNote opens the editor for one note
func editNote(id uint) {
	note, err := db.GetNoteByID(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if err := tui.RunEditNote(*note, saveNoteEdits); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func saveNoteEdits(id uint, title, transcript string) (*models.Note, error) {
	return db.UpdateNote(id, db.UpdateNoteRequest{Title: &title, Transcript: &transcript})
}

func init() {
	editCmd.Flags().Bool("no-ui", false, "Edit via command line flags")
	editCmd.Flags().String("title", "", "New title (with --no-ui)")
	editCmd.Flags().String("transcript", "", "New transcript (with --no-ui)")
}
