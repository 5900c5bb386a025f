package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/tui"
)

var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List notes",
	Long:    "Browse saved notes interactively, or print them with --no-ui / --json",
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		opts := db.NoteQueryOptions{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		if today, _ := cmd.Flags().GetBool("today"); today {
			now := time.Now()
			start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			opts.Since = &start
		}

		notes, err := db.GetNotes(opts)
		if err != nil {
			fmt.Printf("Error fetching notes: %v\n", err)
			return
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			printNotesJSON(notes)
			return
		}
		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			if len(notes) == 0 {
				fmt.Println("No notes found. Use 'whisp record' to record your first note.")
				return
			}
			printNotesTable(notes)
			return
		}

		editID, err := tui.RunNotesBrowser(notes, db.DeleteNote)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if editID > 0 {
			editNote(editID)
		}
	},
}

// printNotesTable writes one row per note for 80-column terminals
func printNotesTable(notes []models.Note) {
	fmt.Printf("%-5s %-46s %-8s %s\n", "ID", "TITLE", "LENGTH", "DATE")
	fmt.Println(strings.Repeat("-", 80))

	for _, note := range notes {
		title := note.Title
		if len([]rune(title)) > 44 {
			title = string([]rune(title)[:41]) + "..."
		}
		fmt.Printf("%-5d %-46s %-8s %s\n",
			note.ID,
			title,
			formatSeconds(int(note.DurationSeconds)),
			note.CreatedAt.Format("02/01/2006 15:04"))
	}
}

func printNotesJSON(notes []models.Note) {
	if notes == nil {
		notes = []models.Note{}
	}
	out, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func init() {
	listCmd.Flags().Bool("today", false, "Show only today's notes")
	listCmd.Flags().IntP("limit", "n", 0, "Limit number of notes")
	listCmd.Flags().Bool("no-ui", false, "Simple text output")
	listCmd.Flags().Bool("json", false, "JSON output")
}
