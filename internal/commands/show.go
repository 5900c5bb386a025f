package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/db"
)

var showCmd = &cobra.Command{
	Use:   "show <note-id>",
	Short: "Print a note with its transcript and transformations",
	Args:  cobra.ExactArgs(1),
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

		note, err := db.GetNoteByID(id)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Printf("#%d %s\n", note.ID, note.Title)
		fmt.Printf("Recorded: %s · %s", note.CreatedAt.Format("02/01/2006 15:04"), formatSeconds(int(note.DurationSeconds)))
		if note.Language != "" {
			fmt.Printf(" · %s", note.Language)
		}
		fmt.Println()
		if note.AudioURL != "" {
			fmt.Printf("Audio: %s\n", note.AudioURL)
		}
		fmt.Println()
		fmt.Println(note.Transcript)

		for _, t := range note.Transformations {
			fmt.Println()
			fmt.Printf("── %s (#%d) %s\n", t.TypeName, t.ID, strings.Repeat("─", 40))
			if t.IsGenerating {
				fmt.Println("(still generating)")
			}
			fmt.Println(t.Text)
		}
	},
}

// parseNoteID parses a positive numeric note ID
func parseNoteID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid note ID '%s'", s)
	}
	return uint(id), nil
}
