package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/db"
)

var rmCmd = &cobra.Command{
	Use:     "rm <note-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a note and its transformations",
	Args:    cobra.ExactArgs(1),
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
		if err := db.DeleteNote(id); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("🗑  Deleted note #%d: %s\n", note.ID, note.Title)
	},
}
