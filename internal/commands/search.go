package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/db"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search notes by title or transcript",
	Long: `Search notes by title or transcript. Matching is case insensitive.

Examples:
  whisp search groceries
  whisp search "team meeting" --json`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		query := strings.Join(args, " ")

		opts := db.NoteQueryOptions{}
		opts.OrderBy, _ = cmd.Flags().GetString("order")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		notes, err := db.SearchNotes(query, opts)
		if err != nil {
			fmt.Printf("Error searching notes: %v\n", err)
			return
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			printNotesJSON(notes)
			return
		}

		fmt.Printf("Search results for '%s' (%d found):\n", query, len(notes))
		if len(notes) == 0 {
			fmt.Println("No notes found matching your search.")
			return
		}
		fmt.Println()
		printNotesTable(notes)
	},
}

func init() {
	searchCmd.Flags().StringP("order", "o", "", "Order by (e.g., 'created_at ASC')")
	searchCmd.Flags().IntP("limit", "n", 0, "Limit number of results")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}
