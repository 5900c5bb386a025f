package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/quota"
	"github.com/balkashynov/whisp/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform <note-id> <type>",
	Short: "Rewrite a note's transcript with an LLM",
	Long: `Rewrite a note's transcript and save the result with the note.
The text is printed as it is generated.

Types:
` + transformTypes() + `
Example:
  whisp transform 42 summary`,
	Args: cobra.ExactArgs(2),
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
		if _, err := transform.Lookup(args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		t, err := newTransformer(newQuota())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		result, err := t.Run(cmd.Context(), id, args[1], func(chunk string) {
			fmt.Print(chunk)
		})
		fmt.Println()
		if err != nil {
			if errors.Is(err, quota.ErrTransformationsExhausted) {
				fmt.Println("❌ No transformations left today. Set byok: true with your own API key to lift the limit.")
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("\n✅ Saved as transformation #%d on note #%d\n", result.ID, id)
	},
}

func transformTypes() string {
	var b strings.Builder
	for _, t := range transform.Types {
		fmt.Fprintf(&b, "  %-12s %s\n", t.Value, t.Name)
	}
	return b.String()
}
