package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show recording minutes and transformations left",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		u, err := newQuota().Usage()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Printf("Usage in the last %s:\n", u.Window)
		if u.Unlimited {
			fmt.Printf("  Recording:        %.1f min (unlimited, own API key)\n", u.MinutesUsed)
			fmt.Printf("  Transformations:  %d (unlimited, own API key)\n", u.TransformationsUsed)
			return
		}
		fmt.Printf("  Recording:        %.1f / %d min\n", u.MinutesUsed, u.MinutesLimit)
		fmt.Printf("  Transformations:  %d / %d\n", u.TransformationsUsed, u.TransformationsLimit)
	},
}
