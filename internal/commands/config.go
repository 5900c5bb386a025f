package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and WHISP_* environment
variables are applied. Credentials are masked unless --show-secrets is given.
The output can be saved as a config file.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := *cfg
		if show, _ := cmd.Flags().GetBool("show-secrets"); !show {
			c = c.Redacted()
		}
		out, err := c.YAML()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Print(string(out))
	},
}

func init() {
	configCmd.Flags().Bool("show-secrets", false, "Print API keys and secrets in clear text")
}
