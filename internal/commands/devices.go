package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		devices, err := capture.ListCaptureDevices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(devices) == 0 {
			fmt.Println("No capture devices found.")
			return
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, d.Name)
		}
	},
}
