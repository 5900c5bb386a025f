package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.wav>",
	Short: "Turn an existing WAV recording into a note",
	Long: `Upload a WAV file through the same save pipeline as a finished recording:
the audio is stored, transcribed, and saved as a note. Counts against the
recording minutes like a live recording does.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		pipeline, err := newPipeline(newQuota())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		language, _ := cmd.Flags().GetString("language")
		if language == "" {
			language = cfg.Recorder.Language
		}

		fmt.Printf("⬆️  Uploading %s...\n", args[0])
		note, err := pipeline.ImportFile(cmd.Context(), args[0], language)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("✅ Note saved - ID: %d \"%s\" (%s)\n", note.ID, note.Title, formatSeconds(int(note.DurationSeconds)))
	},
}

func init() {
	uploadCmd.Flags().StringP("language", "l", "", "Transcription language hint, e.g. en, de")
}
