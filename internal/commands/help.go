package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show comprehensive help for whisp",
	Long:  `Display detailed help for all whisp commands and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		showCustomHelp()
	},
}

func showCustomHelp() {
	fmt.Print(`
██╗    ██╗██╗  ██╗██╗███████╗██████╗
██║    ██║██║  ██║██║██╔════╝██╔══██╗
██║ █╗ ██║███████║██║███████╗██████╔╝
██║███╗██║██╔══██║██║╚════██║██╔═══╝
╚███╔███╔╝██║  ██║██║███████║██║
 ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝╚══════╝╚═╝

whisp - terminal voice notes

COMMANDS:

  record                  Record a voice note with the live recorder
    --system-audio        Also capture system audio
    -l, --language        Transcription language hint (en, de, ...)
    --no-ui               Record until Ctrl+C, then save

    Recorder keys:
      space         Pause / resume
      s, enter      Stop and save
      r             Retry a failed save
      d             Discard a stopped recording
      q, esc        Quit (asks first while recording)

  recover                 Save or discard an interrupted recording
    --save                Save without opening the recorder
    --discard             Throw it away

  upload <file.wav>       Transcribe an existing WAV file into a note
    -l, --language        Transcription language hint

  ls                      Browse notes with interactive UI
    --today               Show only today's notes
    -n, --limit           Limit number of notes
    --no-ui               Simple text output
    --json                JSON output

    Quick actions:
      ↑/↓           Navigate notes
      ←/→           Change page
      /             Search
      e, enter      Edit selected note
      d             Delete selected note
      esc/q         Quit

  search <query>          Search notes by title or transcript
    --json                JSON output

  show <id>               Print a note, its transcript and transformations

  edit <id>               Edit a note's title or transcript
    --no-ui               Edit via --title / --transcript flags

  rm <id>                 Delete a note

  transform <id> <type>   Rewrite a transcript: summary, quick-note, list, blog, email

  quota                   Show recording minutes and transformations left
  devices                 List audio capture devices
  config                  Print the effective configuration
    --show-secrets        Do not mask API keys
  version                 Print version information
  help                    Show this help

GLOBAL FLAGS:
  --config <file>         Config file (default $XDG_CONFIG_HOME/whisp/config.yaml)
  --debug                 Verbose logs

`)
}
