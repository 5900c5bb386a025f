package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/config"
	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	debug      bool

	cfg *config.Config
	log = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "whisp",
	Short: "A terminal voice-note recorder",
	Long: `whisp records voice notes from the terminal, keeps every few seconds of audio
on disk while you talk, and turns finished recordings into transcribed notes.
Crashed or interrupted recordings are recovered on the next run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if debug {
			loaded.Log.Debug = true
		}
		cfg = loaded

		logger, err := logging.Build(cfg.Log.Debug, logFile())
		if err != nil {
			return err
		}
		log = logger.With(zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
		_ = db.Close()
	},
}

// logFile is where logs go while the terminal belongs to the UI.
func logFile() string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return filepath.Join(cfg.DataDir, "whisp.log")
}

// initDB opens the notes database
func initDB() error {
	if err := db.Initialize(cfg.DatabasePath()); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("whisp %s (commit %s, built %s)\n", version, commit, date)
	},
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/whisp/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose console-format logs")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(helpCmd)
	rootCmd.AddCommand(versionCmd)
}
