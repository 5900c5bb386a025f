package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/balkashynov/whisp/internal/recorder"
	"github.com/balkashynov/whisp/internal/tui"
	"github.com/balkashynov/whisp/internal/visual"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a voice note",
	Long: `Record a voice note from the microphone. Opens the live recorder by default.

Audio is written to disk every few seconds, so a crash or closed terminal
loses at most the last few seconds. If an unfinished recording is found it
is shown first so you can save or discard it.

Examples:
  whisp record                  # Interactive recorder
  whisp record --system-audio   # Also capture what the computer is playing
  whisp record --no-ui          # Record until Ctrl+C, then save`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		opts := recorder.StartOptions{
			CaptureSystemAudio: cfg.Recorder.CaptureSystemAudio,
			Language:           cfg.Recorder.Language,
		}
		if cmd.Flags().Changed("system-audio") {
			opts.CaptureSystemAudio, _ = cmd.Flags().GetBool("system-audio")
		}
		if lang, _ := cmd.Flags().GetString("language"); lang != "" {
			opts.Language = lang
		}

		noUI, _ := cmd.Flags().GetBool("no-ui")
		if noUI {
			if err := recordHeadless(cmd.Context(), opts); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			return
		}

		feed := visual.NewFeed(cfg.Visual.Capacity, cfg.Visual.Period)
		c := newController(feed)

		res, err := recoverInto(cmd.Context(), c)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		_, err = tui.RunRecorder(c, tui.RecorderOptions{
			Start:  opts,
			Feed:   feed,
			Scale:  cfg.Visual.Scale,
			Resume: res != nil,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	},
}

// recordHeadless records until interrupted, then stops and saves.
func recordHeadless(parent context.Context, opts recorder.StartOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newController(nil)
	if res, err := recoverInto(parent, c); err != nil {
		return err
	} else if res != nil {
		return fmt.Errorf("an unfinished %s recording is waiting; run `whisp recover` first", formatSeconds(res.ElapsedSeconds))
	}

	if err := c.Start(ctx, opts); err != nil {
		return err
	}
	fmt.Println("🎙  Recording... press Ctrl+C to stop.")

	events := c.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case e := <-events:
			switch e.Kind {
			case recorder.EventWarning:
				fmt.Printf("⚠️  %v\n", e.Err)
			case recorder.EventError:
				fmt.Printf("❌ %v\n", e.Err)
				if !c.State().Active() {
					// the capture died; what was stored is still recoverable
					return errors.New("recording stopped; run `whisp recover` to save what was captured")
				}
			}
		}
	}

	fmt.Println("\n⏹  Stopping...")
	res, err := c.Stop(context.Background())
	if err != nil {
		if res != nil {
			return fmt.Errorf("%w; the recording is kept, run `whisp recover` to retry", err)
		}
		return err
	}
	if res == nil {
		fmt.Println("Nothing was recorded.")
		return nil
	}

	for {
		select {
		case e := <-events:
			if e.Kind == recorder.EventSaved {
				fmt.Printf("✅ Note saved - ID: %d (%s)\n", e.NoteID, formatSeconds(res.ElapsedSeconds))
				return nil
			}
		default:
			fmt.Printf("⏺  Recorded %s. Run `whisp recover` to save it.\n", formatSeconds(res.ElapsedSeconds))
			return nil
		}
	}
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Save or discard an unfinished recording",
	Long: `Look for a recording that was interrupted before it was saved.

Without flags the recovered recording opens in the recorder screen, where
you can save or discard it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDB(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		save, _ := cmd.Flags().GetBool("save")
		discard, _ := cmd.Flags().GetBool("discard")
		if save && discard {
			fmt.Println("Error: --save and --discard are mutually exclusive")
			return
		}

		ctx := context.Background()
		c := newController(nil)
		res, err := recoverInto(ctx, c)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if res == nil {
			fmt.Println("No unfinished recording found.")
			return
		}
		fmt.Printf("Found a %s recording from %s.\n", formatSeconds(res.ElapsedSeconds), res.StartedAt.Format("02/01/2006 15:04"))

		switch {
		case discard:
			if err := c.Discard(ctx); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			fmt.Println("🗑  Recording discarded.")
		case save:
			if err := c.Save(ctx); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			fmt.Println("✅ Recording saved.")
		default:
			if _, err := tui.RunRecorder(c, tui.RecorderOptions{Scale: cfg.Visual.Scale, Resume: true}); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	},
}

func formatSeconds(s int) string {
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func init() {
	recordCmd.Flags().Bool("system-audio", false, "Also capture system audio (falls back to microphone only if unavailable)")
	recordCmd.Flags().StringP("language", "l", "", "Transcription language hint, e.g. en, de")
	recordCmd.Flags().Bool("no-ui", false, "Record without the interactive screen; Ctrl+C stops and saves")

	recoverCmd.Flags().Bool("save", false, "Save the recovered recording without opening the UI")
	recoverCmd.Flags().Bool("discard", false, "Discard the recovered recording")
}
