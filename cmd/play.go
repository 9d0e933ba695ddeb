package cmd

import (
	"fmt"

	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play an audio file",
	Long: `Play an audio file and wait until playback ends. Uses playback.player when
configured, otherwise the first of ffplay, mpv, vlc or aplay (WAV only) found in PATH.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		fmt.Printf("Playing: %s\n", path)

		// Create service instance
		svc, err := service.New(cfg, nil)
		if err != nil {
			return err
		}

		if err := svc.PlayFile(cmd.Context(), path); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		return nil
	},
}
