package cmd

import (
	"fmt"

	"github.com/audiolibrelab/voicecapture/internal/config"
	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show resolved configuration and file paths for a recording",
	Long:  `Display the resolved configuration with inheritance indicators and file paths for the given recording name. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg, nil)
		if err != nil {
			return err
		}

		info, err := svc.RecordingInfo(args[0])
		if err != nil {
			return err
		}

		// Display file paths
		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("recording: %s (exists: %t)\n", info.Recording, info.Exists)
		fmt.Printf("response: %s\n", info.Response)
		fmt.Printf("clean_name: %s\n", info.CleanName)

		// Display resolved configuration with inheritance indicators
		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")
		in := cfg.Inheritance

		fmt.Printf("\n[Audio]\n")
		fmt.Printf("sample_rate: %d %s\n", cfg.Audio.SampleRate, getInheritanceIndicator(in.Status("audio.sample_rate")))
		fmt.Printf("channels: %d %s\n", cfg.Audio.Channels, getInheritanceIndicator(in.Status("audio.channels")))
		fmt.Printf("frames_per_block: %d %s\n", cfg.Audio.FramesPerBlock, getInheritanceIndicator(in.Status("audio.frames_per_block")))
		fmt.Printf("device: %s %s\n", displayOr(cfg.Audio.Device, "(default input)"), getInheritanceIndicator(in.Status("audio.device")))

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(in.Status("output.directory")))
		fmt.Printf("format: %s %s\n", cfg.Output.Format, getInheritanceIndicator(in.Status("output.format")))

		fmt.Printf("\n[API]\n")
		fmt.Printf("url: %s %s\n", displayOr(cfg.API.URL, "(not configured)"), getInheritanceIndicator(in.Status("api.url")))
		fmt.Printf("timeout: %s %s\n", cfg.API.Timeout, getInheritanceIndicator(in.Status("api.timeout")))
		fmt.Printf("retries: %d %s\n", cfg.API.Retries, getInheritanceIndicator(in.Status("api.retries")))

		fmt.Printf("\n[Archive]\n")
		fmt.Printf("bucket: %s %s\n", displayOr(cfg.Archive.Bucket, "(not configured)"), getInheritanceIndicator(in.Status("archive")))

		fmt.Printf("\n[Playback]\n")
		fmt.Printf("player: %s %s\n", displayOr(cfg.Playback.Player, "(auto-detect)"), getInheritanceIndicator(in.Status("playback.player")))

		return nil
	},
}

func displayOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case config.Inherited:
		return "[inherited]"
	case config.ProfileSpecific:
		return "[profile-specific]"
	default:
		return "[built-in]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
