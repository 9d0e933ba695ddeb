package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/voicecapture/internal/device"
	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available input devices",
	Long:  `List all input-capable audio devices that can be used for recording.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg, device.NewPortAudio())
		if err != nil {
			return err
		}

		devices, err := svc.Devices()
		if err != nil {
			return fmt.Errorf("failed to list input devices: %w", err)
		}

		fmt.Printf("Input devices (%s, %d found):\n", runtime.GOOS, len(devices))
		for i, d := range devices {
			marker := ""
			if d.Default {
				marker = " [default]"
			}
			fmt.Printf("  %d. %s%s\n", i+1, d.Name, marker)
			fmt.Printf("     host api: %s, channels: %d, default rate: %.0f Hz\n", d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
		}

		fmt.Printf("\nConfigure with audio.device: \"<name>\" (empty uses the default input)\n")
		return nil
	},
}
