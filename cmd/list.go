package cmd

import (
	"fmt"

	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recordings",
	Long:  `List the audio files in the output directory, newest first. API responses are marked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg, nil)
		if err != nil {
			return err
		}

		recordings, err := svc.ListRecordings()
		if err != nil {
			return err
		}
		if len(recordings) == 0 {
			fmt.Printf("No recordings in %s\n", cfg.Output.Directory)
			return nil
		}

		fmt.Printf("Recordings in %s:\n", cfg.Output.Directory)
		for _, r := range recordings {
			kind := "recording"
			if r.IsResponse {
				kind = "response"
			}
			fmt.Printf("  %-40s %-5s %10s  %s  %s\n", r.Name, r.Format, r.SizeHuman, r.ModTimeHuman, kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
