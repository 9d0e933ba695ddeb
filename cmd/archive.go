package cmd

import (
	"fmt"

	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [file]",
	Short: "Store an audio file in object storage",
	Long:  `Upload an audio file to the configured S3-compatible bucket under prefix/YYYY/MM/DD/.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg, nil)
		if err != nil {
			return err
		}

		key, err := svc.ArchiveFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}
		fmt.Printf("Archived: s3://%s/%s\n", cfg.Archive.Bucket, key)
		return nil
	},
}
