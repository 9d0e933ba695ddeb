package cmd

import (
	"fmt"

	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [input] [output]",
	Short: "Send an audio file to the processing API",
	Long: `Upload an audio file to api.url as multipart field "file" and write the
response body to the output path. The output is only created when the API
answers with a 2xx status.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]

		svc, err := service.New(cfg, nil)
		if err != nil {
			return err
		}

		fmt.Printf("Uploading: %s\n", in)
		if err := svc.UploadFile(cmd.Context(), in, out); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Printf("Response saved: %s\n", out)
		return nil
	},
}
