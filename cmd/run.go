package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Execute pipeline steps on a recording",
	Long: `Execute the specified pipeline steps on a recording. Use -p to specify which steps to run:
  r  record from the input device (Enter stops)
  u  upload the recording to the processing API
  p  play the API response, or the recording when there is none
  a  archive the recording and its response to object storage`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p rupa)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := newService()
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				slog.Warn("Failed to close service", "error", err)
			}
		}()

		if err := svc.RunPipeline(ctx, name, pipeline, promptStop); err != nil {
			return err
		}
		fmt.Println("Pipeline: completed")
		return nil
	},
}
