package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record from the input device",
	Long: `Record audio from the configured input device. Press Enter to start and
Enter again to stop. Ctrl+C also stops the recording, which is then saved.
The file is written to the output directory in the configured format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		slog.Info("Record command started", "name", name)

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

		fmt.Println("Press Enter to start recording...")
		if err := waitForEnter(ctx); err != nil {
			fmt.Println("Cancelled")
			return nil
		}

		path, err := svc.Record(ctx, name, promptStop)
		if err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}
		fmt.Printf("Saved: %s\n", path)

		if ctx.Err() != nil {
			return nil
		}
		// Execute pipeline if specified
		return executePipeline(ctx, svc, name, 'r')
	},
}

// stdinLines delivers lines typed on stdin. The reader goroutine is started
// once and lives for the process.
var stdinLines = sync.OnceValue(func() <-chan string {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	return lines
})

// waitForEnter blocks until a line is read or ctx is done. With stdin
// closed only ctx can end the wait.
func waitForEnter(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-stdinLines():
		if !ok {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}
}

func promptStop(ctx context.Context) error {
	fmt.Println("Recording... Press Enter to stop (Ctrl+C stops and saves)")
	return waitForEnter(ctx)
}
