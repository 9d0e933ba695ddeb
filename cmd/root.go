package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/voicecapture/internal/codec"
	"github.com/audiolibrelab/voicecapture/internal/config"
	"github.com/audiolibrelab/voicecapture/internal/device"
	"github.com/audiolibrelab/voicecapture/internal/ffmpeg"
	"github.com/audiolibrelab/voicecapture/internal/lame"
	"github.com/audiolibrelab/voicecapture/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	logFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "voicecapture [name]",
	Short: "Record voice memos and send them for processing",
	Long: `VoiceCapture records audio from an input device and saves it as
WAV, FLAC, Ogg Vorbis or MP3, chosen by the file extension.

Recordings can be uploaded to a processing API, played back and archived
to S3-compatible object storage.

When a name is provided, it acts as 'voicecapture run [name]'.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel, logFile)

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Validate pipeline if provided
		return service.ValidatePipeline(pipeline)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a name is provided, delegate to run command
		if len(args) == 1 {
			return runCmd.RunE(cmd, args)
		}
		// Otherwise show help
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/voicecapture.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: r=record, u=upload, p=play, a=archive (e.g., 'rupa', 'up')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated at 10 MB")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default file does not exist. An explicit --config must exist.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if profile != "" {
				return nil, fmt.Errorf("profile '%s' requested but %s does not exist", profile, path)
			}
			slog.Debug("No config file, using defaults", "path", path)
			return config.Default(), nil
		}
	}
	return config.LoadWithProfile(path, profile)
}

func defaultConfigPath() string {
	return os.ExpandEnv("$HOME/.config/voicecapture.yaml")
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int, file string) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if file != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	// Configure text handler for clean terminal output
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: slogLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// newService wires the PortAudio backend and the LAME encoder into the
// service.
func newService() (*service.VoiceCaptureService, error) {
	encOpts := []codec.Option{codec.WithLossyEncoder(lame.Factory)}
	if path := ffmpeg.ResolvePath(cfg.FFmpegPath); path != "" {
		encOpts = append(encOpts, codec.WithFFmpeg(path))
	} else {
		slog.Debug("ffmpeg not found, Ogg output unavailable")
	}

	return service.New(cfg, device.NewPortAudio(), service.WithEncoder(codec.NewEncoder(encOpts...)))
}
