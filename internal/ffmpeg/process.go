// Package ffmpeg provides FFmpeg process management for PCM encoding.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// maxErrorLineLength is the maximum length for extracted error messages.
const maxErrorLineLength = 200

// Process represents a running FFmpeg subprocess.
type Process struct {
	Cmd    *exec.Cmd
	Cancel context.CancelFunc
	Stdin  io.WriteCloser
	Stderr *bytes.Buffer
}

// InputArgs returns FFmpeg arguments for signed 16-bit little-endian PCM on stdin.
func InputArgs(sampleRate, channels int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
	}
}

// StartProcess launches an FFmpeg subprocess with stdin attached.
func StartProcess(ctx context.Context, ffmpegPath string, args []string) (*Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if closeErr := stdinPipe.Close(); closeErr != nil {
			slog.Warn("failed to close stdin pipe", "error", closeErr)
		}
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &Process{
		Cmd:    cmd,
		Cancel: cancel,
		Stdin:  stdinPipe,
		Stderr: &stderr,
	}, nil
}

// Wait closes stdin and waits for FFmpeg to exit. A failed run reports the
// last line FFmpeg wrote to stderr.
func (p *Process) Wait() error {
	defer p.Cancel()

	closeErr := p.Stdin.Close()
	if err := p.Cmd.Wait(); err != nil {
		if msg := LastError(p.Stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	if closeErr != nil && !errors.Is(closeErr, io.ErrClosedPipe) {
		return fmt.Errorf("close ffmpeg stdin: %w", closeErr)
	}
	return nil
}

// Kill terminates the process without waiting for output to finish.
func (p *Process) Kill() {
	p.Cancel()
	_ = p.Stdin.Close()
	_ = p.Cmd.Wait()
}

// ResolvePath returns the path to the FFmpeg binary.
// If customPath is set, it must resolve on its own; otherwise "ffmpeg" is
// looked up in PATH. Returns an empty string if FFmpeg is not found.
func ResolvePath(customPath string) string {
	if customPath != "" {
		if _, err := exec.LookPath(customPath); err == nil {
			return customPath
		}
		return ""
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return ""
	}
	return path
}

// LastError extracts the last meaningful line from stderr output.
func LastError(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			if len(line) > maxErrorLineLength {
				return line[:maxErrorLineLength] + "..."
			}
			return line
		}
	}
	return ""
}
