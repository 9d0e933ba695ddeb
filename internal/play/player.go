// Package play plays saved recordings through an external audio player.
package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/voicecapture/internal/codec"
)

// players lists the supported audio players in order of preference.
var players = []string{"ffplay", "mpv", "vlc", "aplay"}

type Player struct {
	player   string
	lookPath func(string) (string, error)
}

// New creates a Player. An empty player name selects the first one found on PATH.
func New(player string) *Player {
	return &Player{player: player, lookPath: exec.LookPath}
}

// Play plays the file at path and blocks until playback finishes.
func (p *Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %s", path)
	}

	player, err := p.findAudioPlayer(path)
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	args, err := command(player, path)
	if err != nil {
		return err
	}

	slog.Info("playing recording", "path", path, "player", player)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	slog.Debug("playback completed", "path", path)
	return nil
}

func (p *Player) findAudioPlayer(path string) (string, error) {
	if p.player != "" {
		if _, err := p.lookPath(p.player); err != nil {
			return "", fmt.Errorf("configured player %s: %w", p.player, err)
		}
		return p.player, nil
	}

	for _, player := range players {
		// aplay only handles WAV files
		if player == "aplay" && codec.ResolveFormat(path) != codec.FormatWAV {
			continue
		}
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}

// command returns the argv that plays path with player.
func command(player, path string) ([]string, error) {
	switch player {
	case "ffplay":
		return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", path}, nil
	case "mpv":
		return []string{"mpv", "--no-video", path}, nil
	case "vlc":
		return []string{"vlc", "--intf", "dummy", "--play-and-exit", path}, nil
	case "aplay":
		if codec.ResolveFormat(path) != codec.FormatWAV {
			return nil, fmt.Errorf("aplay requires WAV format: %s", path)
		}
		return []string{"aplay", path}, nil
	default:
		// Unknown players are given the file as their only argument.
		return []string{player, path}, nil
	}
}
