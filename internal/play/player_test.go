package play

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func fakeLookPath(available ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestFindAudioPlayer_Preference(t *testing.T) {
	p := &Player{lookPath: fakeLookPath("vlc", "mpv")}

	got, err := p.findAudioPlayer("take.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "mpv" {
		t.Errorf("Expected mpv, got %s", got)
	}
}

func TestFindAudioPlayer_AplayOnlyForWAV(t *testing.T) {
	p := &Player{lookPath: fakeLookPath("aplay")}

	if got, err := p.findAudioPlayer("take.wav"); err != nil || got != "aplay" {
		t.Errorf("Expected aplay for WAV, got %q, %v", got, err)
	}
	if _, err := p.findAudioPlayer("take.flac"); err == nil {
		t.Error("Expected no player for FLAC when only aplay is installed")
	}
}

func TestFindAudioPlayer_Configured(t *testing.T) {
	p := &Player{player: "paplay", lookPath: fakeLookPath("paplay", "ffplay")}

	got, err := p.findAudioPlayer("take.ogg")
	if err != nil || got != "paplay" {
		t.Errorf("Expected configured player, got %q, %v", got, err)
	}

	p.player = "missing"
	if _, err := p.findAudioPlayer("take.ogg"); err == nil {
		t.Error("Expected error for a configured player that is not installed")
	}
}

func TestCommand(t *testing.T) {
	args, err := command("ffplay", "take.ogg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[0] != "ffplay" || args[len(args)-1] != "take.ogg" {
		t.Errorf("unexpected ffplay command: %v", args)
	}

	if _, err := command("aplay", "take.mp3"); err == nil {
		t.Error("Expected aplay to reject MP3")
	}

	args, _ = command("paplay", "take.wav")
	if len(args) != 2 || args[0] != "paplay" {
		t.Errorf("unexpected custom player command: %v", args)
	}
}

func TestPlay_MissingFile(t *testing.T) {
	p := New("")
	err := p.Play(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestPlay_RunsPlayer(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}

	file := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(file, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(truePath)
	if err := p.Play(context.Background(), file); err != nil {
		t.Errorf("Expected playback to succeed, got: %v", err)
	}
}
