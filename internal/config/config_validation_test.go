package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_DefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}

func TestValidate_ChannelsPerFormat(t *testing.T) {
	tests := []struct {
		format   string
		channels int
	}{
		{"mp3", 2},
		{"wav", 8},
		{"flac", 8},
		{"ogg", 6},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Output.Format = tt.format
		cfg.Audio.Channels = tt.channels
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s with %d channels: unexpected error: %v", tt.format, tt.channels, err)
		}
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantMsg string
	}{
		{
			name:    "zero sample rate",
			modify:  func(c *Config) { c.Audio.SampleRate = 0 },
			wantMsg: "audio.sample_rate must be > 0",
		},
		{
			name:    "too many channels",
			modify:  func(c *Config) { c.Audio.Channels = 9 },
			wantMsg: "audio.channels must be <= 8",
		},
		{
			name: "mp3 with more than two channels",
			modify: func(c *Config) {
				c.Output.Format = "mp3"
				c.Audio.Channels = 4
			},
			wantMsg: "audio.channels must be <= 2 for output.format mp3, got: 4",
		},
		{
			name:    "no channels",
			modify:  func(c *Config) { c.Audio.Channels = 0 },
			wantMsg: "audio.channels must be >= 1",
		},
		{
			name:    "negative frames per block",
			modify:  func(c *Config) { c.Audio.FramesPerBlock = -1 },
			wantMsg: "audio.frames_per_block must be > 0",
		},
		{
			name:    "unknown format",
			modify:  func(c *Config) { c.Output.Format = "aac" },
			wantMsg: "output.format must be one of [wav flac ogg mp3]",
		},
		{
			name:    "uppercase format",
			modify:  func(c *Config) { c.Output.Format = "WAV" },
			wantMsg: "output.format must be one of",
		},
		{
			name:    "missing directory",
			modify:  func(c *Config) { c.Output.Directory = "" },
			wantMsg: "output.directory is required",
		},
		{
			name:    "invalid api url",
			modify:  func(c *Config) { c.API.URL = "not a url" },
			wantMsg: "api.url must be a valid URL",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.API.Timeout = -time.Second },
			wantMsg: "api.timeout must be >= 0",
		},
		{
			name:    "too many retries",
			modify:  func(c *Config) { c.API.Retries = 50 },
			wantMsg: "api.retries must be <= 10",
		},
		{
			name:    "archive bucket without credentials",
			modify:  func(c *Config) { c.Archive.Bucket = "sessions" },
			wantMsg: "archive.access_key_id is required when bucket is set",
		},
		{
			name: "invalid archive endpoint",
			modify: func(c *Config) {
				c.Archive = ArchiveConfig{Bucket: "b", Endpoint: "::", AccessKeyID: "a", SecretAccessKey: "s"}
			},
			wantMsg: "archive.endpoint must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidate_ArchiveConfigured(t *testing.T) {
	cfg := Default()
	cfg.Archive = ArchiveConfig{
		Bucket:          "sessions",
		Endpoint:        "https://account.r2.cloudflarestorage.com",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid archive config, got: %v", err)
	}
}

func TestLoadWithProfile_ValidationFailure(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
    default:
        audio:
            channels: 12
        output:
            directory: /recordings
`)

	_, err := LoadWithProfile(configFile, "")
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "audio.channels") {
		t.Errorf("Expected audio.channels in error, got: %v", err)
	}
}

func TestLoadWithProfile_EmptyConfigs(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: default
`)

	_, err := LoadWithProfile(configFile, "")
	if err == nil {
		t.Fatal("Expected error for config without profiles")
	}
	if !strings.Contains(err.Error(), "configs section is required") {
		t.Errorf("Expected configs section error, got: %v", err)
	}
}
