package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/audiolibrelab/voicecapture/internal/codec"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultProfile is the profile other profiles inherit from.
const DefaultProfile = "default"

// Inheritance markers reported by the info command.
const (
	Inherited       = "inherited"
	ProfileSpecific = "profile-specific"
)

type GlobalsConfig struct {
	Output     GlobalOutputConfig `mapstructure:"output" yaml:"output"`
	FFmpegPath string             `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path,omitempty"`
}

type GlobalOutputConfig struct {
	RecordingsDirectory string `mapstructure:"recordings_directory" yaml:"recordings_directory"`
}

type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig     `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Audio      AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Output     OutputConfig   `mapstructure:"output" yaml:"output"`
	API        APIConfig      `mapstructure:"api" yaml:"api"`
	Archive    ArchiveConfig  `mapstructure:"archive" yaml:"archive"`
	Playback   PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	FFmpegPath string         `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path,omitempty"`

	// Internal field to track inheritance information for info command
	Inheritance InheritanceInfo `mapstructure:"-" yaml:"-"`
}

// InheritanceInfo maps a setting key such as "audio.sample_rate" to
// Inherited or ProfileSpecific.
type InheritanceInfo map[string]string

// Status returns the inheritance marker for key, or "" when unknown.
func (i InheritanceInfo) Status(key string) string {
	if i == nil {
		return ""
	}
	return i[key]
}

type AudioConfig struct {
	SampleRate     int    `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gt=0,lte=384000"`
	Channels       int    `mapstructure:"channels" yaml:"channels" validate:"min=1,max=8"`
	FramesPerBlock int    `mapstructure:"frames_per_block" yaml:"frames_per_block" validate:"gt=0,lte=65536"`
	Device         string `mapstructure:"device" yaml:"device,omitempty"` // empty = default input
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory" validate:"required"`
	Format    string `mapstructure:"format" yaml:"format" validate:"oneof=wav flac ogg mp3"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url" yaml:"url,omitempty" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	Retries int           `mapstructure:"retries" yaml:"retries" validate:"gte=0,lte=10"`
}

type ArchiveConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty" validate:"required_with=Bucket"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty" validate:"required_with=Bucket"`
}

type PlaybackConfig struct {
	Player string `mapstructure:"player" yaml:"player,omitempty"` // empty = auto-detect
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate:     44100,
		Channels:       1,
		FramesPerBlock: 512,
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "VoiceCapture"),
		Format:    "mp3",
	},
	API: APIConfig{
		Timeout: 60 * time.Second,
		Retries: 2,
	},
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	cfg := defaultConfig
	cfg.Inheritance = InheritanceInfo{}
	return &cfg
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := readRootConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = DefaultProfile
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists || selectedProfile == nil {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Every profile falls back to the default profile, which falls back to
	// the built-in defaults.
	base := Default()
	if configName != DefaultProfile {
		if defaultProfile, ok := rootConfig.Configs[DefaultProfile]; ok && defaultProfile != nil {
			base = mergeConfigs(base, defaultProfile)
		}
	}
	selectedConfig := mergeConfigs(base, selectedProfile)

	// Globals take precedence over any profile
	if rootConfig.Globals != nil {
		if rootConfig.Globals.Output.RecordingsDirectory != "" {
			selectedConfig.Output.Directory = rootConfig.Globals.Output.RecordingsDirectory
		}
		if rootConfig.Globals.FFmpegPath != "" && selectedProfile.FFmpegPath == "" {
			selectedConfig.FFmpegPath = rootConfig.Globals.FFmpegPath
		}
	}

	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)

	if err := selectedConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for profile '%s': %w", configName, err)
	}

	return selectedConfig, nil
}

// readRootConfig reads the file with a dedicated viper instance, with
// VOICECAPTURE_* environment variables overriding file values.
func readRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("VOICECAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}

	return &rootConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := readRootConfig(configFile)
	if err != nil {
		return err
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs overlays the non-zero settings of profile on base and
// records for each setting whether it came from the profile.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: InheritanceInfo{}}
	if base != nil {
		result.Audio = base.Audio
		result.Output = base.Output
		result.API = base.API
		result.Archive = base.Archive
		result.Playback = base.Playback
		result.FFmpegPath = base.FFmpegPath
	}
	if profile == nil {
		profile = &Config{}
	}

	overrideInt(result.Inheritance, "audio.sample_rate", &result.Audio.SampleRate, profile.Audio.SampleRate)
	overrideInt(result.Inheritance, "audio.channels", &result.Audio.Channels, profile.Audio.Channels)
	overrideInt(result.Inheritance, "audio.frames_per_block", &result.Audio.FramesPerBlock, profile.Audio.FramesPerBlock)
	overrideString(result.Inheritance, "audio.device", &result.Audio.Device, profile.Audio.Device)

	overrideString(result.Inheritance, "output.directory", &result.Output.Directory, profile.Output.Directory)
	overrideString(result.Inheritance, "output.format", &result.Output.Format, profile.Output.Format)

	overrideString(result.Inheritance, "api.url", &result.API.URL, profile.API.URL)
	if profile.API.Timeout != 0 {
		result.API.Timeout = profile.API.Timeout
		result.Inheritance["api.timeout"] = ProfileSpecific
	} else {
		result.Inheritance["api.timeout"] = Inherited
	}
	overrideInt(result.Inheritance, "api.retries", &result.API.Retries, profile.API.Retries)

	// Archive credentials belong to one bucket, so the section is taken whole.
	if profile.Archive.Bucket != "" {
		result.Archive = profile.Archive
		result.Inheritance["archive"] = ProfileSpecific
	} else {
		result.Inheritance["archive"] = Inherited
	}

	overrideString(result.Inheritance, "playback.player", &result.Playback.Player, profile.Playback.Player)
	overrideString(result.Inheritance, "ffmpeg_path", &result.FFmpegPath, profile.FFmpegPath)

	return result
}

func overrideInt(info InheritanceInfo, key string, dst *int, v int) {
	if v != 0 {
		*dst = v
		info[key] = ProfileSpecific
		return
	}
	info[key] = Inherited
}

func overrideString(info InheritanceInfo, key string, dst *string, v string) {
	if v != "" {
		*dst = v
		info[key] = ProfileSpecific
		return
	}
	info[key] = Inherited
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	var msgs []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
	}

	// A take recorded with more channels than the output format holds
	// could never be saved.
	if format, err := codec.ParseFormat(c.Output.Format); err == nil {
		if limit := codec.MaxChannels(format); limit > 0 && c.Audio.Channels > limit {
			msgs = append(msgs, fmt.Sprintf("audio.channels must be <= %d for output.format %s, got: %d", limit, format, c.Audio.Channels))
		}
	}

	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	// Namespace is "Config.audio.channels"; drop the struct name.
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got: %v", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got: %v", field, fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be >= %s, got: %v", field, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be <= %s, got: %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s, got: %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed '%s' validation", field, fe.Tag())
	}
}

// Redacted returns a copy safe to print, with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Archive.SecretAccessKey != "" {
		out.Archive.SecretAccessKey = "********"
	}
	return &out
}
