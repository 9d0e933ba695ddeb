package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/voicecapture/internal/archive"
	"github.com/audiolibrelab/voicecapture/internal/audio"
	"github.com/audiolibrelab/voicecapture/internal/codec"
	"github.com/audiolibrelab/voicecapture/internal/config"
	"github.com/audiolibrelab/voicecapture/internal/ffmpeg"
	"github.com/audiolibrelab/voicecapture/internal/play"
	"github.com/audiolibrelab/voicecapture/internal/upload"
)

// Service represents the core VoiceCapture service interface
type Service interface {
	// Recording operations
	Record(ctx context.Context, name string, wait WaitFunc) (string, error)
	Save(path string) error

	// Collaborator operations
	Upload(ctx context.Context, name string) (string, error)
	Play(ctx context.Context, name string) error
	PlayFile(ctx context.Context, path string) error
	Archive(ctx context.Context, name string) ([]string, error)

	// Pipeline operations
	RunPipeline(ctx context.Context, name, steps string, wait WaitFunc) error

	// Information operations
	RecordingInfo(name string) (*RecordingInfo, error)
	ListRecordings() ([]RecordingFile, error)
	Devices() ([]audio.Device, error)
	GetConfig() *config.Config
	GetLastError() string

	// Cleanup
	Close() error
}

// WaitFunc blocks while a recording runs. It returns when the user asks to
// stop or ctx is done.
type WaitFunc func(ctx context.Context) error

// Uploader sends a recording to the processing API.
type Uploader interface {
	Upload(ctx context.Context, inputPath, outputPath string) error
}

// Player plays an audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Archiver stores a file in object storage and returns its key.
type Archiver interface {
	Archive(ctx context.Context, path, sessionID string) (string, error)
}

// RecordingInfo contains file path information for a recording
type RecordingInfo struct {
	CleanName string `json:"clean_name"`
	Recording string `json:"recording"`
	Response  string `json:"response"`
	Format    string `json:"format"`
	Exists    bool   `json:"exists"`
}

// RecordingFile describes a saved audio file in the output directory
type RecordingFile struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	Format       string    `json:"format"`
	IsResponse   bool      `json:"is_response"`
}

// responseSuffix marks files written from API responses.
const responseSuffix = ".response"

var (
	errNoBackend     = errors.New("no audio backend configured")
	errNoAPIEndpoint = errors.New("api.url is not configured")
)

// VoiceCaptureService is the main service implementation
type VoiceCaptureService struct {
	cfg     *config.Config
	backend audio.Backend
	encoder *codec.Encoder

	uploader Uploader
	player   Player
	archiver Archiver

	// The recorder is created on first use so commands that never touch
	// the device do not initialize it.
	recorderMutex sync.Mutex
	recorder      *audio.Recorder
	sessions      map[string]string // recording path -> session id

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// Option configures a VoiceCaptureService.
type Option func(*VoiceCaptureService)

// WithEncoder sets the encoder recordings are saved with.
func WithEncoder(e *codec.Encoder) Option {
	return func(s *VoiceCaptureService) { s.encoder = e }
}

// WithUploader replaces the API client built from configuration.
func WithUploader(u Uploader) Option {
	return func(s *VoiceCaptureService) { s.uploader = u }
}

// WithPlayer replaces the external player built from configuration.
func WithPlayer(p Player) Option {
	return func(s *VoiceCaptureService) { s.player = p }
}

// WithArchiver replaces the object storage client built from configuration.
func WithArchiver(a Archiver) Option {
	return func(s *VoiceCaptureService) { s.archiver = a }
}

// New creates a new VoiceCapture service instance
func New(cfg *config.Config, backend audio.Backend, opts ...Option) (*VoiceCaptureService, error) {
	s := &VoiceCaptureService{
		cfg:      cfg,
		backend:  backend,
		sessions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.encoder == nil {
		var encOpts []codec.Option
		if path := ffmpeg.ResolvePath(cfg.FFmpegPath); path != "" {
			encOpts = append(encOpts, codec.WithFFmpeg(path))
		}
		s.encoder = codec.NewEncoder(encOpts...)
	}
	if s.player == nil {
		s.player = play.New(cfg.Playback.Player)
	}
	if s.uploader == nil && cfg.API.URL != "" {
		client, err := upload.NewClient(upload.Config{
			URL:     cfg.API.URL,
			Timeout: cfg.API.Timeout,
			Retries: cfg.API.Retries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create API client: %w", err)
		}
		s.uploader = client
	}
	if s.archiver == nil && cfg.Archive.Bucket != "" {
		a, err := archive.New(archive.Config{
			Bucket:          cfg.Archive.Bucket,
			Endpoint:        cfg.Archive.Endpoint,
			Region:          cfg.Archive.Region,
			Prefix:          cfg.Archive.Prefix,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create archiver: %w", err)
		}
		s.archiver = a
	}

	return s, nil
}

// CaptureConfig converts the audio settings to the recorder's configuration.
func CaptureConfig(cfg *config.Config) audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		FramesPerBlock: cfg.Audio.FramesPerBlock,
		Device:         cfg.Audio.Device,
	}
}

func (s *VoiceCaptureService) getRecorder() (*audio.Recorder, error) {
	s.recorderMutex.Lock()
	defer s.recorderMutex.Unlock()

	if s.recorder != nil {
		return s.recorder, nil
	}
	if s.backend == nil {
		return nil, errNoBackend
	}

	rec, err := audio.NewRecorder(CaptureConfig(s.cfg), s.backend, audio.WithEncoder(s.encoder))
	if err != nil {
		return nil, err
	}
	if err := s.backend.ValidateDevice(s.cfg.Audio.Device); err != nil {
		if closeErr := rec.Close(); closeErr != nil {
			slog.Warn("failed to close recorder", "error", closeErr)
		}
		return nil, fmt.Errorf("invalid input device: %w", err)
	}
	s.recorder = rec
	return rec, nil
}

// Record captures until wait returns, then saves the recording under the
// output directory and returns its path. Whatever was captured before a
// capture failure is still saved.
func (s *VoiceCaptureService) Record(ctx context.Context, name string, wait WaitFunc) (string, error) {
	s.clearLastError()

	path, err := s.recordingPath(name)
	if err != nil {
		return "", err
	}
	// Refuse before capturing anything that could not be saved.
	if limit := codec.MaxChannels(codec.ResolveFormat(path)); limit > 0 && s.cfg.Audio.Channels > limit {
		err := fmt.Errorf("%w: %s output holds at most %d channels, audio.channels is %d",
			audio.ErrInvalidConfig, s.outputFormat(), limit, s.cfg.Audio.Channels)
		s.setLastError(err.Error())
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	rec, err := s.getRecorder()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to open recorder: %v", err))
		return "", err
	}

	if err := rec.Start(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return "", err
	}

	waitErr := wait(ctx)
	if errors.Is(waitErr, context.Canceled) {
		slog.Info("recording interrupted, saving")
		waitErr = nil
	}

	stopErr := rec.Stop()
	if stopErr != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", stopErr))
	}

	saveErr := rec.Save(path)
	if saveErr != nil {
		s.setLastError(fmt.Sprintf("Failed to save recording: %v", saveErr))
	} else if session := rec.Session(); session != nil {
		s.recorderMutex.Lock()
		s.sessions[path] = session.ID
		s.recorderMutex.Unlock()
	}

	if err := errors.Join(waitErr, stopErr, saveErr); err != nil {
		return path, err
	}
	return path, nil
}

// Save writes the last recording to path.
func (s *VoiceCaptureService) Save(path string) error {
	rec, err := s.getRecorder()
	if err != nil {
		return err
	}
	return rec.Save(path)
}

// Upload sends the named recording to the API and stores the reply as the
// response file. It returns the response path.
func (s *VoiceCaptureService) Upload(ctx context.Context, name string) (string, error) {
	if s.uploader == nil {
		return "", errNoAPIEndpoint
	}

	info, err := s.RecordingInfo(name)
	if err != nil {
		return "", err
	}

	if err := s.uploader.Upload(ctx, info.Recording, info.Response); err != nil {
		s.setLastError(fmt.Sprintf("Failed to upload recording: %v", err))
		return "", err
	}
	return info.Response, nil
}

// Play plays the API response for the named recording when one exists,
// otherwise the recording itself.
func (s *VoiceCaptureService) Play(ctx context.Context, name string) error {
	info, err := s.RecordingInfo(name)
	if err != nil {
		return err
	}

	path := info.Recording
	if _, err := os.Stat(info.Response); err == nil {
		path = info.Response
	}
	return s.PlayFile(ctx, path)
}

// PlayFile plays the file at path.
func (s *VoiceCaptureService) PlayFile(ctx context.Context, path string) error {
	return s.player.Play(ctx, path)
}

// Archive stores the named recording, and its response when present, in
// object storage. It returns the object keys.
func (s *VoiceCaptureService) Archive(ctx context.Context, name string) ([]string, error) {
	if s.archiver == nil {
		return nil, archive.ErrNotConfigured
	}

	info, err := s.RecordingInfo(name)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return nil, fmt.Errorf("recording not found: %s", info.Recording)
	}

	s.recorderMutex.Lock()
	sessionID := s.sessions[info.Recording]
	s.recorderMutex.Unlock()

	paths := []string{info.Recording}
	if _, err := os.Stat(info.Response); err == nil {
		paths = append(paths, info.Response)
	}

	var keys []string
	for _, p := range paths {
		key, err := s.archiver.Archive(ctx, p, sessionID)
		if err != nil {
			s.setLastError(fmt.Sprintf("Failed to archive %s: %v", p, err))
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ArchiveFile stores an arbitrary file in object storage.
func (s *VoiceCaptureService) ArchiveFile(ctx context.Context, path string) (string, error) {
	if s.archiver == nil {
		return "", archive.ErrNotConfigured
	}
	return s.archiver.Archive(ctx, path, "")
}

// UploadFile sends inputPath to the API and writes the reply to outputPath.
func (s *VoiceCaptureService) UploadFile(ctx context.Context, inputPath, outputPath string) error {
	if s.uploader == nil {
		return errNoAPIEndpoint
	}
	return s.uploader.Upload(ctx, inputPath, outputPath)
}

// RunPipeline executes a sequence of operations (r=record, u=upload, p=play, a=archive)
func (s *VoiceCaptureService) RunPipeline(ctx context.Context, name, steps string, wait WaitFunc) error {
	if err := ValidatePipeline(steps); err != nil {
		return err
	}

	for i, step := range strings.ToLower(steps) {
		if err := ctx.Err(); err != nil && step != 'r' {
			return err
		}
		slog.Info("pipeline step", "step", string(step), "index", i+1, "total", len(steps))

		switch step {
		case 'r':
			path, err := s.Record(ctx, name, wait)
			if err != nil {
				return fmt.Errorf("pipeline record failed: %w", err)
			}
			slog.Info("pipeline recording saved", "path", path)
			// An interrupt ends the recording, and with it the pipeline.
			if ctx.Err() != nil {
				return nil
			}
		case 'u':
			path, err := s.Upload(ctx, name)
			if err != nil {
				return fmt.Errorf("pipeline upload failed: %w", err)
			}
			slog.Info("pipeline response saved", "path", path)
		case 'p':
			if err := s.Play(ctx, name); err != nil {
				return fmt.Errorf("pipeline play failed: %w", err)
			}
		case 'a':
			keys, err := s.Archive(ctx, name)
			if err != nil {
				return fmt.Errorf("pipeline archive failed: %w", err)
			}
			slog.Info("pipeline archive completed", "keys", keys)
		}
	}
	return nil
}

// ValidatePipeline checks that every step is one of r, u, p, a.
func ValidatePipeline(steps string) error {
	validSteps := map[rune]bool{
		'r': true, // record
		'u': true, // upload
		'p': true, // play
		'a': true, // archive
	}

	for _, step := range strings.ToLower(steps) {
		if !validSteps[step] {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: r=record, u=upload, p=play, a=archive)", step)
		}
	}
	return nil
}

// GetConfig returns the current configuration
func (s *VoiceCaptureService) GetConfig() *config.Config {
	return s.cfg
}

// RecordingInfo returns file path information for a recording
func (s *VoiceCaptureService) RecordingInfo(name string) (*RecordingInfo, error) {
	cleanName := CleanFileName(name)
	if cleanName == "" {
		return nil, fmt.Errorf("invalid recording name: %q", name)
	}

	ext := s.outputFormat().Extension()
	info := &RecordingInfo{
		CleanName: cleanName,
		Recording: filepath.Join(s.cfg.Output.Directory, cleanName+ext),
		Response:  filepath.Join(s.cfg.Output.Directory, cleanName+responseSuffix+ext),
		Format:    s.outputFormat().String(),
	}
	if _, err := os.Stat(info.Recording); err == nil {
		info.Exists = true
	}
	return info, nil
}

func (s *VoiceCaptureService) recordingPath(name string) (string, error) {
	info, err := s.RecordingInfo(name)
	if err != nil {
		return "", err
	}
	return info.Recording, nil
}

func (s *VoiceCaptureService) outputFormat() codec.Format {
	f, err := codec.ParseFormat(s.cfg.Output.Format)
	if err != nil {
		return codec.FormatWAV
	}
	return f
}

// ListRecordings returns all audio files in the output directory, newest first
func (s *VoiceCaptureService) ListRecordings() ([]RecordingFile, error) {
	dir := s.cfg.Output.Directory

	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var recordings []RecordingFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		format := codec.ResolveFormat(file.Name())
		if format == codec.FormatUnknown {
			continue
		}

		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		stem := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		recordings = append(recordings, RecordingFile{
			Name:         file.Name(),
			Path:         filepath.Join(dir, file.Name()),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			Format:       format.String(),
			IsResponse:   strings.HasSuffix(stem, responseSuffix),
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})

	return recordings, nil
}

// Devices lists the input devices of the audio backend
func (s *VoiceCaptureService) Devices() ([]audio.Device, error) {
	if s.backend == nil {
		return nil, errNoBackend
	}

	s.recorderMutex.Lock()
	defer s.recorderMutex.Unlock()

	// An open recorder already holds the device subsystem.
	if s.recorder != nil {
		return s.backend.ListDevices()
	}
	if err := s.backend.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceInit, err)
	}
	defer func() {
		if err := s.backend.Terminate(); err != nil {
			slog.Warn("failed to terminate audio backend", "error", err)
		}
	}()
	return s.backend.ListDevices()
}

// Close releases the recorder, if one was created
func (s *VoiceCaptureService) Close() error {
	s.recorderMutex.Lock()
	defer s.recorderMutex.Unlock()

	if s.recorder == nil {
		return nil
	}
	err := s.recorder.Close()
	s.recorder = nil
	return err
}

// GetLastError returns the last error message (thread-safe)
func (s *VoiceCaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *VoiceCaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *VoiceCaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// CleanFileName sanitizes a recording name for use as a file name.
// Allows: letters, numbers, spaces, hyphens, underscores
func CleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

var _ Service = (*VoiceCaptureService)(nil)
