// Package archive copies saved recordings to S3-compatible object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolibrelab/voicecapture/internal/codec"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("archive is not configured")

// Config holds the object storage settings.
type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// IsConfigured reports whether archiving is enabled.
func (c Config) IsConfigured() bool {
	return c.Bucket != ""
}

// Archiver uploads recordings to a bucket.
type Archiver struct {
	cfg    Config
	client *s3.Client
	now    func() time.Time
}

// New creates an Archiver. It fails with ErrNotConfigured when no bucket is set.
func New(cfg Config) (*Archiver, error) {
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	return &Archiver{
		cfg:    cfg,
		client: newS3Client(cfg),
		now:    time.Now,
	}, nil
}

func newS3Client(cfg Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
			o.Region = region
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		},
	}

	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.New(s3.Options{}, options...)
}

// Key returns the object key for a recording:
// <prefix>/YYYY/MM/DD/<session>-<file name>.
func (a *Archiver) Key(filePath, sessionID string, at time.Time) string {
	name := filepath.Base(filePath)
	if sessionID != "" {
		name = sessionID + "-" + name
	}
	return path.Join(strings.Trim(a.cfg.Prefix, "/"), at.UTC().Format("2006/01/02"), name)
}

// Archive uploads the file at filePath and returns its object key.
func (a *Archiver) Archive(ctx context.Context, filePath, sessionID string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat recording: %w", err)
	}

	key := a.Key(filePath, sessionID, a.now())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(filePath)),
	})
	if err != nil {
		return "", fmt.Errorf("upload to bucket %s: %w", a.cfg.Bucket, err)
	}

	slog.Info("recording archived", "bucket", a.cfg.Bucket, "key", key, "size", info.Size())
	return key, nil
}

func contentType(filePath string) string {
	switch codec.ResolveFormat(filePath) {
	case codec.FormatWAV:
		return "audio/wav"
	case codec.FormatFLAC:
		return "audio/flac"
	case codec.FormatOgg:
		return "audio/ogg"
	case codec.FormatMP3:
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
