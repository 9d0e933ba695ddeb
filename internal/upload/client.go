// Package upload sends recordings to the processing API and stores its reply.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnexpectedStatus is returned when the API answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected API response status")

// maxErrorBody is how much of a failed response body is kept in the error.
const maxErrorBody = 512

// Config holds the API connection settings.
type Config struct {
	URL     string
	Timeout time.Duration
	Retries int
}

// Client uploads files to the API.
type Client struct {
	url  string
	http *resty.Client
}

// NewClient creates an upload client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("api url is required")
	}

	c := resty.New().
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}

	return &Client{url: cfg.URL, http: c}, nil
}

// Upload posts inputPath as the multipart field "file" and writes the
// response body to outputPath. The output is written to a temporary file
// beside outputPath and renamed into place only on a 2xx response.
func (c *Client) Upload(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("upload input: %w", err)
	}

	slog.Info("uploading recording", "path", inputPath, "url", c.url)

	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", inputPath).
		SetDoNotParseResponse(true).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("upload %s: %w", inputPath, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		msg, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode(), msg)
	}

	n, err := writeAtomic(outputPath, body)
	if err != nil {
		return err
	}

	slog.Info("API response saved", "path", outputPath, "bytes", n)
	return nil
}

func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write API response: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move API response into place: %w", err)
	}
	return n, nil
}
