// Package output persists cost reports to the filesystem or S3.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/schollz/progressbar/v3"

	awsutil "stackpilot/internal/aws"
	"stackpilot/internal/logging"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// Type represents the output destination
type Type string

const (
	// FileSystem represents local filesystem output
	FileSystem Type = "filesystem"
	// S3 represents S3 bucket output
	S3 Type = "s3"
)

// RetryConfig holds retry configuration for S3 uploads
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Config holds writer configuration
type Config struct {
	Type      Type
	Dir       string // report directory (filesystem) or key prefix (s3)
	Prefix    string // filename prefix
	S3Bucket  string
	S3Region  string
	Retry     *RetryConfig
}

// Writer handles writing reports to the configured destination
type Writer struct {
	config Config
	now    func() time.Time
}

// NewWriter creates a report writer with default settings
func NewWriter(config Config) *Writer {
	if config.Retry == nil {
		config.Retry = &RetryConfig{
			MaxRetries: defaultMaxRetries,
			RetryDelay: defaultRetryDelay,
		}
	}
	if config.Type == FileSystem && config.Dir == "" {
		config.Dir = "reports"
	}
	return &Writer{config: config, now: time.Now}
}

// filePath returns <dir>/<prefix>_<YYYYMMDD_HHMMSS>.json
func (w *Writer) filePath(t time.Time) string {
	fileName := fmt.Sprintf("%s_%s.json", w.config.Prefix, t.Format("20060102_150405"))
	if w.config.Dir == "" {
		return fileName
	}
	return filepath.Join(w.config.Dir, fileName)
}

// Write marshals the report and writes it to the configured destination,
// returning the path it was written to.
func (w *Writer) Write(report interface{}) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := w.filePath(w.now())

	switch w.config.Type {
	case FileSystem:
		return path, w.writeToFileSystem(path, data)
	case S3:
		return path, w.writeToS3WithRetry(path, data)
	default:
		return "", fmt.Errorf("unsupported output type: %s", w.config.Type)
	}
}

func (w *Writer) writeToFileSystem(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

func (w *Writer) writeToS3WithRetry(path string, data []byte) error {
	if w.config.S3Bucket == "" {
		return fmt.Errorf("S3 bucket not specified")
	}

	var lastErr error
	for attempt := 0; attempt < w.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Warn("Retrying S3 upload", map[string]interface{}{
				"attempt": attempt + 1,
				"error":   lastErr.Error(),
			})
			time.Sleep(w.config.Retry.RetryDelay)
		}

		if err := w.writeToS3(path, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to upload to S3 after %d attempts: %w",
		w.config.Retry.MaxRetries, lastErr)
}

func (w *Writer) writeToS3(path string, data []byte) error {
	sess, err := awsutil.GetSession(w.config.S3Region)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	uploader := s3manager.NewUploader(sess)

	bar := progressbar.NewOptions64(
		int64(len(data)),
		progressbar.OptionSetDescription("Uploading report to S3..."),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	reader := &progressReader{
		reader: bytes.NewReader(data),
		bar:    bar,
	}

	_, err = uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(w.config.S3Bucket),
		Key:         aws.String(path),
		Body:        reader,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// progressReader wraps an io.Reader to track upload progress
type progressReader struct {
	reader io.Reader
	bar    *progressbar.ProgressBar
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if barErr := r.bar.Add(n); barErr != nil {
		fmt.Fprintf(os.Stderr, "Error updating progress bar: %v\n", barErr)
	}
	return n, err
}
