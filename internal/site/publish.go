package site

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"stackpilot/internal/logging"
)

// contentTypes maps uploaded extensions to their Content-Type header
var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".ico":  true,
	".svg":  true,
}

// Publisher uploads site content to an S3 bucket
type Publisher struct {
	s3       s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewPublisher creates a publisher using the given S3 client and uploader
func NewPublisher(client s3iface.S3API, uploader s3manageriface.UploaderAPI) *Publisher {
	return &Publisher{s3: client, uploader: uploader}
}

// Stats summarizes a publish run
type Stats struct {
	Files   int
	Skipped int
	Bytes   int64
}

// Publish walks dir and uploads the allow-listed files (index.html,
// stylesheets, images) under keyPrefix. Other files, CloudFormation
// templates included, are skipped. The bucket must be reachable.
func (p *Publisher) Publish(ctx context.Context, bucket, keyPrefix, dir string) (Stats, error) {
	var stats Stats

	_, err := p.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return stats, fmt.Errorf("bucket %s not accessible: %w", bucket, err)
	}

	files, total, skipped, err := collectFiles(dir)
	if err != nil {
		return stats, err
	}
	stats.Skipped = skipped
	if len(files) == 0 {
		return stats, fmt.Errorf("no uploadable files found in %s", dir)
	}

	bar := progressbar.DefaultBytes(total, "Uploading site")
	for _, file := range files {
		if err := p.uploadFile(ctx, bucket, keyPrefix, dir, file, bar); err != nil {
			return stats, err
		}
		stats.Files++
	}
	stats.Bytes = total

	logging.Info("Site upload complete", map[string]interface{}{
		"bucket":  bucket,
		"files":   stats.Files,
		"skipped": stats.Skipped,
		"size":    humanize.Bytes(uint64(total)),
	})
	return stats, nil
}

func (p *Publisher) uploadFile(ctx context.Context, bucket, keyPrefix, dir, file string, bar *progressbar.ProgressBar) error {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return err
	}
	key := path.Join(keyPrefix, filepath.ToSlash(rel))

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	logging.Debug("Uploading file", map[string]interface{}{
		"file": file,
		"key":  key,
	})

	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        &progressReader{reader: f, bar: bar},
		ContentType: aws.String(contentTypeFor(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// collectFiles walks dir gathering allow-listed files and their total size
func collectFiles(dir string) (files []string, total int64, skipped int, err error) {
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !shouldUpload(d.Name()) {
			logging.Debug("Skipping file", map[string]interface{}{"file": p})
			skipped++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, p)
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return files, total, skipped, nil
}

// shouldUpload applies the allow-list: index.html itself, stylesheets,
// and images. Everything else stays local.
func shouldUpload(name string) bool {
	if name == "index.html" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".css" || imageExtensions[ext]
}

func contentTypeFor(file string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(file))]; ok {
		return ct
	}
	return "application/octet-stream"
}

type progressReader struct {
	reader *os.File
	bar    *progressbar.ProgressBar
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		_ = r.bar.Add(n)
	}
	return n, err
}
