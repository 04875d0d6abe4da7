// Package site publishes the static résumé site to S3 and patches
// deployed endpoint values into its index.html.
package site

import (
	"fmt"
	"os"
	"path/filepath"

	"stackpilot/internal/logging"
)

// DefaultBaseDir is where the static website solution keeps its files
const DefaultBaseDir = "iac/static_website"

// ResolveContentDir picks the directory holding site content. The
// configured content_dir wins when it exists; otherwise a content/
// subdirectory of the base dir, then the base dir itself.
func ResolveContentDir(configured string) (string, error) {
	if configured != "" {
		if isDir(configured) {
			logging.Debug("Using content directory from config", map[string]interface{}{
				"dir": configured,
			})
			return configured, nil
		}
		logging.Warn("Configured content directory not found", map[string]interface{}{
			"dir": configured,
		})
	}

	if !isDir(DefaultBaseDir) {
		return "", fmt.Errorf("static website directory %q not found", DefaultBaseDir)
	}

	sub := filepath.Join(DefaultBaseDir, "content")
	if isDir(sub) {
		logging.Debug("Using content subdirectory", map[string]interface{}{
			"dir": sub,
		})
		return sub, nil
	}
	return DefaultBaseDir, nil
}

// IndexPath locates index.html under the resolved content directory
func IndexPath(configuredContentDir string) (string, error) {
	dir, err := ResolveContentDir(configuredContentDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "index.html")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("index.html not found in %s", dir)
	}
	return path, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
