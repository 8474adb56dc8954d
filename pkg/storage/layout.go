// Package storage implements the on-disk filesystem layout the core owns:
// original/thumbnail image directories under a configurable root, tilde
// expansion, and thumbnail generation (spec §6.5).
package storage

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/visionforge/core/pkg/corerr"
)

// ThumbnailSize is the box-constrained scale target (spec §6.5).
const ThumbnailSize = 256

// Layout resolves the filesystem paths the core owns under one root.
type Layout struct {
	root string
}

// NewLayout expands a tilde-prefixed root (spec §6.5) and builds a Layout.
// An empty root defaults to "~/.visionforge".
func NewLayout(root string) (*Layout, error) {
	if root == "" {
		root = "~/.visionforge"
	}
	expanded, err := expandTilde(root)
	if err != nil {
		return nil, err
	}
	return &Layout{root: expanded}, nil
}

// expandTilde expands a leading "~" or "~/..." to the user's home directory.
func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", corerr.Wrap(corerr.KindIO, "failed to resolve home directory", err)
	}
	if path == "~" {
		return u.HomeDir, nil
	}
	return filepath.Join(u.HomeDir, path[2:]), nil
}

// Root returns the resolved storage root.
func (l *Layout) Root() string { return l.root }

// DatabasePath is the store file's location (spec §6.5).
func (l *Layout) DatabasePath() string { return filepath.Join(l.root, "gallery.db") }

// OriginalsDir is the directory holding full-resolution originals.
func (l *Layout) OriginalsDir() string { return filepath.Join(l.root, "images", "originals") }

// ThumbnailsDir is the directory holding scaled-down thumbnails.
func (l *Layout) ThumbnailsDir() string { return filepath.Join(l.root, "images", "thumbnails") }

// OriginalPath returns the full path to an original image by filename.
func (l *Layout) OriginalPath(filename string) string {
	return filepath.Join(l.OriginalsDir(), filename)
}

// ThumbnailPath returns the full path to a thumbnail by original filename,
// stem-derived with a "_thumb.jpg" suffix (spec §6.5).
func (l *Layout) ThumbnailPath(filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return filepath.Join(l.ThumbnailsDir(), stem+"_thumb.jpg")
}

// EnsureDirs creates the originals/thumbnails directories if absent.
func (l *Layout) EnsureDirs() error {
	if err := os.MkdirAll(l.OriginalsDir(), 0o755); err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to create originals directory", err)
	}
	if err := os.MkdirAll(l.ThumbnailsDir(), 0o755); err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to create thumbnails directory", err)
	}
	return nil
}

// NewFilename builds "<YYYY-MM-DD_HH-MM-SS>_<short uuid>.png" for the given
// instant (original_source src-tauri/src/gallery/storage.rs
// generate_filename).
func NewFilename(at time.Time) string {
	return at.UTC().Format("2006-01-02_15-04-05") + "_" + uuid.NewString()[:8] + ".png"
}
