package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout_TildeExpansion(t *testing.T) {
	l, err := NewLayout("~/custom-root")
	require.NoError(t, err)
	assert.NotContains(t, l.Root(), "~")
	assert.True(t, filepath.IsAbs(l.Root()))
}

func TestNewLayout_EmptyDefaultsToVisionForge(t *testing.T) {
	l, err := NewLayout("")
	require.NoError(t, err)
	assert.Contains(t, l.Root(), ".visionforge")
}

func TestNewLayout_AbsolutePathUnchanged(t *testing.T) {
	l, err := NewLayout("/tmp/my-images")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/my-images", l.Root())
}

func TestLayout_DirAndFilePaths(t *testing.T) {
	l, err := NewLayout("/tmp/my-images")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/my-images/images/originals", l.OriginalsDir())
	assert.Equal(t, "/tmp/my-images/images/thumbnails", l.ThumbnailsDir())
	assert.Equal(t, "/tmp/my-images/gallery.db", l.DatabasePath())
	assert.Equal(t, "/tmp/my-images/images/originals/test.png", l.OriginalPath("test.png"))
	assert.Equal(t, "/tmp/my-images/images/thumbnails/test_thumb.jpg", l.ThumbnailPath("test.png"))
}

func TestNewFilename_FormatAndExtension(t *testing.T) {
	at := time.Date(2026, 1, 15, 12, 30, 45, 0, time.UTC)
	name := NewFilename(at)
	assert.Equal(t, "2026-01-15_12-30-45_", name[:20])
	assert.True(t, len(name) == len("2026-01-15_12-30-45_")+8+len(".png"))
}

func TestEnsureDirs_CreatesBothDirectories(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLayout(dir)
	require.NoError(t, err)
	require.NoError(t, l.EnsureDirs())

	assert.DirExists(t, l.OriginalsDir())
	assert.DirExists(t, l.ThumbnailsDir())
}
