package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/models"
)

// ImageStore persists the terminal artifact records the Executor writes on
// a successful generation (spec §3 Image record).
type ImageStore struct {
	db *sql.DB
}

// NewImageStore wraps an open database handle.
func NewImageStore(db *sql.DB) *ImageStore {
	return &ImageStore{db: db}
}

// Insert records one produced image.
func (s *ImageStore) Insert(ctx context.Context, img models.Image) error {
	settingsJSON, err := json.Marshal(img.Settings)
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to encode image settings", err)
	}

	var pipelineLog any
	if len(img.PipelineLog) > 0 {
		pipelineLog = string(img.PipelineLog)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO images (id, filename, checkpoint, seed, created_at, settings_json, pipeline_log)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.Filename, img.Settings.Checkpoint, img.Settings.Seed,
		img.CreatedAt.UTC().Format(timeLayout), string(settingsJSON), pipelineLog)
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to insert image record", err)
	}
	return nil
}

// GetByID fetches a single image record.
func (s *ImageStore) GetByID(ctx context.Context, id string) (models.Image, error) {
	var (
		img          models.Image
		createdAt    string
		settingsJSON string
		pipelineLog  sql.NullString
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, created_at, settings_json, pipeline_log FROM images WHERE id = ?`, id)
	if err := row.Scan(&img.ID, &img.Filename, &createdAt, &settingsJSON, &pipelineLog); err != nil {
		if err == sql.ErrNoRows {
			return models.Image{}, corerr.Newf(corerr.KindNotFound, "image %q not found", id)
		}
		return models.Image{}, corerr.Wrap(corerr.KindIO, "failed to get image", err)
	}

	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return models.Image{}, corerr.Wrap(corerr.KindIO, "failed to parse image created_at", err)
	}
	img.CreatedAt = created

	if err := json.Unmarshal([]byte(settingsJSON), &img.Settings); err != nil {
		return models.Image{}, corerr.Wrap(corerr.KindIO, "failed to decode image settings", err)
	}
	if pipelineLog.Valid {
		img.PipelineLog = json.RawMessage(pipelineLog.String)
	}

	return img, nil
}
