// Package store persists extraction records in Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/docchat/internal/models"
)

// DBTX is the subset of *pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const maxListLimit = 200

type Extractions struct {
	db DBTX
}

func NewExtractions(db DBTX) *Extractions {
	return &Extractions{db: db}
}

// InsertExtraction implements document.RecordStore.
func (s *Extractions) InsertExtraction(ctx context.Context, rec *models.Extraction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO extractions (id, content_hash, source, page_count, language, title, author,
		     has_images, is_scanned, ocr_used, status, error_kind, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.ContentHash, rec.Source, rec.PageCount, rec.Language, rec.Title, rec.Author,
		rec.HasImages, rec.IsScanned, rec.OCRUsed, rec.Status, rec.ErrorKind, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

// ListExtractions returns the most recent records, newest first.
func (s *Extractions) ListExtractions(ctx context.Context, limit int) ([]models.Extraction, error) {
	limit = clampLimit(limit)

	rows, err := s.db.Query(ctx,
		`SELECT id, content_hash, source, page_count, language, title, author,
		        has_images, is_scanned, ocr_used, status, error_kind, duration_ms, created_at
		 FROM extractions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}

	recs, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Extraction])
	if err != nil {
		return nil, fmt.Errorf("scan extractions: %w", err)
	}
	return recs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
