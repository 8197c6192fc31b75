package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

// ContentCache stores extraction results by content hash.
type ContentCache interface {
	GetContent(ctx context.Context, hash string) (*Content, bool, error)
	SetContent(ctx context.Context, hash string, c *Content) error
}

// RecordStore persists one audit record per extraction.
type RecordStore interface {
	InsertExtraction(ctx context.Context, rec *models.Extraction) error
}

// Service fronts an Extractor with an optional content cache and record
// store. Both are best effort: their failures are logged, never returned.
type Service struct {
	extractor *Extractor
	cache     ContentCache
	records   RecordStore
	logger    *slog.Logger
}

func NewService(extractor *Extractor, cache ContentCache, records RecordStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractor: extractor, cache: cache, records: records, logger: logger}
}

func (s *Service) Extractor() *Extractor { return s.extractor }

// Extract returns cached content for a previously seen PDF, or runs the
// extractor and caches the result. Input that does not decode to a PDF never
// reaches the cache.
func (s *Service) Extract(ctx context.Context, dataURI, source string) (*Content, error) {
	file, err := datauri.Decode(dataURI)
	if err != nil || file.MIMEType != MIMETypePDF {
		start := time.Now()
		content, err := s.extractor.Extract(ctx, dataURI)
		s.record(ctx, "", source, content, err, time.Since(start))
		return content, err
	}

	hash := HashContent(file.Data)
	if s.cache != nil {
		c, ok, err := s.cache.GetContent(ctx, hash)
		if err != nil {
			s.logger.Warn("content cache read failed", "hash", hash, "error", err)
		} else if ok {
			s.logger.Debug("content cache hit", "hash", hash)
			return c, nil
		}
	}

	start := time.Now()
	content, err := s.extractor.ExtractPDF(ctx, file.Data)
	s.record(ctx, hash, source, content, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetContent(ctx, hash, content); err != nil {
			s.logger.Warn("content cache write failed", "hash", hash, "error", err)
		}
	}
	return content, nil
}

func (s *Service) record(ctx context.Context, hash, source string, c *Content, extractErr error, dur time.Duration) {
	if s.records == nil {
		return
	}
	rec := &models.Extraction{
		ID:          uuid.New(),
		ContentHash: hash,
		Source:      source,
		Status:      models.ExtractionStatusReady,
		DurationMS:  dur.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if extractErr != nil {
		rec.Status = models.ExtractionStatusFailed
		rec.ErrorKind = KindName(extractErr)
	} else if c != nil {
		rec.PageCount = c.Metadata.PageCount
		rec.Language = c.Metadata.Language
		rec.Title = c.Metadata.Title
		rec.Author = c.Metadata.Author
		rec.HasImages = c.Metadata.HasImages
		rec.IsScanned = c.Metadata.IsScanned
		rec.OCRUsed = c.Metadata.OCRUsed
	}
	if err := s.records.InsertExtraction(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("record extraction failed", "error", err)
	}
}

// HashContent is the cache key for decoded PDF bytes.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
