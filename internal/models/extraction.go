package models

import (
	"time"

	"github.com/google/uuid"
)

// Extraction is the audit row written for every extraction attempt.
type Extraction struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Source      string    `json:"source" db:"source"`
	PageCount   int       `json:"page_count" db:"page_count"`
	Language    string    `json:"language,omitempty" db:"language"`
	Title       string    `json:"title,omitempty" db:"title"`
	Author      string    `json:"author,omitempty" db:"author"`
	HasImages   bool      `json:"has_images" db:"has_images"`
	IsScanned   bool      `json:"is_scanned" db:"is_scanned"`
	OCRUsed     bool      `json:"ocr_used" db:"ocr_used"`
	Status      string    `json:"status" db:"status"`
	ErrorKind   string    `json:"error_kind,omitempty" db:"error_kind"`
	DurationMS  int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const (
	ExtractionStatusReady  = "ready"
	ExtractionStatusFailed = "failed"
)

// Extraction sources.
const (
	SourceAPI  = "api"
	SourceJob  = "job"
	SourceChat = "chat"
)
