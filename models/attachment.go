package models

import (
	"time"

	"gorm.io/gorm"
)

// Attachment processing status values.
const (
	AttachmentStatusUploading  = "uploading"
	AttachmentStatusProcessing = "processing"
	AttachmentStatusCompleted  = "completed"
	AttachmentStatusDeleted    = "deleted"
)

// Attachable entity type values.
const (
	AttachableTypePost    = "post"
	AttachableTypeComment = "comment"
)

// Attachment records one uploaded file. Records sharing the same content hash
// may share a physical FilePath; the last live referrer owns the bytes.
type Attachment struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"index;not null" json:"user_id"`
	AttachableType string         `gorm:"size:32;index:idx_attachable" json:"attachable_type"`
	AttachableID   uint           `gorm:"index:idx_attachable" json:"attachable_id"`
	StoredName     string         `gorm:"size:255;not null" json:"stored_name"`
	OriginalName   string         `gorm:"size:255;not null" json:"original_name"`
	FilePath       string         `gorm:"size:1024;not null" json:"file_path"`
	Extension      string         `gorm:"size:16" json:"extension"`
	FileSize       int64          `gorm:"not null" json:"file_size"`
	MimeType       string         `gorm:"size:128" json:"mime_type"`
	Hash           string         `gorm:"size:64;index" json:"hash"`
	UploadIP       string         `gorm:"size:45" json:"-"`
	// No default tag: gorm skips zero-value fields that carry one on insert,
	// which would silently turn a private upload public.
	IsPublic       bool           `gorm:"not null" json:"is_public"`
	HasThumbnail   bool           `gorm:"default:false" json:"has_thumbnail"`
	ThumbPath      string         `gorm:"size:1024" json:"thumb_path,omitempty"`
	Status         string         `gorm:"size:16;default:'uploading';index" json:"status"`
	Width          int            `gorm:"default:0" json:"width,omitempty"`
	Height         int            `gorm:"default:0" json:"height,omitempty"`
	DownloadCount  int64          `gorm:"default:0" json:"download_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
