package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/config"
	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/utils"
)

// WebP transcoding modes.
const (
	WebPModePreserve = "preserve" // never convert
	WebPModeForce    = "force"    // always convert images
	WebPModeAuto     = "auto"     // convert when source size >= threshold
	WebPModeOptional = "optional" // convert only when the caller opts in
)

const webpQuality = 82

// AttachmentConfig carries the storage and processing knobs for uploads so
// the service stays testable without the global config.
type AttachmentConfig struct {
	BaseDir       string
	BaseURL       string
	MaxFileSize   int64
	AllowedTypes  []string
	WebPMode      string
	WebPThreshold int64
	ThumbWidth    int
	ThumbHeight   int
}

// AttachmentConfigFromApp derives attachment settings from the app config.
func AttachmentConfigFromApp(cfg config.AppConfig) AttachmentConfig {
	return AttachmentConfig{
		BaseDir:       cfg.UploadBaseDir,
		BaseURL:       cfg.UploadBaseURL,
		MaxFileSize:   int64(cfg.UploadMaxSizeMB) << 20,
		AllowedTypes:  cfg.UploadAllowedTypes,
		WebPMode:      cfg.WebPMode,
		WebPThreshold: int64(cfg.WebPThresholdKB) << 10,
		ThumbWidth:    cfg.ThumbWidth,
		ThumbHeight:   cfg.ThumbHeight,
	}
}

// AttachmentService validates, hashes, deduplicates, optionally transcodes
// and thumbnails uploads, and persists their metadata.
type AttachmentService struct {
	db  *gorm.DB
	cfg AttachmentConfig
}

// NewAttachmentService creates a new AttachmentService.
func NewAttachmentService(db *gorm.DB, cfg AttachmentConfig) *AttachmentService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 << 20
	}
	if cfg.WebPMode == "" {
		cfg.WebPMode = WebPModeAuto
	}
	if cfg.ThumbWidth <= 0 {
		cfg.ThumbWidth = 320
	}
	if cfg.ThumbHeight <= 0 {
		cfg.ThumbHeight = 240
	}
	return &AttachmentService{db: db, cfg: cfg}
}

// UploadOptions are per-call overrides for one upload.
type UploadOptions struct {
	MaxFileSize   int64    // 0 means use the configured maximum
	AllowedTypes  []string // nil means use the configured allow-list
	WebPMode      string   // "" means use the configured mode
	ConvertToWebP bool     // explicit opt-in, honored by mode "optional"
	IsPrivate     bool
}

// UploadInput describes one incoming file.
type UploadInput struct {
	Reader         io.Reader
	OriginalName   string
	AttachableType string
	AttachableID   uint
	UserID         uint
	IP             string
	Options        UploadOptions
}

// Upload runs the full pipeline: validate size and MIME, hash, dedup by hash,
// optionally transcode images to WebP, write bytes, thumbnail, persist.
// Validation failures return a ValidationError before any disk I/O; thumbnail
// failures are logged and never fail the upload.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput) (*models.Attachment, error) {
	maxSize := in.Options.MaxFileSize
	if maxSize <= 0 {
		maxSize = s.cfg.MaxFileSize
	}
	allowed := in.Options.AllowedTypes
	if allowed == nil {
		allowed = s.cfg.AllowedTypes
	}

	data, err := io.ReadAll(io.LimitReader(in.Reader, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, NewValidationError(fmt.Sprintf("file size exceeds %d bytes", maxSize))
	}
	if len(data) == 0 {
		return nil, NewValidationError("empty file")
	}

	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !mimeAllowed(mime, allowed) {
		return nil, NewValidationError("file type not allowed: " + mime)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	att := &models.Attachment{
		UserID:         in.UserID,
		AttachableType: in.AttachableType,
		AttachableID:   in.AttachableID,
		OriginalName:   filepath.Base(in.OriginalName),
		FileSize:       int64(len(data)),
		MimeType:       mime,
		Hash:           hash,
		UploadIP:       in.IP,
		IsPublic:       !in.Options.IsPrivate,
		Status:         models.AttachmentStatusUploading,
	}

	// Dedup: an earlier completed upload with the same content shares its
	// stored bytes and thumbnail instead of writing a second copy.
	var existing models.Attachment
	dErr := s.db.WithContext(ctx).
		Where("hash = ? AND status = ?", hash, models.AttachmentStatusCompleted).
		First(&existing).Error
	switch {
	case dErr == nil:
		att.StoredName = existing.StoredName
		att.FilePath = existing.FilePath
		att.Extension = existing.Extension
		att.MimeType = existing.MimeType
		att.FileSize = existing.FileSize
		att.Width = existing.Width
		att.Height = existing.Height
		att.HasThumbnail = existing.HasThumbnail
		att.ThumbPath = existing.ThumbPath
		att.Status = models.AttachmentStatusCompleted
		if err := s.db.WithContext(ctx).Create(att).Error; err != nil {
			return nil, err
		}
		return att, nil
	case dErr != gorm.ErrRecordNotFound:
		return nil, dErr
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.OriginalName)), ".")
	if ext == "" {
		ext = extensionForMime(mime)
	}

	isImage := strings.HasPrefix(mime, "image/")
	if isImage {
		cfg, _, cfgErr := utils.DecodeImageConfig(bytes.NewReader(data))
		if cfgErr == nil {
			att.Width = cfg.Width
			att.Height = cfg.Height
		}
		if s.shouldConvertToWebP(in.Options, mime, int64(len(data))) {
			converted, cErr := s.transcodeWebP(data)
			if cErr != nil {
				utils.Sugar.Warnf("webp transcode failed, keeping original: %v", cErr)
			} else {
				data = converted
				ext = "webp"
				mime = "image/webp"
				att.MimeType = mime
				att.FileSize = int64(len(data))
			}
		}
	}

	now := time.Now()
	relDir := filepath.Join("attachments", now.Format("2006"), now.Format("01"), now.Format("02"))
	base := sanitizeBaseName(in.OriginalName)
	storedName := fmt.Sprintf("%s_%s.%s", base, uuid.NewString()[:8], ext)
	relPath := filepath.Join(relDir, storedName)

	att.StoredName = storedName
	att.FilePath = relPath
	att.Extension = ext

	if err := s.db.WithContext(ctx).Create(att).Error; err != nil {
		return nil, err
	}

	absDir := filepath.Join(s.cfg.BaseDir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		s.discardRow(ctx, att)
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.cfg.BaseDir, relPath), data, 0o644); err != nil {
		s.discardRow(ctx, att)
		return nil, err
	}
	s.setStatus(ctx, att, models.AttachmentStatusProcessing)

	if isImage {
		if thumbPath, tErr := s.writeThumbnail(data, relDir, base); tErr != nil {
			// Soft-fail: the upload stands even without a thumbnail.
			utils.Sugar.Warnf("thumbnail generation failed for %s: %v", relPath, tErr)
		} else {
			att.HasThumbnail = true
			att.ThumbPath = thumbPath
			_ = s.db.WithContext(ctx).Model(att).
				Updates(map[string]interface{}{"has_thumbnail": true, "thumb_path": thumbPath}).Error
		}
	}

	s.setStatus(ctx, att, models.AttachmentStatusCompleted)
	return att, nil
}

// Delete checks ownership, removes the physical file only when no other live
// record shares the hash, and soft-deletes the row.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID, userID uint, isAdmin bool) error {
	var att models.Attachment
	if err := s.db.WithContext(ctx).First(&att, attachmentID).Error; err != nil {
		return err
	}

	if att.UserID != userID && !isAdmin {
		return NewAuthorizationError("you can only delete your own attachments")
	}

	var sharers int64
	if err := s.db.WithContext(ctx).Model(&models.Attachment{}).
		Where("hash = ? AND id <> ? AND status <> ?", att.Hash, att.ID, models.AttachmentStatusDeleted).
		Count(&sharers).Error; err != nil {
		return err
	}
	if sharers == 0 {
		_ = os.Remove(filepath.Join(s.cfg.BaseDir, att.FilePath))
		if att.ThumbPath != "" {
			_ = os.Remove(filepath.Join(s.cfg.BaseDir, att.ThumbPath))
		}
	}

	if err := s.db.WithContext(ctx).Model(&att).
		Update("status", models.AttachmentStatusDeleted).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&att).Error
}

// ListByUser returns a page of the user's non-deleted attachments.
func (s *AttachmentService) ListByUser(ctx context.Context, userID uint, page, pageSize int) ([]models.Attachment, int64, error) {
	var items []models.Attachment
	var total int64
	q := s.db.WithContext(ctx).Model(&models.Attachment{}).
		Where("user_id = ? AND status <> ?", userID, models.AttachmentStatusDeleted)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Download resolves an attachment for serving, enforcing the visibility
// predicate, and bumps its download counter.
func (s *AttachmentService) Download(ctx context.Context, attachmentID, userID uint, isAdmin bool) (*models.Attachment, string, error) {
	var att models.Attachment
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.AttachmentStatusCompleted).
		First(&att, attachmentID).Error; err != nil {
		return nil, "", err
	}
	if !att.IsPublic && att.UserID != userID && !isAdmin {
		return nil, "", NewAuthorizationError("attachment is private")
	}
	_ = s.db.WithContext(ctx).Model(&att).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
	return &att, filepath.Join(s.cfg.BaseDir, att.FilePath), nil
}

// URL maps a stored relative path to its public URL.
func (s *AttachmentService) URL(relPath string) string {
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/" + filepath.ToSlash(relPath)
}

func (s *AttachmentService) shouldConvertToWebP(opts UploadOptions, mime string, size int64) bool {
	if mime == "image/webp" || mime == "image/gif" {
		return false
	}
	mode := opts.WebPMode
	if mode == "" {
		mode = s.cfg.WebPMode
	}
	switch mode {
	case WebPModeForce:
		return true
	case WebPModeAuto:
		return size >= s.cfg.WebPThreshold
	case WebPModeOptional:
		return opts.ConvertToWebP
	default: // preserve
		return false
	}
}

func (s *AttachmentService) transcodeWebP(data []byte) ([]byte, error) {
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := utils.EncodeWebP(&buf, img, webpQuality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *AttachmentService) writeThumbnail(data []byte, relDir, base string) (string, error) {
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumb := utils.Thumbnail(img, s.cfg.ThumbWidth, s.cfg.ThumbHeight)
	relPath := filepath.Join(relDir, base+"_thumb.jpg")
	f, err := os.Create(filepath.Join(s.cfg.BaseDir, relPath))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := utils.EncodeJPEG(f, thumb, 85); err != nil {
		return "", err
	}
	return relPath, nil
}

// discardRow removes a metadata row whose bytes never reached disk, so a
// failed write does not leave a permanent "uploading" record behind.
func (s *AttachmentService) discardRow(ctx context.Context, att *models.Attachment) {
	if err := s.db.WithContext(ctx).Unscoped().Delete(att).Error; err != nil {
		utils.Sugar.Warnf("failed to remove attachment row %d after write failure: %v", att.ID, err)
	}
}

func (s *AttachmentService) setStatus(ctx context.Context, att *models.Attachment, status string) {
	att.Status = status
	if err := s.db.WithContext(ctx).Model(att).Update("status", status).Error; err != nil {
		utils.Sugar.Warnf("attachment %d status update failed: %v", att.ID, err)
	}
}

// mimeAllowed matches mime against the allow-list; entries may be exact
// ("image/png") or wildcard prefixes ("image/*").
func mimeAllowed(mime string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, pattern := range allowed {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.HasSuffix(pattern, "/*") {
			if strings.HasPrefix(mime, strings.TrimSuffix(pattern, "*")) {
				return true
			}
			continue
		}
		if strings.EqualFold(pattern, mime) {
			return true
		}
	}
	return false
}

func extensionForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "application/pdf":
		return "pdf"
	case "application/zip":
		return "zip"
	case "text/plain":
		return "txt"
	default:
		return "bin"
	}
}

// sanitizeBaseName strips the extension and any path traversal characters
// from the uploaded file name, falling back to a timestamped name.
func sanitizeBaseName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables pass through
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("file_%d", time.Now().UnixNano())
	}
	out := b.String()
	if runes := []rune(out); len(runes) > 64 {
		out = string(runes[:64])
	}
	return out
}
