package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/utils"
)

func testAttachmentConfig(t *testing.T) AttachmentConfig {
	t.Helper()
	return AttachmentConfig{
		BaseDir:       t.TempDir(),
		BaseURL:       "/static/uploads",
		MaxFileSize:   1 << 20,
		AllowedTypes:  []string{"image/*", "text/plain"},
		WebPMode:      WebPModePreserve,
		WebPThreshold: 512 << 10,
		ThumbWidth:    320,
		ThumbHeight:   240,
	}
}

// pngBytes renders a small opaque PNG so DetectContentType sees image/png.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadInput(data []byte, name string, userID uint) UploadInput {
	return UploadInput{
		Reader:         bytes.NewReader(data),
		OriginalName:   name,
		AttachableType: models.AttachableTypePost,
		AttachableID:   1,
		UserID:         userID,
		IP:             "127.0.0.1",
	}
}

func TestUploadStoresImageWithThumbnail(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)

	att, err := svc.Upload(context.Background(), uploadInput(pngBytes(t, 64, 48), "photo.png", user.ID))
	require.NoError(t, err)

	assert.Equal(t, models.AttachmentStatusCompleted, att.Status)
	assert.Equal(t, "image/png", att.MimeType)
	assert.Equal(t, "png", att.Extension)
	assert.Equal(t, 64, att.Width)
	assert.Equal(t, 48, att.Height)
	assert.Len(t, att.Hash, 64, "sha-256 hex digest")
	assert.Equal(t, "photo.png", att.OriginalName)
	assert.NotEqual(t, att.OriginalName, att.StoredName)

	if _, err := os.Stat(filepath.Join(cfg.BaseDir, att.FilePath)); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	require.True(t, att.HasThumbnail)
	if _, err := os.Stat(filepath.Join(cfg.BaseDir, att.ThumbPath)); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}
	assert.True(t, strings.HasPrefix(svc.URL(att.FilePath), "/static/uploads/attachments/"))
}

func TestUploadRejectsOversizeAndEmpty(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	cfg.MaxFileSize = 10
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	_, err := svc.Upload(ctx, uploadInput([]byte("this is more than ten bytes"), "big.txt", user.ID))
	assert.True(t, IsValidationError(err))

	_, err = svc.Upload(ctx, uploadInput(nil, "empty.txt", user.ID))
	assert.True(t, IsValidationError(err))

	// Rejected uploads never reach the database.
	var count int64
	require.NoError(t, db.Model(&models.Attachment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	cfg.AllowedTypes = []string{"image/*"}
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)

	_, err := svc.Upload(context.Background(), uploadInput([]byte("plain text body"), "note.txt", user.ID))
	assert.True(t, IsValidationError(err))
}

func TestUploadWildcardAllowsAnyImage(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttachmentService(db, testAttachmentConfig(t))
	user := createTestUser(t, db, "alice", 0)

	att, err := svc.Upload(context.Background(), uploadInput(pngBytes(t, 8, 8), "tiny.png", user.ID))
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.MimeType)
}

func TestUploadDeduplicatesByHash(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()
	data := pngBytes(t, 32, 32)

	first, err := svc.Upload(ctx, uploadInput(data, "one.png", user.ID))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, uploadInput(data, "two.png", user.ID))
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.FilePath, second.FilePath, "identical content shares stored bytes")
	assert.Equal(t, "two.png", second.OriginalName, "metadata stays per-upload")
	assert.Equal(t, models.AttachmentStatusCompleted, second.Status)

	// Two records, one physical file.
	var count int64
	require.NoError(t, db.Model(&models.Attachment{}).Where("hash = ?", first.Hash).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDeleteKeepsFileSharedByHash(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()
	data := pngBytes(t, 32, 32)

	first, err := svc.Upload(ctx, uploadInput(data, "one.png", user.ID))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, uploadInput(data, "two.png", user.ID))
	require.NoError(t, err)

	abs := filepath.Join(cfg.BaseDir, first.FilePath)

	require.NoError(t, svc.Delete(ctx, second.ID, user.ID, false))
	if _, err := os.Stat(abs); err != nil {
		t.Fatalf("file must survive while a live record shares the hash: %v", err)
	}

	require.NoError(t, svc.Delete(ctx, first.ID, user.ID, false))
	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Fatalf("file must be removed with its last record, stat err = %v", err)
	}
}

func TestDeleteRequiresOwnershipOrAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttachmentService(db, testAttachmentConfig(t))
	owner := createTestUser(t, db, "alice", 0)
	stranger := createTestUser(t, db, "bob", 0)
	ctx := context.Background()

	att, err := svc.Upload(ctx, uploadInput(pngBytes(t, 16, 16), "mine.png", owner.ID))
	require.NoError(t, err)

	err = svc.Delete(ctx, att.ID, stranger.ID, false)
	assert.True(t, IsAuthorizationError(err))

	// An admin may delete anyone's attachment.
	require.NoError(t, svc.Delete(ctx, att.ID, stranger.ID, true))
}

func TestDownloadEnforcesVisibility(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	svc := NewAttachmentService(db, cfg)
	owner := createTestUser(t, db, "alice", 0)
	stranger := createTestUser(t, db, "bob", 0)
	ctx := context.Background()

	in := uploadInput(pngBytes(t, 16, 16), "secret.png", owner.ID)
	in.Options.IsPrivate = true
	att, err := svc.Upload(ctx, in)
	require.NoError(t, err)

	_, _, err = svc.Download(ctx, att.ID, stranger.ID, false)
	assert.True(t, IsAuthorizationError(err))

	got, path, err := svc.Download(ctx, att.ID, owner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.BaseDir, att.FilePath), path)
	assert.Equal(t, att.ID, got.ID)

	_, _, err = svc.Download(ctx, att.ID, stranger.ID, true)
	require.NoError(t, err, "admins bypass the private flag")

	var fresh models.Attachment
	require.NoError(t, db.First(&fresh, att.ID).Error)
	assert.Equal(t, int64(2), fresh.DownloadCount)
}

func TestUploadPersistsPrivateFlag(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttachmentService(db, testAttachmentConfig(t))
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	in := uploadInput(pngBytes(t, 8, 8), "secret.png", user.ID)
	in.Options.IsPrivate = true
	att, err := svc.Upload(ctx, in)
	require.NoError(t, err)
	require.False(t, att.IsPublic)

	// The false value must survive the round trip to the database; a column
	// default would silently overwrite it on insert.
	var fresh models.Attachment
	require.NoError(t, db.First(&fresh, att.ID).Error)
	assert.False(t, fresh.IsPublic)

	pub, err := svc.Upload(ctx, uploadInput(pngBytes(t, 9, 9), "open.png", user.ID))
	require.NoError(t, err)
	// Reset the dest struct: GORM treats a populated primary key as an extra
	// query condition, which would make this lookup match nothing.
	fresh = models.Attachment{}
	require.NoError(t, db.First(&fresh, pub.ID).Error)
	assert.True(t, fresh.IsPublic)
}

func TestUploadForceModeTranscodesToWebP(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)

	src := pngBytes(t, 64, 48)
	in := uploadInput(src, "photo.png", user.ID)
	in.Options.WebPMode = WebPModeForce

	att, err := svc.Upload(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentStatusCompleted, att.Status)
	assert.Equal(t, "webp", att.Extension)
	assert.Equal(t, "image/webp", att.MimeType)
	assert.True(t, strings.HasSuffix(att.StoredName, ".webp"))
	assert.Equal(t, 64, att.Width)
	assert.Equal(t, 48, att.Height)

	// The stored bytes are the re-encoded image, and FileSize matches them.
	stored, err := os.ReadFile(filepath.Join(cfg.BaseDir, att.FilePath))
	require.NoError(t, err)
	assert.Equal(t, att.FileSize, int64(len(stored)))
	_, format, err := utils.DecodeImage(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
}

func TestUploadDiscardsRowWhenStorageFails(t *testing.T) {
	db := newTestDB(t)
	cfg := testAttachmentConfig(t)
	// A regular file where the storage root should be makes MkdirAll fail.
	cfg.BaseDir = filepath.Join(t.TempDir(), "storage")
	require.NoError(t, os.WriteFile(cfg.BaseDir, []byte("x"), 0o644))
	svc := NewAttachmentService(db, cfg)
	user := createTestUser(t, db, "alice", 0)

	_, err := svc.Upload(context.Background(), uploadInput(pngBytes(t, 8, 8), "a.png", user.ID))
	require.Error(t, err)

	// The metadata row written before the disk failure is cleaned up.
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Attachment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListByUserSkipsDeleted(t *testing.T) {
	db := newTestDB(t)
	svc := NewAttachmentService(db, testAttachmentConfig(t))
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	a, err := svc.Upload(ctx, uploadInput(pngBytes(t, 10, 10), "a.png", user.ID))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, uploadInput(pngBytes(t, 20, 20), "b.png", user.ID))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID, user.ID, false))

	items, total, err := svc.ListByUser(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "b.png", items[0].OriginalName)
}

func TestShouldConvertToWebP(t *testing.T) {
	svc := NewAttachmentService(nil, AttachmentConfig{WebPMode: WebPModeAuto, WebPThreshold: 1000})

	assert.False(t, svc.shouldConvertToWebP(UploadOptions{}, "image/webp", 5000), "already webp")
	assert.False(t, svc.shouldConvertToWebP(UploadOptions{}, "image/gif", 5000), "animated gif stays")
	assert.False(t, svc.shouldConvertToWebP(UploadOptions{}, "image/png", 999), "below auto threshold")
	assert.True(t, svc.shouldConvertToWebP(UploadOptions{}, "image/png", 1000), "at auto threshold")
	assert.True(t, svc.shouldConvertToWebP(UploadOptions{WebPMode: WebPModeForce}, "image/png", 1))
	assert.False(t, svc.shouldConvertToWebP(UploadOptions{WebPMode: WebPModePreserve}, "image/png", 1<<30))
	assert.False(t, svc.shouldConvertToWebP(UploadOptions{WebPMode: WebPModeOptional}, "image/png", 1<<30))
	assert.True(t, svc.shouldConvertToWebP(UploadOptions{WebPMode: WebPModeOptional, ConvertToWebP: true}, "image/png", 1))
}

func TestSanitizeBaseName(t *testing.T) {
	cases := map[string]string{
		"photo.png":           "photo",
		"../../../etc/passwd": "passwd",
		"내 사진 (1).jpg":        "내사진1",
		"réport final.pdf":    "rportfinal",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeBaseName(in), "input %q", in)
	}
	// Unsalvageable names fall back to a generated one.
	assert.True(t, strings.HasPrefix(sanitizeBaseName("....."), "file_"))
	// Long names are capped at 64 runes.
	long := sanitizeBaseName(strings.Repeat("가", 100) + ".png")
	assert.Len(t, []rune(long), 64)
}
