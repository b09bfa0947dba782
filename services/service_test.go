package services

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/utils"
)

func TestMain(m *testing.M) {
	utils.Logger = zap.NewNop()
	utils.Sugar = utils.Logger.Sugar()
	os.Exit(m.Run())
}

// newTestDB opens a private in-memory sqlite database with the full schema.
// MaxOpenConns is pinned to 1 so every session sees the same :memory: store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Board{},
		&models.Post{},
		&models.Comment{},
		&models.Attachment{},
		&models.PointHistory{},
		&models.PostLike{},
		&models.Scrap{},
		&models.SearchLog{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, points int) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Points: points}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestBoard(t *testing.T, db *gorm.DB, slug string) *models.Board {
	t.Helper()
	b := &models.Board{Name: slug, Slug: slug, IsActive: true}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func createTestPost(t *testing.T, db *gorm.DB, boardID, userID uint, title, content string) *models.Post {
	t.Helper()
	p := &models.Post{
		BoardID: boardID,
		UserID:  userID,
		Title:   title,
		Content: content,
		Status:  models.PostStatusPublished,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}
