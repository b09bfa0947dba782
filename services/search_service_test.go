package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/models"
)

func seedSearchPosts(t *testing.T, db *gorm.DB) (*models.Board, *models.User) {
	t.Helper()
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	createTestPost(t, db, board.ID, author.ID, "golang tutorial", "learn go step by step")
	createTestPost(t, db, board.ID, author.ID, "golang concurrency", "channels and goroutines")
	createTestPost(t, db, board.ID, author.ID, "python tutorial", "learn python basics")
	hidden := createTestPost(t, db, board.ID, author.ID, "golang secrets", "hidden away")
	require.NoError(t, db.Model(hidden).Update("status", models.PostStatusHidden).Error)
	return board, author
}

func searchLogCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.SearchLog{}).Count(&n).Error)
	return n
}

func TestSearchPostsMatchesTitleAndContent(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	ctx := context.Background()

	posts, total, err := svc.SearchPosts(ctx, "golang", SearchOptions{}, SearchRequester{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "hidden posts are excluded")
	assert.Len(t, posts, 2)

	// Content-only match.
	_, total, err = svc.SearchPosts(ctx, "goroutines", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSearchPostsKeywordBounds(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	ctx := context.Background()

	for _, keyword := range []string{"", "a", "  a  ", strings.Repeat("한", 101)} {
		posts, total, err := svc.SearchPosts(ctx, keyword, SearchOptions{}, SearchRequester{})
		require.NoError(t, err, "keyword %q", keyword)
		assert.Zero(t, total)
		assert.Empty(t, posts)
	}
	// Out-of-bounds keywords are never logged.
	assert.Zero(t, searchLogCount(t, db))

	// A 100-rune keyword is still a real search and gets logged.
	_, _, err := svc.SearchPosts(ctx, strings.Repeat("한", 100), SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), searchLogCount(t, db))
}

func TestSearchPostsCombinesTermsWithAnd(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	ctx := context.Background()

	// "golang" alone matches two posts, "golang channels" only one: every
	// term must match, each against title or content.
	_, total, err := svc.SearchPosts(ctx, "golang channels", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = svc.SearchPosts(ctx, "golang python", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSearchPostsFieldSelection(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	ctx := context.Background()

	_, total, err := svc.SearchPosts(ctx, "goroutines", SearchOptions{Fields: []string{"title"}}, SearchRequester{})
	require.NoError(t, err)
	assert.Zero(t, total, "content-only term must not match in title mode")

	_, total, err = svc.SearchPosts(ctx, "goroutines", SearchOptions{Fields: []string{"content"}}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSearchPostsSortOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	ctx := context.Background()

	first := createTestPost(t, db, board.ID, author.ID, "golang old", "body")
	second := createTestPost(t, db, board.ID, author.ID, "golang new", "body")
	// Push the posts a day apart so the order is unambiguous.
	require.NoError(t, db.Model(first).UpdateColumn("created_at", time.Now().Add(-24*time.Hour)).Error)

	posts, _, err := svc.SearchPosts(ctx, "golang", SearchOptions{Sort: "latest"}, SearchRequester{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)

	posts, _, err = svc.SearchPosts(ctx, "golang", SearchOptions{Sort: "oldest"}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, posts[0].ID)

	// Relevance deliberately behaves like latest.
	posts, _, err = svc.SearchPosts(ctx, "golang", SearchOptions{Sort: "relevance"}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, second.ID, posts[0].ID)
}

func TestSearchPostsWritesSearchLog(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	user := createTestUser(t, db, "searcher", 0)
	ctx := context.Background()

	_, _, err := svc.SearchPosts(ctx, "golang", SearchOptions{}, SearchRequester{
		UserID:    &user.ID,
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)

	var log models.SearchLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, "golang", log.Keyword)
	assert.Equal(t, int64(2), log.ResultCount)
	require.NotNil(t, log.UserID)
	assert.Equal(t, user.ID, *log.UserID)
	assert.Equal(t, "10.0.0.1", log.IP)

	// Zero-hit searches are logged too.
	_, _, err = svc.SearchPosts(ctx, "없는키워드", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), searchLogCount(t, db))
}

func TestSearchPostsWithModeOr(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	ctx := context.Background()

	_, total, err := svc.SearchPostsWithMode(ctx, "concurrency|python", "or", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = svc.SearchPostsWithMode(ctx, "golang|tutorial", "and", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSearchPostsWithHighlight(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	createTestPost(t, db, board.ID, author.ID, "Golang Tips", "golang tricks inside")
	ctx := context.Background()

	posts, _, err := svc.SearchPostsWithHighlight(ctx, "golang", "em", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	// Case-insensitive, original casing preserved.
	assert.Equal(t, "<em>Golang</em> Tips", posts[0].Title)
	assert.Contains(t, posts[0].Content, "<em>golang</em> tricks")
}

func TestGetPopularKeywords(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	seedSearchPosts(t, db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := svc.SearchPosts(ctx, "golang", SearchOptions{}, SearchRequester{})
		require.NoError(t, err)
	}
	_, _, err := svc.SearchPosts(ctx, "python", SearchOptions{}, SearchRequester{})
	require.NoError(t, err)

	top, err := svc.GetPopularKeywords(ctx, 10, 7)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "golang", top[0].Keyword)
	assert.Equal(t, int64(3), top[0].Count)
	assert.Equal(t, "python", top[1].Keyword)
}

func TestGetSuggestions(t *testing.T) {
	db := newTestDB(t)
	svc := NewSearchService(db)
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	createTestPost(t, db, board.ID, author.ID, "golang tutorial part one", "body")
	createTestPost(t, db, board.ID, author.ID, "golang internals", "body")
	ctx := context.Background()

	got, err := svc.GetSuggestions(ctx, "gol", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, got, "duplicates collapse to one suggestion")

	got, err = svc.GetSuggestions(ctx, "g", 10)
	require.NoError(t, err)
	assert.Empty(t, got, "single-rune partials return nothing")
}
