package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/models"
)

func TestToggleLikeLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	user := createTestUser(t, db, "alice", 0)
	author := createTestUser(t, db, "bob", 0)
	board := createTestBoard(t, db, "free")
	post := createTestPost(t, db, board.ID, author.ID, "제목", "본문")
	ctx := context.Background()

	// Absent -> liked.
	row, err := svc.ToggleLike(ctx, models.LikeableTypePost, post.ID, user.ID, "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.IsLike)
	assertPostCounters(t, db, post.ID, 1, 0)

	// Liked -> disliked (flip in place, still one row).
	row, err = svc.ToggleDislike(ctx, models.LikeableTypePost, post.ID, user.ID, "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.IsLike)
	assertPostCounters(t, db, post.ID, 0, 1)

	var count int64
	require.NoError(t, db.Model(&models.PostLike{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Disliked -> gone.
	row, err = svc.ToggleDislike(ctx, models.LikeableTypePost, post.ID, user.ID, "127.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, row)
	assertPostCounters(t, db, post.ID, 0, 0)

	require.NoError(t, db.Model(&models.PostLike{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestToggleLikeOffAndOn(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	user := createTestUser(t, db, "alice", 0)
	board := createTestBoard(t, db, "free")
	post := createTestPost(t, db, board.ID, user.ID, "제목", "본문")
	ctx := context.Background()

	_, err := svc.ToggleLike(ctx, models.LikeableTypePost, post.ID, user.ID, "")
	require.NoError(t, err)

	// Same polarity again toggles off.
	row, err := svc.ToggleLike(ctx, models.LikeableTypePost, post.ID, user.ID, "")
	require.NoError(t, err)
	assert.Nil(t, row)
	assertPostCounters(t, db, post.ID, 0, 0)

	row, err = svc.ToggleLike(ctx, models.LikeableTypePost, post.ID, user.ID, "")
	require.NoError(t, err)
	require.NotNil(t, row)
	assertPostCounters(t, db, post.ID, 1, 0)
}

func assertPostCounters(t *testing.T, db *gorm.DB, postID uint, likes, dislikes int64) {
	t.Helper()
	var post models.Post
	require.NoError(t, db.First(&post, postID).Error)
	assert.Equal(t, likes, post.LikeCount, "like_count")
	assert.Equal(t, dislikes, post.DislikeCount, "dislike_count")
}

func TestGetLikeStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	post := createTestPost(t, db, board.ID, author.ID, "제목", "본문")
	ctx := context.Background()

	// No reactions yet: everything zero, ratio included.
	stats, err := svc.GetLikeStats(ctx, models.LikeableTypePost, post.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Ratio)

	for i := 0; i < 3; i++ {
		u := createTestUser(t, db, "liker", 0)
		_, err := svc.ToggleLike(ctx, models.LikeableTypePost, post.ID, u.ID, "")
		require.NoError(t, err)
	}
	hater := createTestUser(t, db, "hater", 0)
	_, err = svc.ToggleDislike(ctx, models.LikeableTypePost, post.ID, hater.ID, "")
	require.NoError(t, err)

	stats, err = svc.GetLikeStats(ctx, models.LikeableTypePost, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Likes)
	assert.Equal(t, int64(1), stats.Dislikes)
	assert.Equal(t, int64(4), stats.Total)
	assert.InDelta(t, 0.75, stats.Ratio, 1e-9)
}

func TestGetUserStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	board := createTestBoard(t, db, "free")
	user := createTestUser(t, db, "alice", 0)
	post := createTestPost(t, db, board.ID, user.ID, "제목", "본문")
	ctx := context.Background()

	status, err := svc.GetUserStatus(ctx, models.LikeableTypePost, post.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, status.Liked)
	assert.False(t, status.Disliked)
	assert.False(t, status.Scrapped)

	_, err = svc.ToggleDislike(ctx, models.LikeableTypePost, post.ID, user.ID, "")
	require.NoError(t, err)
	_, err = svc.ToggleScrap(ctx, models.LikeableTypePost, post.ID, user.ID, "메모", "읽을거리")
	require.NoError(t, err)

	status, err = svc.GetUserStatus(ctx, models.LikeableTypePost, post.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, status.Liked)
	assert.True(t, status.Disliked)
	assert.True(t, status.Scrapped)
}

func TestToggleScrap(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	board := createTestBoard(t, db, "free")
	user := createTestUser(t, db, "alice", 0)
	post := createTestPost(t, db, board.ID, user.ID, "제목", "본문")
	ctx := context.Background()

	row, err := svc.ToggleScrap(ctx, models.LikeableTypePost, post.ID, user.ID, "나중에 읽기", "tech")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "나중에 읽기", row.Memo)
	assert.Equal(t, "tech", row.Category)

	// Second toggle removes the bookmark.
	row, err = svc.ToggleScrap(ctx, models.LikeableTypePost, post.ID, user.ID, "", "")
	require.NoError(t, err)
	assert.Nil(t, row)

	items, total, err := svc.ListScraps(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestListScrapsPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	board := createTestBoard(t, db, "free")
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		post := createTestPost(t, db, board.ID, user.ID, "제목", "본문")
		_, err := svc.ToggleScrap(ctx, models.LikeableTypePost, post.ID, user.ID, "", "")
		require.NoError(t, err)
	}

	items, total, err := svc.ListScraps(ctx, user.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 3)

	items, _, err = svc.ListScraps(ctx, user.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestGetPopularPosts(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	ctx := context.Background()

	cold := createTestPost(t, db, board.ID, author.ID, "찬밥", "본문")
	warm := createTestPost(t, db, board.ID, author.ID, "미지근", "본문")
	hot := createTestPost(t, db, board.ID, author.ID, "인기글", "본문")

	likers := make([]*models.User, 3)
	for i := range likers {
		likers[i] = createTestUser(t, db, "liker", 0)
	}
	for _, u := range likers {
		_, err := svc.ToggleLike(ctx, models.LikeableTypePost, hot.ID, u.ID, "")
		require.NoError(t, err)
	}
	_, err := svc.ToggleLike(ctx, models.LikeableTypePost, warm.ID, likers[0].ID, "")
	require.NoError(t, err)
	// A dislike must not lift the cold post into the ranking.
	_, err = svc.ToggleDislike(ctx, models.LikeableTypePost, cold.ID, likers[0].ID, "")
	require.NoError(t, err)

	posts, err := svc.GetPopularPosts(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, hot.ID, posts[0].ID)
	assert.Equal(t, warm.ID, posts[1].ID)
}

func TestGetLikeStatsByPeriod(t *testing.T) {
	db := newTestDB(t)
	svc := NewLikeService(db)
	board := createTestBoard(t, db, "free")
	author := createTestUser(t, db, "author", 0)
	post := createTestPost(t, db, board.ID, author.ID, "제목", "본문")
	ctx := context.Background()

	u1 := createTestUser(t, db, "u1", 0)
	u2 := createTestUser(t, db, "u2", 0)
	_, err := svc.ToggleLike(ctx, models.LikeableTypePost, post.ID, u1.ID, "")
	require.NoError(t, err)
	_, err = svc.ToggleDislike(ctx, models.LikeableTypePost, post.ID, u2.ID, "")
	require.NoError(t, err)

	days, err := svc.GetLikeStatsByPeriod(ctx, models.LikeableTypePost, post.ID, 30)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, int64(1), days[0].Likes)
	assert.Equal(t, int64(1), days[0].Dislikes)
}
