package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/moadong/moabbs/models"
)

// LikeService toggles reactions and bookmarks on polymorphic targets and
// serves their aggregates. Each (user, target) pair is a three-state machine:
// no-reaction, liked, disliked; like and dislike are mutually exclusive.
type LikeService struct {
	db *gorm.DB
}

// NewLikeService creates a new LikeService.
func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{db: db}
}

// ToggleLike flips the like state: an active like is removed (returns nil),
// an active dislike becomes a like, otherwise a like is created.
func (s *LikeService) ToggleLike(ctx context.Context, targetType string, targetID, userID uint, ip string) (*models.PostLike, error) {
	return s.toggle(ctx, targetType, targetID, userID, ip, true)
}

// ToggleDislike is ToggleLike with inverted polarity.
func (s *LikeService) ToggleDislike(ctx context.Context, targetType string, targetID, userID uint, ip string) (*models.PostLike, error) {
	return s.toggle(ctx, targetType, targetID, userID, ip, false)
}

func (s *LikeService) toggle(ctx context.Context, targetType string, targetID, userID uint, ip string, isLike bool) (*models.PostLike, error) {
	var result *models.PostLike
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PostLike
		err := tx.Where("likeable_type = ? AND likeable_id = ? AND user_id = ?", targetType, targetID, userID).
			First(&existing).Error
		switch {
		case err == nil && existing.IsLike == isLike:
			// Same polarity requested again: toggle off.
			result = nil
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			likeDelta, dislikeDelta := -1, 0
			if !isLike {
				likeDelta, dislikeDelta = 0, -1
			}
			return s.bumpCounters(tx, targetType, targetID, likeDelta, dislikeDelta)
		case err == nil:
			// Opposite polarity: flip in place.
			existing.IsLike = isLike
			result = &existing
			if err := tx.Model(&existing).Update("is_like", isLike).Error; err != nil {
				return err
			}
			likeDelta, dislikeDelta := 1, -1
			if !isLike {
				likeDelta, dislikeDelta = -1, 1
			}
			return s.bumpCounters(tx, targetType, targetID, likeDelta, dislikeDelta)
		case err == gorm.ErrRecordNotFound:
			row := models.PostLike{
				LikeableType: targetType,
				LikeableID:   targetID,
				UserID:       userID,
				IsLike:       isLike,
				IP:           ip,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result = &row
			likeDelta, dislikeDelta := 1, 0
			if !isLike {
				likeDelta, dislikeDelta = 0, 1
			}
			return s.bumpCounters(tx, targetType, targetID, likeDelta, dislikeDelta)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// bumpCounters keeps the denormalized post counters in step with the
// post_likes rows. Comment reactions have no cached counter.
func (s *LikeService) bumpCounters(tx *gorm.DB, targetType string, targetID uint, likeDelta, dislikeDelta int) error {
	if targetType != models.LikeableTypePost {
		return nil
	}
	updates := map[string]interface{}{}
	if likeDelta != 0 {
		updates["like_count"] = gorm.Expr("like_count + ?", likeDelta)
	}
	if dislikeDelta != 0 {
		updates["dislike_count"] = gorm.Expr("dislike_count + ?", dislikeDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Post{}).Where("id = ?", targetID).Updates(updates).Error
}

// ToggleScrap bookmarks the target, or removes an existing bookmark
// (returns nil on toggle-off).
func (s *LikeService) ToggleScrap(ctx context.Context, targetType string, targetID, userID uint, memo, category string) (*models.Scrap, error) {
	var result *models.Scrap
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Scrap
		err := tx.Where("scrapable_type = ? AND scrapable_id = ? AND user_id = ?", targetType, targetID, userID).
			First(&existing).Error
		switch {
		case err == nil:
			result = nil
			return tx.Delete(&existing).Error
		case err == gorm.ErrRecordNotFound:
			row := models.Scrap{
				ScrapableType: targetType,
				ScrapableID:   targetID,
				UserID:        userID,
				Memo:          memo,
				Category:      category,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result = &row
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LikeStats aggregates reactions for one target. Ratio is 0 when there are
// no reactions at all.
type LikeStats struct {
	Likes    int64   `json:"likes"`
	Dislikes int64   `json:"dislikes"`
	Total    int64   `json:"total"`
	Ratio    float64 `json:"ratio"`
}

// GetLikeStats returns like/dislike counts and the like ratio for a target.
func (s *LikeService) GetLikeStats(ctx context.Context, targetType string, targetID uint) (*LikeStats, error) {
	stats := &LikeStats{}
	base := s.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("likeable_type = ? AND likeable_id = ?", targetType, targetID)
	if err := base.Session(&gorm.Session{}).Where("is_like = ?", true).Count(&stats.Likes).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_like = ?", false).Count(&stats.Dislikes).Error; err != nil {
		return nil, err
	}
	stats.Total = stats.Likes + stats.Dislikes
	if stats.Total > 0 {
		stats.Ratio = float64(stats.Likes) / float64(stats.Total)
	}
	return stats, nil
}

// UserStatus reports the tri-state reaction and scrap flags for UI rendering.
type UserStatus struct {
	Liked    bool `json:"liked"`
	Disliked bool `json:"disliked"`
	Scrapped bool `json:"scrapped"`
}

// GetUserStatus returns the user's like/dislike/scrap flags for a target.
func (s *LikeService) GetUserStatus(ctx context.Context, targetType string, targetID, userID uint) (*UserStatus, error) {
	status := &UserStatus{}

	var like models.PostLike
	err := s.db.WithContext(ctx).
		Where("likeable_type = ? AND likeable_id = ? AND user_id = ?", targetType, targetID, userID).
		First(&like).Error
	switch {
	case err == nil:
		status.Liked = like.IsLike
		status.Disliked = !like.IsLike
	case err != gorm.ErrRecordNotFound:
		return nil, err
	}

	var scraps int64
	if err := s.db.WithContext(ctx).Model(&models.Scrap{}).
		Where("scrapable_type = ? AND scrapable_id = ? AND user_id = ?", targetType, targetID, userID).
		Count(&scraps).Error; err != nil {
		return nil, err
	}
	status.Scrapped = scraps > 0
	return status, nil
}

// GetPopularPosts returns the posts with the most likes inside the trailing
// window, most liked first.
func (s *LikeService) GetPopularPosts(ctx context.Context, days, limit int) ([]models.Post, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	since := time.Now().AddDate(0, 0, -days)

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("likeable_type = ? AND is_like = ? AND created_at >= ?", models.LikeableTypePost, true, since).
		Group("likeable_id").
		Order("COUNT(*) DESC").
		Limit(limit).
		Pluck("likeable_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Post{}, nil
	}

	var posts []models.Post
	if err := s.db.WithContext(ctx).Preload("User").Find(&posts, ids).Error; err != nil {
		return nil, err
	}
	// Restore popularity order lost by the IN query.
	byID := make(map[uint]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// DailyLikeCount is one day's reaction totals for a target.
type DailyLikeCount struct {
	Day      string `json:"day"`
	Likes    int64  `json:"likes"`
	Dislikes int64  `json:"dislikes"`
}

// GetLikeStatsByPeriod groups a target's reactions by day over the trailing
// window.
func (s *LikeService) GetLikeStatsByPeriod(ctx context.Context, targetType string, targetID uint, days int) ([]DailyLikeCount, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var rows []struct {
		Day    string
		IsLike bool
		Cnt    int64
	}
	if err := s.db.WithContext(ctx).Model(&models.PostLike{}).
		Select("DATE(created_at) AS day, is_like, COUNT(*) AS cnt").
		Where("likeable_type = ? AND likeable_id = ? AND created_at >= ?", targetType, targetID, since).
		Group("DATE(created_at), is_like").
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	byDay := map[string]*DailyLikeCount{}
	var order []string
	for _, r := range rows {
		d, ok := byDay[r.Day]
		if !ok {
			d = &DailyLikeCount{Day: r.Day}
			byDay[r.Day] = d
			order = append(order, r.Day)
		}
		if r.IsLike {
			d.Likes = r.Cnt
		} else {
			d.Dislikes = r.Cnt
		}
	}
	out := make([]DailyLikeCount, 0, len(order))
	for _, day := range order {
		out = append(out, *byDay[day])
	}
	return out, nil
}

// ListScraps returns a page of the user's bookmarks, newest first.
func (s *LikeService) ListScraps(ctx context.Context, userID uint, page, pageSize int) ([]models.Scrap, int64, error) {
	var items []models.Scrap
	var total int64
	q := s.db.WithContext(ctx).Model(&models.Scrap{}).Where("user_id = ?", userID)
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
