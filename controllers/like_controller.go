package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/config"
	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

// LikeController handles reactions and bookmarks on posts and comments.
type LikeController struct {
	db     *gorm.DB
	likes  *services.LikeService
	points *services.PointService
}

// NewLikeController creates a new LikeController instance.
func NewLikeController(db *gorm.DB, likes *services.LikeService, points *services.PointService) *LikeController {
	return &LikeController{db: db, likes: likes, points: points}
}

func likeTarget(ctx *gin.Context) (string, uint, bool) {
	targetType := ctx.Param("type")
	if targetType != models.LikeableTypePost && targetType != models.LikeableTypeComment {
		utils.Error(ctx, http.StatusBadRequest, 40090, "invalid target type")
		return "", 0, false
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40091, "invalid target id")
		return "", 0, false
	}
	return targetType, id, true
}

// ToggleLike flips the caller's like on a target. A fresh like on a post
// rewards the author, within the author's daily cap.
func (l *LikeController) ToggleLike(ctx *gin.Context) {
	l.toggle(ctx, true)
}

// ToggleDislike flips the caller's dislike on a target.
func (l *LikeController) ToggleDislike(ctx *gin.Context) {
	l.toggle(ctx, false)
}

func (l *LikeController) toggle(ctx *gin.Context, isLike bool) {
	targetType, targetID, ok := likeTarget(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}

	var row *models.PostLike
	var err error
	if isLike {
		row, err = l.likes.ToggleLike(ctx.Request.Context(), targetType, targetID, userID, ctx.ClientIP())
	} else {
		row, err = l.likes.ToggleDislike(ctx.Request.Context(), targetType, targetID, userID, ctx.ClientIP())
	}
	if err != nil {
		respondServiceError(ctx, err, 50090, "failed to toggle reaction")
		return
	}

	if isLike && row != nil && targetType == models.LikeableTypePost {
		l.rewardPostAuthor(ctx, targetID, userID)
	}

	if targetType == models.LikeableTypePost {
		utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(targetID)))
	}

	state := "none"
	if row != nil {
		if row.IsLike {
			state = "liked"
		} else {
			state = "disliked"
		}
	}
	utils.Success(ctx, gin.H{"state": state})
}

// rewardPostAuthor credits the received-like reward to the post author,
// skipping self-likes and capped authors. Failures only log.
func (l *LikeController) rewardPostAuthor(ctx *gin.Context, postID, likerID uint) {
	var post models.Post
	if err := l.db.WithContext(ctx.Request.Context()).First(&post, postID).Error; err != nil {
		return
	}
	if post.UserID == likerID {
		return
	}
	amount := config.Get().PointPostLike
	if ok, err := l.points.CanEarn(ctx.Request.Context(), post.UserID, amount); err != nil || !ok {
		return
	}
	if _, err := l.points.AwardLikePoints(ctx.Request.Context(), post.UserID, postID); err != nil {
		utils.Sugar.Warnf("like reward failed for post %d: %v", postID, err)
	}
}

// Stats returns like/dislike aggregates for a target.
func (l *LikeController) Stats(ctx *gin.Context) {
	targetType, targetID, ok := likeTarget(ctx)
	if !ok {
		return
	}
	stats, err := l.likes.GetLikeStats(ctx.Request.Context(), targetType, targetID)
	if err != nil {
		respondServiceError(ctx, err, 50091, "failed to load like stats")
		return
	}
	utils.Success(ctx, stats)
}

// StatsByPeriod returns daily reaction counts over a trailing window.
func (l *LikeController) StatsByPeriod(ctx *gin.Context) {
	targetType, targetID, ok := likeTarget(ctx)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	series, err := l.likes.GetLikeStatsByPeriod(ctx.Request.Context(), targetType, targetID, days)
	if err != nil {
		respondServiceError(ctx, err, 50092, "failed to load like stats")
		return
	}
	utils.Success(ctx, gin.H{"items": series})
}

// Status returns the caller's reaction and bookmark flags for a target.
func (l *LikeController) Status(ctx *gin.Context) {
	targetType, targetID, ok := likeTarget(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}
	status, err := l.likes.GetUserStatus(ctx.Request.Context(), targetType, targetID, userID)
	if err != nil {
		respondServiceError(ctx, err, 50093, "failed to load reaction status")
		return
	}
	utils.Success(ctx, status)
}

// Popular returns the most liked posts inside a trailing window.
func (l *LikeController) Popular(ctx *gin.Context) {
	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "7"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	posts, err := l.likes.GetPopularPosts(ctx.Request.Context(), days, limit)
	if err != nil {
		respondServiceError(ctx, err, 50094, "failed to load popular posts")
		return
	}
	utils.Success(ctx, gin.H{"items": posts})
}

// ToggleScrap flips the caller's bookmark on a target.
func (l *LikeController) ToggleScrap(ctx *gin.Context) {
	targetType, targetID, ok := likeTarget(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}

	var req struct {
		Memo     string `json:"memo"`
		Category string `json:"category"`
	}
	_ = ctx.ShouldBindJSON(&req)

	row, err := l.likes.ToggleScrap(ctx.Request.Context(), targetType, targetID, userID,
		utils.SanitizeText(req.Memo), utils.SanitizeText(req.Category))
	if err != nil {
		respondServiceError(ctx, err, 50095, "failed to toggle scrap")
		return
	}
	utils.Success(ctx, gin.H{"scrapped": row != nil, "scrap": row})
}

// ListScraps returns the caller's bookmarks.
func (l *LikeController) ListScraps(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	items, total, err := l.likes.ListScraps(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondServiceError(ctx, err, 50096, "failed to list scraps")
		return
	}
	utils.Success(ctx, utils.Paginated(items, page, pageSize, total))
}
