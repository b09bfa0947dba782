package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

// AdminController bundles the moderation and operations endpoints. Every
// route using it sits behind the admin route group.
type AdminController struct {
	db     *gorm.DB
	points *services.PointService
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB, points *services.PointService) *AdminController {
	return &AdminController{db: db, points: points}
}

// ListUsers returns paginated users including register IP.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var users []models.User
	var total int64
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to count users")
		return
	}
	if err := a.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to retrieve users")
		return
	}
	utils.Success(ctx, utils.Paginated(users, page, pageSize, total))
}

// GetSettings returns all dynamic settings as a key/value map.
func (a *AdminController) GetSettings(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes("cache:settings"); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var rows []models.Setting
	if err := a.db.Order("id ASC").Find(&rows).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50110, "failed to load settings")
		return
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}

	payload := gin.H{"settings": settings}
	wrapper := struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:settings", wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// PutSetting upserts one dynamic setting.
func (a *AdminController) PutSetting(ctx *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40085, "invalid request payload")
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" || len(key) > 128 {
		utils.Error(ctx, http.StatusBadRequest, 40086, "invalid setting key")
		return
	}

	setting := models.Setting{Key: key, Value: req.Value}
	if err := a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": req.Value, "updated_at": time.Now()}),
	}).Create(&setting).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50111, "failed to save setting")
		return
	}

	utils.CacheDelete("cache:settings")
	utils.CacheDelete("cache:setting:" + key)
	utils.Success(ctx, gin.H{"key": key, "value": req.Value})
}

// DeleteSetting removes one dynamic setting.
func (a *AdminController) DeleteSetting(ctx *gin.Context) {
	key := strings.TrimSpace(ctx.Param("key"))
	if key == "" {
		utils.Error(ctx, http.StatusBadRequest, 40086, "invalid setting key")
		return
	}
	if err := a.db.Where("`key` = ?", key).Delete(&models.Setting{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50112, "failed to delete setting")
		return
	}
	utils.CacheDelete("cache:settings")
	utils.CacheDelete("cache:setting:" + key)
	utils.Success(ctx, gin.H{"message": "setting deleted"})
}

// BlockIP puts an address on the blocklist, optionally with a TTL in hours.
func (a *AdminController) BlockIP(ctx *gin.Context) {
	var req struct {
		IP     string `json:"ip" binding:"required"`
		Reason string `json:"reason"`
		Hours  int    `json:"hours"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40087, "invalid request payload")
		return
	}

	var ttl time.Duration
	if req.Hours > 0 {
		ttl = time.Duration(req.Hours) * time.Hour
	}
	if err := utils.BlockIP(strings.TrimSpace(req.IP), strings.TrimSpace(req.Reason), ttl); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50113, "failed to block ip")
		return
	}
	utils.Success(ctx, gin.H{"message": "ip blocked"})
}

// UnblockIP removes an address from the blocklist.
func (a *AdminController) UnblockIP(ctx *gin.Context) {
	ip := strings.TrimSpace(ctx.Param("ip"))
	if ip == "" {
		utils.Error(ctx, http.StatusBadRequest, 40088, "missing ip")
		return
	}
	if err := utils.UnblockIP(ip); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50114, "failed to unblock ip")
		return
	}
	utils.Success(ctx, gin.H{"message": "ip unblocked"})
}

// ListBlockedIPs returns the current blocklist.
func (a *AdminController) ListBlockedIPs(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"items": utils.ListBlockedIPs()})
}

// ClearCache drops cached responses by prefix, or everything under "cache:"
// when no prefix is given.
func (a *AdminController) ClearCache(ctx *gin.Context) {
	prefix := strings.TrimSpace(ctx.Query("prefix"))
	if prefix == "" {
		prefix = "cache:"
	}
	if !strings.HasPrefix(prefix, "cache:") {
		utils.Error(ctx, http.StatusBadRequest, 40089, "prefix must start with cache:")
		return
	}
	utils.InvalidateByPrefix(prefix)
	utils.Success(ctx, gin.H{"message": "cache cleared", "prefix": prefix})
}

// AdjustPoints applies a manual point correction to a user.
func (a *AdminController) AdjustPoints(ctx *gin.Context) {
	adminID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40116, "unauthorized")
		return
	}

	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Amount int    `json:"amount" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40092, "invalid request payload")
		return
	}

	h, err := a.points.AdminAdjust(ctx.Request.Context(), req.UserID, req.Amount, utils.SanitizeText(req.Reason), adminID)
	if err != nil {
		respondServiceError(ctx, err, 50115, "failed to adjust points")
		return
	}
	utils.Success(ctx, gin.H{"history": h})
}

// ExpirePoints triggers the expiry sweep on demand. The nightly scheduler
// runs the same sweep.
func (a *AdminController) ExpirePoints(ctx *gin.Context) {
	n, err := a.points.ExpirePoints(ctx.Request.Context())
	if err != nil {
		respondServiceError(ctx, err, 50116, "expiry sweep failed")
		return
	}
	utils.Success(ctx, gin.H{"expired": n})
}

// SearchLogs returns recent search activity, optionally filtered by keyword.
func (a *AdminController) SearchLogs(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	keyword := strings.TrimSpace(ctx.Query("keyword"))

	q := a.db.Model(&models.SearchLog{})
	if keyword != "" {
		q = q.Where("keyword LIKE ?", "%"+keyword+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50117, "failed to count search logs")
		return
	}
	var items []models.SearchLog
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50118, "failed to list search logs")
		return
	}
	utils.Success(ctx, utils.Paginated(items, page, pageSize, total))
}

// AdminRequired guards the admin route group.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !isAdmin(ctx) {
			utils.Error(ctx, http.StatusForbidden, 40300, "admin privileges required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
