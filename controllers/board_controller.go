package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/utils"
)

// BoardController serves the board catalog and its admin management.
type BoardController struct {
	db *gorm.DB
}

// NewBoardController creates a new BoardController instance.
func NewBoardController(db *gorm.DB) *BoardController {
	return &BoardController{db: db}
}

// ListBoards returns all active boards ordered for display.
func (b *BoardController) ListBoards(ctx *gin.Context) {
	if bs, ok := utils.CacheGetBytes("cache:boards:list"); ok {
		ctx.Data(http.StatusOK, "application/json", bs)
		return
	}

	var boards []models.Board
	if err := b.db.Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").Find(&boards).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to list boards")
		return
	}

	payload := gin.H{"items": boards}
	wrapper := struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:boards:list", wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// GetBoard returns one board by slug.
func (b *BoardController) GetBoard(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))
	var board models.Board
	if err := b.db.Where("slug = ?", slug).First(&board).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40430, "board not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to load board")
		return
	}
	utils.Success(ctx, gin.H{"board": board})
}

// CreateBoard creates a new board (admin only, enforced by the route group).
func (b *BoardController) CreateBoard(ctx *gin.Context) {
	var req struct {
		Slug        string `json:"slug" binding:"required"`
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		ReadLevel   int    `json:"read_level"`
		WriteLevel  int    `json:"write_level"`
		SortOrder   int    `json:"sort_order"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid request payload")
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !validSlug(slug) {
		utils.Error(ctx, http.StatusBadRequest, 40081, "slug must be lowercase letters, digits or '-'")
		return
	}

	board := models.Board{
		Slug:        slug,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		ReadLevel:   req.ReadLevel,
		WriteLevel:  req.WriteLevel,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if err := b.db.Create(&board).Error; err != nil {
		utils.Error(ctx, http.StatusConflict, 40930, "board slug already exists")
		return
	}

	utils.CacheDelete("cache:boards:list")
	utils.Success(ctx, gin.H{"board": board})
}

// UpdateBoard updates board metadata (admin only).
func (b *BoardController) UpdateBoard(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))
	var board models.Board
	if err := b.db.Where("slug = ?", slug).First(&board).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "board not found")
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		ReadLevel   *int    `json:"read_level"`
		WriteLevel  *int    `json:"write_level"`
		SortOrder   *int    `json:"sort_order"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40082, "invalid request payload")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.ReadLevel != nil {
		updates["read_level"] = *req.ReadLevel
	}
	if req.WriteLevel != nil {
		updates["write_level"] = *req.WriteLevel
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40083, "nothing to update")
		return
	}

	if err := b.db.Model(&board).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to update board")
		return
	}

	utils.CacheDelete("cache:boards:list")
	utils.Success(ctx, gin.H{"board": board})
}

// DeleteBoard soft-deletes a board (admin only). Its posts stay addressable
// through direct links but drop out of board listings.
func (b *BoardController) DeleteBoard(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))
	var board models.Board
	if err := b.db.Where("slug = ?", slug).First(&board).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "board not found")
		return
	}

	if err := b.db.Delete(&board).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50083, "failed to delete board")
		return
	}

	utils.CacheDelete("cache:boards:list")
	utils.InvalidateByPrefix("cache:posts:list:")
	utils.Success(ctx, gin.H{"message": "board deleted"})
}

func validSlug(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		return false
	}
	return true
}
