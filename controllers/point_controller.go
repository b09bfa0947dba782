package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

// PointController exposes the point ledger to its owner.
type PointController struct {
	points *services.PointService
}

// NewPointController creates a new PointController instance.
func NewPointController(points *services.PointService) *PointController {
	return &PointController{points: points}
}

// Balance returns the caller's current point balance.
func (p *PointController) Balance(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}
	balance, err := p.points.Balance(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50040, "failed to load balance")
		return
	}
	utils.Success(ctx, gin.H{"balance": balance})
}

// History returns a page of the caller's point ledger.
func (p *PointController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	items, total, err := p.points.History(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondServiceError(ctx, err, 50041, "failed to load point history")
		return
	}
	utils.Success(ctx, utils.Paginated(items, page, pageSize, total))
}

// Transfer gifts points to another user.
func (p *PointController) Transfer(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}

	var req struct {
		ReceiverID uint   `json:"receiver_id" binding:"required"`
		Amount     int    `json:"amount" binding:"required,gt=0"`
		Message    string `json:"message"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	res, err := p.points.Transfer(ctx.Request.Context(), userID, req.ReceiverID, req.Amount, utils.SanitizeText(req.Message))
	if err != nil {
		respondServiceError(ctx, err, 50042, "failed to transfer points")
		return
	}
	utils.Success(ctx, res)
}

// Attendance credits the daily check-in reward.
func (p *PointController) Attendance(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}

	h, err := p.points.AwardAttendancePoints(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50043, "failed to record attendance")
		return
	}
	if h == nil {
		utils.Success(ctx, gin.H{"awarded": 0, "message": "이미 출석했습니다"})
		return
	}
	utils.Success(ctx, gin.H{"awarded": h.Points, "balance": h.BalanceAfter})
}

// EarnStatus reports today's earned total against the daily cap.
func (p *PointController) EarnStatus(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}
	earned, err := p.points.EarnedToday(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50044, "failed to load earn status")
		return
	}
	dailyCap := p.points.DailyCap(ctx.Request.Context())
	remaining := dailyCap - earned
	if remaining < 0 {
		remaining = 0
	}
	utils.Success(ctx, gin.H{
		"earned_today": earned,
		"daily_cap":    dailyCap,
		"remaining":    remaining,
	})
}
