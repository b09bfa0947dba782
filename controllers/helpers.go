package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/middleware"
	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// getUserIDPtr resolves the optional user for anonymous-friendly endpoints.
func getUserIDPtr(ctx *gin.Context) *uint {
	if id, ok := getUserID(ctx); ok {
		return &id
	}
	return nil
}

func isAdmin(ctx *gin.Context) bool {
	unameVal, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return false
	}
	uname, _ := unameVal.(string)
	return isAdminUsername(uname)
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// respondServiceError maps service errors onto the response envelope:
// validation failures become 422, permission failures 403, missing rows 404
// and anything else a 500 with the generic message.
func respondServiceError(ctx *gin.Context, err error, code int, generic string) {
	switch {
	case services.IsValidationError(err):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42201, err.Error())
	case services.IsAuthorizationError(err):
		utils.Error(ctx, http.StatusForbidden, 40310, err.Error())
	case err == gorm.ErrRecordNotFound:
		utils.Error(ctx, http.StatusNotFound, 40400, "resource not found")
	default:
		utils.Error(ctx, http.StatusInternalServerError, code, generic)
	}
}
