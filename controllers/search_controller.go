package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

// SearchController serves keyword search over posts.
type SearchController struct {
	search *services.SearchService
}

// NewSearchController creates a new SearchController instance.
func NewSearchController(search *services.SearchService) *SearchController {
	return &SearchController{search: search}
}

func searchOptions(ctx *gin.Context) services.SearchOptions {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	boardID, _ := strconv.ParseUint(ctx.Query("board_id"), 10, 64)

	var fields []string
	switch ctx.Query("fields") {
	case "title":
		fields = []string{"title"}
	case "content":
		fields = []string{"content"}
	}

	return services.SearchOptions{
		BoardID:  uint(boardID),
		Fields:   fields,
		Sort:     ctx.DefaultQuery("sort", "latest"),
		Page:     page,
		PageSize: pageSize,
	}
}

func searchRequester(ctx *gin.Context) services.SearchRequester {
	return services.SearchRequester{
		UserID:    getUserIDPtr(ctx),
		IP:        ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
	}
}

// Search runs a keyword search. Multiple whitespace-separated terms must all
// match.
func (s *SearchController) Search(ctx *gin.Context) {
	keyword := ctx.Query("q")
	opts := searchOptions(ctx)

	var (
		posts interface{}
		total int64
		err   error
	)
	if mode := ctx.Query("mode"); mode == "or" || mode == "and" {
		posts, total, err = s.search.SearchPostsWithMode(ctx.Request.Context(), keyword, mode, opts, searchRequester(ctx))
	} else if tag := strings.TrimSpace(ctx.Query("highlight")); tag != "" {
		posts, total, err = s.search.SearchPostsWithHighlight(ctx.Request.Context(), keyword, tag, opts, searchRequester(ctx))
	} else {
		posts, total, err = s.search.SearchPosts(ctx.Request.Context(), keyword, opts, searchRequester(ctx))
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50100, "search failed")
		return
	}
	utils.Success(ctx, utils.Paginated(posts, opts.Page, opts.PageSize, total))
}

// PopularKeywords returns the most searched keywords of a trailing window.
func (s *SearchController) PopularKeywords(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "7"))

	cacheKey := "cache:search:popular:" + strconv.Itoa(limit) + ":" + strconv.Itoa(days)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	items, err := s.search.GetPopularKeywords(ctx.Request.Context(), limit, days)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50101, "failed to load popular keywords")
		return
	}

	payload := gin.H{"items": items}
	wrapper := struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, 5*time.Minute)
	utils.Success(ctx, payload)
}

// Suggestions completes a partial keyword from recent post titles.
func (s *SearchController) Suggestions(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	items, err := s.search.GetSuggestions(ctx.Request.Context(), ctx.Query("q"), limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50102, "failed to load suggestions")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}
