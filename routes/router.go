package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/moadong/moabbs/config"
	"github.com/moadong/moabbs/controllers"
	"github.com/moadong/moabbs/middleware"
	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

// SetupRouter wires routes, middlewares, controllers and services.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	// Blocklist check runs before anything touches the database
	r.Use(middleware.IPBlockFilter())
	// Record PV after each request
	r.Use(middleware.PageViewRecorder(db))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	settingStore := services.NewSettingStore(db)
	pointService := services.NewPointService(db, services.PointConfigFromApp(cfg)).WithSettings(settingStore)
	attachmentService := services.NewAttachmentService(db, services.AttachmentConfigFromApp(cfg))
	likeService := services.NewLikeService(db)
	searchService := services.NewSearchService(db)

	authController := controllers.NewAuthController(db, pointService)
	boardController := controllers.NewBoardController(db)
	postController := controllers.NewPostController(db, pointService)
	attachmentController := controllers.NewAttachmentController(attachmentService)
	pointController := controllers.NewPointController(pointService)
	likeController := controllers.NewLikeController(db, likeService, pointService)
	searchController := controllers.NewSearchController(searchService)
	statsController := controllers.NewStatsController(db)
	adminController := controllers.NewAdminController(db, pointService)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/captcha/verify", authController.CaptchaVerify)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public reads
	api.GET("/boards", boardController.ListBoards)
	api.GET("/boards/:slug", boardController.GetBoard)
	api.GET("/boards/:slug/posts", postController.ListPosts)
	api.GET("/posts/:id", middleware.AuthOptional(), postController.GetPost)
	api.GET("/search", middleware.AuthOptional(), searchController.Search)
	api.GET("/search/popular", searchController.PopularKeywords)
	api.GET("/search/suggest", searchController.Suggestions)
	api.GET("/likes/:type/:id/stats", likeController.Stats)
	api.GET("/likes/:type/:id/stats/period", likeController.StatsByPeriod)
	api.GET("/posts/popular", likeController.Popular)
	api.GET("/stats", statsController.GetStats)
	api.GET("/posts/:id/stats", statsController.GetPostStats)
	api.GET("/users/:id", authController.GetUserPublic)
	api.GET("/users/:id/posts", postController.ListUserPosts)
	api.GET("/attachments/:id/download", middleware.AuthOptional(), attachmentController.Download)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/boards/:slug/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.DELETE("/comments/:commentId", postController.DeleteComment)
	protected.GET("/users/me/posts", postController.ListMyPosts)

	protected.POST("/attachments", attachmentController.Upload)
	protected.DELETE("/attachments/:id", attachmentController.Delete)
	protected.GET("/attachments", attachmentController.ListMine)

	protected.GET("/points/balance", pointController.Balance)
	protected.GET("/points/history", pointController.History)
	protected.POST("/points/transfer", pointController.Transfer)
	protected.POST("/points/attendance", pointController.Attendance)
	protected.GET("/points/earn-status", pointController.EarnStatus)

	protected.POST("/likes/:type/:id", likeController.ToggleLike)
	protected.POST("/dislikes/:type/:id", likeController.ToggleDislike)
	protected.GET("/likes/:type/:id/status", likeController.Status)
	protected.POST("/scraps/:type/:id", likeController.ToggleScrap)
	protected.GET("/scraps", likeController.ListScraps)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), controllers.AdminRequired())
	admin.GET("/users", adminController.ListUsers)
	admin.POST("/boards", boardController.CreateBoard)
	admin.PATCH("/boards/:slug", boardController.UpdateBoard)
	admin.DELETE("/boards/:slug", boardController.DeleteBoard)
	admin.POST("/posts/:id/hide", postController.HidePost)
	admin.GET("/settings", adminController.GetSettings)
	admin.PUT("/settings", adminController.PutSetting)
	admin.DELETE("/settings/:key", adminController.DeleteSetting)
	admin.POST("/ip-blocks", adminController.BlockIP)
	admin.DELETE("/ip-blocks/:ip", adminController.UnblockIP)
	admin.GET("/ip-blocks", adminController.ListBlockedIPs)
	admin.POST("/cache/clear", adminController.ClearCache)
	admin.POST("/points/adjust", adminController.AdjustPoints)
	admin.POST("/points/expire", adminController.ExpirePoints)
	admin.GET("/search-logs", adminController.SearchLogs)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
