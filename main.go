package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moadong/moabbs/config"
	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/routes"
	"github.com/moadong/moabbs/services"
	"github.com/moadong/moabbs/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{}, &models.Board{}, &models.Post{}, &models.Comment{},
		&models.Attachment{}, &models.PointHistory{}, &models.PostLike{},
		&models.Scrap{}, &models.SearchLog{}, &models.Setting{}, &models.PageView{},
	)

	r := routes.SetupRouter(db)

	// Nightly sweep claws back expired point credits
	pointService := services.NewPointService(db, services.PointConfigFromApp(cfg))
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		n, err := pointService.ExpirePoints(ctx)
		if err != nil {
			utils.Sugar.Errorf("point expiry sweep failed: %v", err)
			return
		}
		if n > 0 {
			utils.Sugar.Infof("point expiry sweep reclaimed %d credits", n)
		}
	}); err != nil {
		utils.Sugar.Fatalf("failed to schedule point expiry sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
