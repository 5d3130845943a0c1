package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/miniorg/internal/auth"
	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/config"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/handler"
	"github.com/miniorg/internal/router"
	"github.com/miniorg/internal/service"
)

func main() {
	// .env 只在本地开发存在，缺失时直接用进程环境
	_ = godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTStateAudience)

	var google calendar.Adapter
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		google = calendar.NewGoogleAdapter(cfg.GoogleClientID, cfg.GoogleClientSecret)
	} else {
		log.Println("google credentials missing, calendar sync disabled")
	}

	var mailer service.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = service.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	} else {
		log.Println("mail api key missing, verification codes will be logged")
		mailer = service.LogMailer{}
	}

	api := handler.NewAPI(db.DB, handler.Options{
		Mailer:            mailer,
		Tokens:            tokens,
		Google:            google,
		GoogleRedirectURL: cfg.GoogleRedirectURL,
	})

	// 后台周期同步
	if google != nil {
		scheduler := service.NewSchedulerService(db.DB, api.Sync())
		if err := scheduler.Start(cfg.SyncInterval); err != nil {
			log.Fatalf("failed to start sync scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
