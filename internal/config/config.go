package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr         string
	Port               string
	DatabasePath       string
	SessionSecret      string
	GinMode            string
	SiteBaseURL        string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTStateAudience   string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	ResendAPIKey       string
	MailFrom           string
	SyncInterval       time.Duration
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "miniorg.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "miniorg-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	siteBaseURL := strings.TrimSpace(os.Getenv("SITE_BASE_URL"))
	if siteBaseURL == "" {
		siteBaseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		jwtSecret = sessionSecret
	}

	jwtIssuer := strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	if jwtIssuer == "" {
		jwtIssuer = "miniorg"
	}

	jwtAudience := strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	if jwtAudience == "" {
		jwtAudience = "miniorg-app"
	}

	jwtStateAudience := strings.TrimSpace(os.Getenv("JWT_STATE_AUDIENCE"))
	if jwtStateAudience == "" {
		jwtStateAudience = "miniorg-oauth-state"
	}

	googleRedirectURL := strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URL"))
	if googleRedirectURL == "" {
		googleRedirectURL = siteBaseURL + "/api/auth/google-calendar/callback"
	}

	mailFrom := strings.TrimSpace(os.Getenv("MAIL_FROM"))
	if mailFrom == "" {
		mailFrom = "MiniOrg <noreply@miniorg.app>"
	}

	syncInterval := 15 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("SYNC_INTERVAL_MINUTES")); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			syncInterval = time.Duration(minutes) * time.Minute
		}
	}

	return AppConfig{
		ListenAddr:         listenAddr,
		Port:               port,
		DatabasePath:       databasePath,
		SessionSecret:      sessionSecret,
		GinMode:            ginMode,
		SiteBaseURL:        siteBaseURL,
		JWTSecret:          jwtSecret,
		JWTIssuer:          jwtIssuer,
		JWTAudience:        jwtAudience,
		JWTStateAudience:   jwtStateAudience,
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleRedirectURL:  googleRedirectURL,
		ResendAPIKey:       strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailFrom:           mailFrom,
		SyncInterval:       syncInterval,
	}
}
