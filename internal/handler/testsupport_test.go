package handler

import (
	"fmt"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/auth"
	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testMailer 把验证码留在内存里供断言
type testMailer struct {
	lastEmail string
	lastCode  string
}

func (m *testMailer) SendVerificationCode(email, code string) error {
	m.lastEmail, m.lastCode = email, code
	return nil
}

func (m *testMailer) SendPasswordResetCode(email, code string) error {
	m.lastEmail, m.lastCode = email, code
	return nil
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.Task{},
		&db.Tag{},
		&db.CalendarConnection{},
		&db.CalendarEvent{},
		&db.DailyRitual{},
		&db.VerificationToken{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return gdb
}

// newTestServer 按正式路由的骨架搭一个可驱动的引擎
func newTestServer(t *testing.T, name string) (*API, *gin.Engine) {
	return newTestServerWithGoogle(t, name, nil)
}

// newTestServerWithGoogle 同上，但允许注入日历适配器
func newTestServerWithGoogle(t *testing.T, name string, google calendar.Adapter) (*API, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := openTestDB(t, name)
	tokens := auth.NewTokenIssuer("test-secret", "miniorg", "miniorg-app", "miniorg-oauth-state")
	api := NewAPI(gdb, Options{Mailer: &testMailer{}, Tokens: tokens, Google: google})

	r := gin.New()
	store := cookie.NewStore([]byte("test-session-secret"))
	r.Use(sessions.Sessions("miniorg_session", store))

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", api.Signup)
		authGroup.POST("/verify-email", api.VerifyEmail)
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
		authGroup.POST("/tauri/credentials", api.TauriCredentials)
		authGroup.POST("/tauri/token", api.TauriGoogleToken)
		authGroup.POST("/tauri/refresh", api.TauriRefresh)
	}

	caller := r.Group("/api")
	caller.Use(api.RequireCaller())
	{
		caller.GET("/tasks", api.ListTasks)
		caller.POST("/tasks", api.CreateTask)
		caller.GET("/tasks/highlight", api.GetHighlight)
		caller.POST("/tasks/highlight", api.SetHighlight)
		caller.GET("/tasks/:id", api.GetTask)
		caller.PATCH("/tasks/:id", api.UpdateTask)
		caller.DELETE("/tasks/:id", api.DeleteTask)
		caller.GET("/user/profile", api.GetProfile)
		caller.GET("/user/settings", api.GetSettings)
		caller.PATCH("/user/settings", api.UpdateSettings)
	}

	return api, r
}

// seedUser 直接建一个已验证用户并签出 Bearer 令牌
func seedUser(t *testing.T, api *API, email string) (*db.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("Sup3r#Secret")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	user := db.User{Email: email, Password: hash, Name: "Test", EmailVerifiedAt: &now}
	if err := api.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	token, _, err := api.tokens.IssueSession(user.ID, user.Email, user.Name, user.Image)
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}
	return &user, token
}
