package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions("miniorg_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 公开的账号路由
	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", api.Signup)
		auth.POST("/verify-email", api.VerifyEmail)
		auth.POST("/resend-verification", api.ResendVerification)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)
		auth.POST("/forgot-password", api.ForgotPassword)
		auth.POST("/verify-reset-code", api.VerifyResetCode)
		auth.POST("/reset-password", api.ResetPassword)

		// 桌面端令牌路由，自带 Bearer 校验
		auth.POST("/tauri/credentials", api.TauriCredentials)
		auth.POST("/tauri/token", api.TauriGoogleToken)
		auth.POST("/tauri/refresh", api.TauriRefresh)
		auth.POST("/tauri/state", api.TauriState)

		// 回调只凭签名状态令牌识别用户，无需会话
		auth.GET("/google-calendar/callback", api.GoogleCalendarCallback)
	}

	// 需要登录态的业务路由
	caller := r.Group("/api")
	caller.Use(api.RequireCaller())
	{
		caller.GET("/auth/google-calendar", api.GoogleCalendarBegin)

		caller.GET("/tasks", api.ListTasks)
		caller.POST("/tasks", api.CreateTask)
		caller.GET("/tasks/highlight", api.GetHighlight)
		caller.POST("/tasks/highlight", api.SetHighlight)
		caller.POST("/tasks/rollover", api.RolloverTasks)
		caller.GET("/tasks/:id", api.GetTask)
		caller.PATCH("/tasks/:id", api.UpdateTask)
		caller.DELETE("/tasks/:id", api.DeleteTask)
		caller.GET("/tasks/:id/notes", api.TaskNotes)

		caller.GET("/tags", api.ListTags)
		caller.POST("/tags", api.CreateTag)
		caller.PATCH("/tags/:id", api.UpdateTag)
		caller.DELETE("/tags/:id", api.DeleteTag)

		caller.GET("/daily-ritual", api.GetRitual)
		caller.POST("/daily-ritual", api.SetRitual)

		caller.GET("/calendar-events", api.ListEvents)
		caller.POST("/calendar-events", api.CreateEvent)
		caller.PATCH("/calendar-events/:id", api.UpdateEvent)
		caller.DELETE("/calendar-events/:id", api.DeleteEvent)

		caller.GET("/calendar-connections", api.ListConnections)
		caller.PATCH("/calendar-connections/:id", api.UpdateConnection)

		caller.POST("/calendar-sync", api.RunSync)

		caller.GET("/user/profile", api.GetProfile)
		caller.PATCH("/user/profile", api.UpdateProfile)
		caller.GET("/user/settings", api.GetSettings)
		caller.PATCH("/user/settings", api.UpdateSettings)
	}

	return r
}
