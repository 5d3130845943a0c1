package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GoogleCalendarBegin 开始 Google 日历授权
// 浏览器调用直接 302 跳转，带 mode=json 的调用拿到 {authUrl} 自行打开
func (a *API) GoogleCalendarBegin(c *gin.Context) {
	if a.google == nil {
		respondError(c, http.StatusServiceUnavailable, "google calendar is not configured")
		return
	}

	userID := currentUserID(c)
	returnPath := sanitizeReturnPath(c.Query("return"))

	state := strings.TrimSpace(c.Query("state"))
	if state == "" {
		issued, err := a.tokens.IssueState(userID, returnPath)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to issue state")
			return
		}
		state = issued
	} else {
		// 桌面端预先通过 /auth/tauri/state 签发的状态也要核验一遍，
		// 避免把任意字符串透传给授权页
		if _, err := a.tokens.VerifyState(state); err != nil {
			respondError(c, http.StatusBadRequest, "invalid state")
			return
		}
	}

	authURL := a.google.AuthURL(a.googleRedirectURL, state)
	if c.Query("mode") == "json" {
		c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCalendarCallback 处理授权回调：换码、发现日历、落库连接
// 身份完全来自签名状态令牌，不依赖浏览器会话
func (a *API) GoogleCalendarCallback(c *gin.Context) {
	if a.google == nil {
		respondError(c, http.StatusServiceUnavailable, "google calendar is not configured")
		return
	}

	if oauthErr := c.Query("error"); oauthErr != "" {
		respondError(c, http.StatusBadRequest, "authorization was denied")
		return
	}

	code := c.Query("code")
	rawState := c.Query("state")
	if code == "" || rawState == "" {
		respondError(c, http.StatusBadRequest, "code and state are required")
		return
	}

	claims, err := a.tokens.VerifyState(rawState)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid or expired state")
		return
	}

	ctx := c.Request.Context()
	tokens, err := a.google.ExchangeCode(ctx, code, a.googleRedirectURL)
	if err != nil {
		log.Printf("google oauth exchange: %v", err)
		respondError(c, http.StatusBadGateway, "failed to exchange authorization code")
		return
	}

	calendars, err := a.google.ListCalendars(ctx, tokens.AccessToken)
	if err != nil {
		log.Printf("google calendar discovery: %v", err)
		respondError(c, http.StatusBadGateway, "failed to list calendars")
		return
	}

	created, err := a.connections.SaveDiscovered(claims.UserID, "google", calendars, tokens)
	if err != nil {
		log.Printf("save discovered calendars: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to save calendars")
		return
	}

	if claims.Return != "" {
		c.Redirect(http.StatusFound, claims.Return)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "calendars connected",
		"discovered": len(calendars),
		"created":    created,
	})
}

// sanitizeReturnPath 只允许站内相对路径，拒绝开放跳转
func sanitizeReturnPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}
