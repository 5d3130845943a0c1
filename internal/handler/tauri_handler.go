package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/calendar"
)

type stateRequest struct {
	Return string `json:"return"`
}

type googleTokenRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri"`
}

// TauriCredentials 桌面端凭据登录，签发 7 天有效的 Bearer 令牌
func (a *API) TauriCredentials(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "email and password are required") {
		return
	}

	user, err := a.accounts.Login(req.Email, req.Password)
	if err != nil {
		a.respondAccountError(c, err)
		return
	}

	token, expiresAt, err := a.tokens.IssueSession(user.ID, user.Email, user.Name, user.Image)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
		"user":      userView(user),
	})
}

// TauriRefresh 用仍然有效的令牌换发一张新的，桌面端续期不用重输密码
func (a *API) TauriRefresh(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	claims, err := a.tokens.VerifySession(raw)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := claims.SubjectID()
	if err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := a.accounts.GetUser(userID)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	token, expiresAt, err := a.tokens.IssueSession(user.ID, user.Email, user.Name, user.Image)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
		"user":      userView(user),
	})
}

// TauriGoogleToken 桌面端 Google 登录：用授权码换取令牌并签发 Bearer 令牌
// 账号不存在时按邮箱自动建号，邮箱视为已验证
func (a *API) TauriGoogleToken(c *gin.Context) {
	identity, ok := a.google.(calendar.IdentityProvider)
	if !ok || a.google == nil {
		respondError(c, http.StatusServiceUnavailable, "google sign-in is not configured")
		return
	}

	var req googleTokenRequest
	if !bindJSON(c, &req, "code is required") {
		return
	}
	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = "tauri://localhost"
	}

	ctx := c.Request.Context()
	tokens, err := identity.ExchangeCode(ctx, req.Code, redirectURI)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid authorization code")
		return
	}

	profile, err := identity.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "failed to fetch google profile")
		return
	}

	user, err := a.accounts.GetOrCreateGoogleUser(profile.Email, profile.Name, profile.Picture)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to sign in")
		return
	}

	token, expiresAt, err := a.tokens.IssueSession(user.ID, user.Email, user.Name, user.Image)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
		"user":      userView(user),
	})
}

// TauriState 为桌面端 OAuth 流程签发 5 分钟有效的状态令牌
// 状态里绑定调用者 ID，回调时据此落库而无需浏览器会话
func (a *API) TauriState(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, err := a.tokens.VerifySession(raw)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := claims.SubjectID()
	if err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req stateRequest
	_ = c.ShouldBindJSON(&req)

	state, err := a.tokens.IssueState(userID, req.Return)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to issue state")
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}
