package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/service"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup 处理凭据注册
func (a *API) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req, "email and password are required") {
		return
	}

	user, err := a.accounts.Signup(req.Email, req.Password, req.Name)
	if err != nil {
		a.respondAccountError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "verification code sent",
		"user":    userView(user),
	})
}

// VerifyEmail 消费注册验证码
func (a *API) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindJSON(c, &req, "email and code are required") {
		return
	}

	user, err := a.accounts.VerifyEmail(req.Email, req.Code)
	if err != nil {
		a.respondAccountError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userView(user)})
}

// ResendVerification 重发注册验证码，不暴露邮箱是否存在
func (a *API) ResendVerification(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req, "email is required") {
		return
	}

	if err := a.accounts.ResendVerification(req.Email); err != nil {
		a.respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the email is registered, a code has been sent"})
}

// Login 凭据登录并建立 Cookie 会话
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "email and password are required") {
		return
	}

	user, err := a.accounts.Login(req.Email, req.Password)
	if err != nil {
		a.respondAccountError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to establish session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userView(user)})
}

// Logout 清除 Cookie 会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to clear session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ForgotPassword 发起找回流程，响应对是否注册保持沉默
func (a *API) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req, "email is required") {
		return
	}

	if err := a.accounts.ForgotPassword(req.Email); err != nil {
		log.Printf("forgot password for %s: %v", req.Email, err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the email is registered, a code has been sent"})
}

// VerifyResetCode 预检找回验证码
func (a *API) VerifyResetCode(c *gin.Context) {
	var req verifyEmailRequest
	if !bindJSON(c, &req, "email and code are required") {
		return
	}

	if err := a.accounts.VerifyResetCode(req.Email, req.Code); err != nil {
		a.respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ResetPassword 消费验证码并写入新口令
func (a *API) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req, "email, code and password are required") {
		return
	}

	if err := a.accounts.ResetPassword(req.Email, req.Code, req.Password); err != nil {
		a.respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// respondAccountError 把账号层错误映射为有错误码的 HTTP 响应
func (a *API) respondAccountError(c *gin.Context, err error) {
	var accountErr *service.AccountError
	if errors.As(err, &accountErr) {
		status := http.StatusBadRequest
		switch accountErr.Code {
		case "INVALID_CREDENTIALS":
			status = http.StatusUnauthorized
		case "EMAIL_NOT_VERIFIED":
			status = http.StatusForbidden
		}
		respondErrorCode(c, status, accountErr.Code, accountErr.Message)
		return
	}

	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  weak.Error(),
			"code":   "WEAK_PASSWORD",
			"errors": weak.Violations,
		})
		return
	}

	log.Printf("account operation failed: %v", err)
	respondError(c, http.StatusInternalServerError, "internal error")
}

func userView(user *db.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"image":         user.Image,
		"googleLinked":  user.GoogleLinked,
		"emailVerified": user.EmailVerifiedAt != nil,
	}
}
