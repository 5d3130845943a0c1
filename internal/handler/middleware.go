package handler

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	callerContextKey = "__caller_user_id"
	sessionUserKey   = "user_id"
)

// RequireCaller 统一两种登录态：先试 Bearer JWT，再退回 Cookie 会话
// 通过后把用户 ID 放进请求上下文，后续处理器不再区分登录方式
func (a *API) RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			claims, err := a.tokens.VerifySession(token)
			if err == nil {
				if userID, err := claims.SubjectID(); err == nil {
					c.Set(callerContextKey, userID)
					c.Next()
					return
				}
			}
			// 无效的 Bearer 直接拒绝，不再尝试会话，
			// 避免带着过期令牌的客户端静默降级
			respondError(c, http.StatusUnauthorized, "unauthorized")
			c.Abort()
			return
		}

		session := sessions.Default(c)
		if raw := session.Get(sessionUserKey); raw != nil {
			if userID, ok := raw.(uint); ok {
				c.Set(callerContextKey, userID)
				c.Next()
				return
			}
		}

		respondError(c, http.StatusUnauthorized, "unauthorized")
		c.Abort()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentUserID(c *gin.Context) uint {
	if raw, exists := c.Get(callerContextKey); exists {
		if userID, ok := raw.(uint); ok {
			return userID
		}
	}
	return 0
}
