package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/service"
)

type profileRequest struct {
	Name string `json:"name" binding:"required"`
}

type settingsRequest struct {
	RitualMode string `json:"ritualMode" binding:"required"`
}

func ritualModeView(user *db.User) string {
	if user.RitualMode == "" {
		return service.RitualModeSeparate
	}
	return user.RitualMode
}

// GetProfile 返回当前用户的资料
func (a *API) GetProfile(c *gin.Context) {
	user, err := a.accounts.GetUser(currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "user not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userView(user)})
}

// GetSettings 返回当前用户的偏好设置，未设置时回落到 separate
func (a *API) GetSettings(c *gin.Context) {
	user, err := a.accounts.GetUser(currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "user not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ritualMode": ritualModeView(user)})
}

// UpdateSettings 更新偏好设置
func (a *API) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req, "ritualMode is required") {
		return
	}

	user, err := a.accounts.UpdateSettings(currentUserID(c), req.RitualMode)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "user not found")
			return
		}
		a.respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ritualMode": ritualModeView(user)})
}

// UpdateProfile 更新展示名
func (a *API) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req, "name is required") {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, http.StatusBadRequest, "name is required")
		return
	}

	user, err := a.accounts.UpdateProfile(currentUserID(c), name)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "user not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userView(user)})
}
