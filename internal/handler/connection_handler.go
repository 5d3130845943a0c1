package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/service"
)

type connectionRequest struct {
	IsActive       *bool `json:"isActive"`
	IsExportTarget *bool `json:"isExportTarget"`
}

// ListConnections 返回用户的全部日历连接，令牌字段不出网
func (a *API) ListConnections(c *gin.Context) {
	connections, err := a.connections.List(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list connections")
		return
	}

	views := make([]gin.H, 0, len(connections))
	for _, connection := range connections {
		views = append(views, connectionView(connection))
	}
	c.JSON(http.StatusOK, gin.H{"connections": views})
}

// UpdateConnection 切换连接的启用与导出目标状态
func (a *API) UpdateConnection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req connectionRequest
	if !bindJSON(c, &req, "invalid connection payload") {
		return
	}

	userID := currentUserID(c)
	var connection *db.CalendarConnection

	if req.IsActive != nil {
		connection, err = a.connections.SetActive(userID, id, *req.IsActive)
		if err != nil {
			a.respondConnectionError(c, err)
			return
		}
	}
	if req.IsExportTarget != nil && *req.IsExportTarget {
		connection, err = a.connections.SetExportTarget(userID, id)
		if err != nil {
			a.respondConnectionError(c, err)
			return
		}
	}

	if connection == nil {
		connection, err = a.connections.Get(userID, id)
		if err != nil {
			a.respondConnectionError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"connection": connectionView(*connection)})
}

func (a *API) respondConnectionError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrConnectionNotFound) {
		respondError(c, http.StatusNotFound, "connection not found")
		return
	}
	respondError(c, http.StatusInternalServerError, "internal error")
}

func connectionView(connection db.CalendarConnection) gin.H {
	return gin.H{
		"id":             connection.ID,
		"provider":       connection.Provider,
		"calendarId":     connection.CalendarID,
		"name":           connection.Name,
		"isActive":       connection.IsActive,
		"isExportTarget": connection.IsExportTarget,
		"lastSyncAt":     connection.LastSyncAt,
		"createdAt":      connection.CreatedAt,
	}
}
