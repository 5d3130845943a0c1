package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/service"
)

// eventRequest 的可选字段用指针承接，缺省键在 PATCH 里保持原值
type eventRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsAllDay    *bool     `json:"isAllDay"`
	IsCompleted *bool     `json:"isCompleted"`
	Color       string    `json:"color"`
	TaskID      *uint     `json:"taskId"`
}

func (r eventRequest) toInput() service.EventInput {
	return service.EventInput{
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		IsAllDay:    r.IsAllDay,
		IsCompleted: r.IsCompleted,
		Color:       r.Color,
		TaskID:      r.TaskID,
	}
}

// ListEvents 返回时间窗口内的事件，窗口缺省为今天起七天
func (a *API) ListEvents(c *gin.Context) {
	start, hasStart, err := parseTimeQuery(c, "start")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	end, hasEnd, err := parseTimeQuery(c, "end")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if !hasStart {
		now := time.Now()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	if !hasEnd {
		end = start.AddDate(0, 0, 7)
	}

	events, err := a.events.ListWindow(currentUserID(c), start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// CreateEvent 新建本地事件；设置了导出日历时同步写一份远端副本
func (a *API) CreateEvent(c *gin.Context) {
	var req eventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}

	userID := currentUserID(c)
	event, err := a.events.Create(userID, req.toInput())
	if err != nil {
		a.respondEventError(c, err)
		return
	}

	a.mirrorExport(c, userID, event)
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// UpdateEvent 更新事件；已导出的本地事件把改动推送到远端副本
func (a *API) UpdateEvent(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req eventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}

	userID := currentUserID(c)
	event, err := a.events.Update(userID, id, req.toInput())
	if err != nil {
		a.respondEventError(c, err)
		return
	}

	if event.Source == db.EventSourceLocal && event.ExternalID != "" && event.ConnectionID != nil {
		if connection, err := a.connections.Get(userID, *event.ConnectionID); err == nil {
			if err := a.sync.UpdateExportedEvent(c.Request.Context(), connection, event); err != nil {
				log.Printf("push event %d update: %v", event.ID, err)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// DeleteEvent 删除事件；远端副本尽力删除，失败不阻塞本地删除
func (a *API) DeleteEvent(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	userID := currentUserID(c)
	event, err := a.events.Delete(userID, id)
	if err != nil {
		a.respondEventError(c, err)
		return
	}

	if event.Source == db.EventSourceLocal && event.ExternalID != "" && event.ConnectionID != nil {
		if connection, err := a.connections.Get(userID, *event.ConnectionID); err == nil {
			a.sync.DeleteExportedEvent(c.Request.Context(), connection, event)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

// mirrorExport 把新建的本地事件写到导出目标日历，失败只记录
func (a *API) mirrorExport(c *gin.Context, userID uint, event *db.CalendarEvent) {
	target, err := a.connections.ExportTarget(userID)
	if err != nil || target == nil {
		return
	}
	if err := a.sync.ExportEvent(c.Request.Context(), target, event); err != nil {
		log.Printf("export event %d: %v", event.ID, err)
	}
}

func (a *API) respondEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		respondError(c, http.StatusNotFound, "event not found")
	case errors.Is(err, service.ErrTaskInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}
