package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miniorg/internal/db"
	"github.com/miniorg/internal/service"
)

// taskRequest 的可选字段用指针承接，缺省键在 PATCH 里保持原值
type taskRequest struct {
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	Status        *string    `json:"status"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	DeadlineType  *string    `json:"deadlineType"`
	DeadlineSetAt *time.Time `json:"deadlineSetAt"`
	Duration      *int       `json:"duration"`
	TagID         *uint      `json:"tagId"`
	EventAction   string     `json:"eventAction"`
}

type rolloverRequest struct {
	TaskIDs    []uint     `json:"taskIds" binding:"required"`
	TargetDate *time.Time `json:"targetDate"`
}

type highlightRequest struct {
	Title string `json:"title" binding:"required"`
	Date  string `json:"date"`
}

func (r taskRequest) toInput() service.TaskInput {
	return service.TaskInput{
		Title:         r.Title,
		Description:   r.Description,
		Status:        r.Status,
		ScheduledDate: r.ScheduledDate,
		DeadlineType:  r.DeadlineType,
		DeadlineSetAt: r.DeadlineSetAt,
		Duration:      r.Duration,
		TagID:         r.TagID,
		EventAction:   r.EventAction,
	}
}

// ListTasks 列出任务，支持按状态与排期日过滤，每条附带截止分组
func (a *API) ListTasks(c *gin.Context) {
	filter := service.TaskFilter{Status: c.Query("status")}
	if raw := c.Query("scheduledDate"); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid scheduledDate")
			return
		}
		filter.ScheduledOn = &date
	}

	tasks, err := a.tasks.List(currentUserID(c), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	now := time.Now()
	views := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView(task, now))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

// GetTask 返回单个任务
func (a *API) GetTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.Get(currentUserID(c), id)
	if err != nil {
		a.respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskView(*task, time.Now())})
}

// CreateTask 新建任务
func (a *API) CreateTask(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req, "invalid task payload") {
		return
	}

	task, err := a.tasks.Create(currentUserID(c), req.toInput())
	if err != nil {
		a.respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": taskView(*task, time.Now())})
}

// UpdateTask 更新任务
// 改期会影响今天的本地事件时返回 409，客户端带 eventAction 重试
func (a *API) UpdateTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req taskRequest
	if !bindJSON(c, &req, "invalid task payload") {
		return
	}

	task, err := a.tasks.Update(currentUserID(c), id, req.toInput())
	if err != nil {
		var confirmation *service.ErrRescheduleConfirmationRequired
		if errors.As(err, &confirmation) {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "rescheduling will affect today's events",
				"code":   "confirmation_required",
				"events": confirmation.Events,
			})
			return
		}
		a.respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskView(*task, time.Now())})
}

// DeleteTask 删除任务及其链接的本地事件
func (a *API) DeleteTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.tasks.Delete(currentUserID(c), id); err != nil {
		a.respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

// TaskNotes 把任务描述渲染为净化后的 HTML
func (a *API) TaskNotes(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.Get(currentUserID(c), id)
	if err != nil {
		a.respondTaskError(c, err)
		return
	}

	html, err := service.RenderNotes(task.Description)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to render notes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"html": html})
}

// GetHighlight 返回某天的高亮任务，没有时 highlight 为 null
func (a *API) GetHighlight(c *gin.Context) {
	date, err := parseDateQuery(c, "date")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.GetHighlight(currentUserID(c), date)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to get highlight")
		return
	}
	if task == nil {
		c.JSON(http.StatusOK, gin.H{"highlight": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"highlight": taskView(*task, time.Now())})
}

// SetHighlight 设置某天的高亮；同一天重复设置只改标题
func (a *API) SetHighlight(c *gin.Context) {
	var req highlightRequest
	if !bindJSON(c, &req, "title is required") {
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid date")
			return
		}
		date = parsed
	}

	task, err := a.tasks.UpsertHighlight(currentUserID(c), date, req.Title)
	if err != nil {
		a.respondTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"highlight": taskView(*task, time.Now())})
}

// RolloverTasks 把选中任务整体挪到目标日并累加顺延计数
func (a *API) RolloverTasks(c *gin.Context) {
	var req rolloverRequest
	if !bindJSON(c, &req, "taskIds are required") {
		return
	}

	tasks, err := a.tasks.Rollover(currentUserID(c), req.TaskIDs, req.TargetDate)
	if err != nil {
		if errors.Is(err, service.ErrRolloverOwnership) {
			respondError(c, http.StatusForbidden, err.Error())
			return
		}
		a.respondTaskError(c, err)
		return
	}

	now := time.Now()
	views := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView(task, now))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

func (a *API) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrTaskInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func taskView(task db.Task, now time.Time) gin.H {
	view := gin.H{
		"id":            task.ID,
		"title":         task.Title,
		"description":   task.Description,
		"status":        task.Status,
		"type":          task.Type,
		"scheduledDate": task.ScheduledDate,
		"deadlineType":  task.DeadlineType,
		"deadlineSetAt": task.DeadlineSetAt,
		"duration":      task.Duration,
		"completedAt":   task.CompletedAt,
		"rollupCount":   task.RollupCount,
		"tagId":         task.TagID,
		"deadlineGroup": service.DeadlineGroup(task, now),
		"createdAt":     task.CreatedAt,
		"updatedAt":     task.UpdatedAt,
	}
	if task.Tag != nil {
		view["tag"] = gin.H{"id": task.Tag.ID, "name": task.Tag.Name, "color": task.Tag.Color}
	}
	if task.CalendarEvents != nil {
		view["calendarEvents"] = task.CalendarEvents
	}
	return view
}
