package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
)

// ErrEventNotFound 在日历事件不存在或不属于调用者时返回
var ErrEventNotFound = errors.New("calendar event not found")

// EventService 管理本地日历事件
// 导入的远端事件也从这里读取，但写入口只针对本地事件
type EventService struct {
	db *gorm.DB
}

// EventInput 定义创建或更新事件时的可配置字段
// 指针字段为 nil 表示调用方未提供，更新时保持原值不动
type EventInput struct {
	Title       string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    *bool
	IsCompleted *bool
	Color       string
	TaskID      *uint
}

// NewEventService 构造 EventService
func NewEventService(gdb *gorm.DB) *EventService {
	return &EventService{db: gdb}
}

// ListWindow 返回时间窗口内的全部事件，按开始时间排序
func (s *EventService) ListWindow(userID uint, start, end time.Time) ([]db.CalendarEvent, error) {
	var events []db.CalendarEvent
	if err := s.db.Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, start, end).
		Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Get 返回指定事件，越权视为不存在
func (s *EventService) Get(userID, id uint) (*db.CalendarEvent, error) {
	var event db.CalendarEvent
	if err := s.db.Where("user_id = ?", userID).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// Create 新建本地事件；可在创建时链接任务
func (s *EventService) Create(userID uint, input EventInput) (*db.CalendarEvent, error) {
	if input.Title == "" || input.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: title and start time are required", ErrTaskInvalidInput)
	}

	end := input.EndTime
	if end.IsZero() {
		end = input.StartTime.Add(time.Hour)
	}

	event := db.CalendarEvent{
		UserID:    userID,
		Title:     input.Title,
		StartTime: input.StartTime,
		EndTime:   end,
		Source:    db.EventSourceLocal,
		Color:     input.Color,
		TaskID:    input.TaskID,
	}
	if input.Description != nil {
		event.Description = *input.Description
	}
	if input.IsAllDay != nil {
		event.IsAllDay = *input.IsAllDay
	}
	if input.IsCompleted != nil {
		event.IsCompleted = *input.IsCompleted
	}

	if err := s.db.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &event, nil
}

// Update 更新事件字段；导入的事件也允许改标记类字段，由调用方决定是否回写远端
func (s *EventService) Update(userID, id uint, input EventInput) (*db.CalendarEvent, error) {
	event, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		event.Title = input.Title
	}
	if input.Description != nil {
		event.Description = *input.Description
	}
	if !input.StartTime.IsZero() {
		event.StartTime = input.StartTime
	}
	if !input.EndTime.IsZero() {
		event.EndTime = input.EndTime
	}
	if input.IsAllDay != nil {
		event.IsAllDay = *input.IsAllDay
	}
	if input.Color != "" {
		event.Color = input.Color
	}
	if input.IsCompleted != nil {
		event.IsCompleted = *input.IsCompleted
	}
	if input.TaskID != nil {
		event.TaskID = input.TaskID
	}

	if err := s.db.Save(event).Error; err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// Delete 删除事件
func (s *EventService) Delete(userID, id uint) (*db.CalendarEvent, error) {
	event, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Delete(event).Error; err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return event, nil
}
