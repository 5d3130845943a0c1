package db

import (
	"time"

	"gorm.io/gorm"
)

// 任务类型取值
const (
	TaskTypeNormal    = "normal"
	TaskTypeHighlight = "highlight"
)

// 任务状态取值（空字符串表示未归档的收集箱任务）
const (
	TaskStatusNone    = ""
	TaskStatusBacklog = "backlog"
	TaskStatusPlanned = "planned"
	TaskStatusDone    = "done"
)

// Task 定义了任务模型
// DeadlineType 记录截止策略（next_3_days/next_week/next_month/next_quarter/next_year），
// DeadlineSetAt 记录该策略的生效时间，两者配合计算逾期
// HighlightKey 仅对 highlight 任务赋值，形如 "<userID>:<yyyy-mm-dd>"，
// 唯一索引保证同一用户同一天至多一个 highlight
type Task struct {
	gorm.Model
	UserID         uint `gorm:"index"`
	Title          string
	Description    string
	Status         string
	Type           string `gorm:"default:normal"`
	ScheduledDate  *time.Time
	DeadlineType   string
	DeadlineSetAt  *time.Time
	Duration       int
	CompletedAt    *time.Time
	RollupCount    int
	HighlightKey   *string `gorm:"uniqueIndex"`
	TagID          *uint
	Tag            *Tag
	CalendarEvents []CalendarEvent
}

// Tag 定义了任务标签模型
type Tag struct {
	gorm.Model
	UserID uint `gorm:"index"`
	Name   string
	Color  string
}
