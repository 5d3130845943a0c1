package db

import (
	"time"

	"gorm.io/gorm"
)

// EventSourceLocal 标记本地创建的事件，其余取值为外部提供商名（如 google）
const EventSourceLocal = "miniorg"

// CalendarConnection 表示一条外部日历授权
// 同一用户对同一 (provider, calendar_id) 至多一行；授权失效时置 IsActive=false，
// 不做物理删除。IsExportTarget 每个用户至多一条，由业务层维护
type CalendarConnection struct {
	gorm.Model
	UserID         uint   `gorm:"index;index:idx_connection_calendar,unique"`
	Provider       string `gorm:"index:idx_connection_calendar,unique"`
	CalendarID     string `gorm:"index:idx_connection_calendar,unique"`
	Name           string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
	IsActive       bool
	IsExportTarget bool
	LastSyncAt     *time.Time
}

// CalendarEvent 表示一个时间段事件
// Source != miniorg 的事件来自外部同步，除完成状态镜像外只读；
// (connection_id, external_id) 唯一索引保证同步 upsert 幂等
type CalendarEvent struct {
	gorm.Model
	UserID       uint `gorm:"index"`
	Title        string
	Description  string
	StartTime    time.Time `gorm:"index"`
	EndTime      time.Time
	Source       string `gorm:"default:miniorg"`
	ExternalID   string `gorm:"index:idx_event_external,unique"`
	ConnectionID *uint  `gorm:"index:idx_event_external,unique"`
	TaskID       *uint  `gorm:"index"`
	IsAllDay     bool
	IsCompleted  bool
	Color        string
	LastSyncedAt *time.Time
}

// DailyRitual 记录某用户某天的计划：highlight 引用与时间线任务顺序
// Timeline 以 JSON 字符串保存任务 ID 序列
type DailyRitual struct {
	gorm.Model
	UserID      uint      `gorm:"index:idx_ritual_day,unique"`
	Date        time.Time `gorm:"index:idx_ritual_day,unique"`
	HighlightID *uint
	Highlight   *Task
	Timeline    string
}
