package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTaskNotFound 在任务不存在或不属于调用者时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskInvalidInput 当任务字段校验失败时返回
	ErrTaskInvalidInput = errors.New("invalid task input")
	// ErrRolloverOwnership 当批量顺延包含不属于调用者的任务时返回，整批回滚
	ErrRolloverOwnership = errors.New("rollover contains tasks not owned by caller")
)

// ErrRescheduleConfirmationRequired 表示改期需要调用方先确认当天事件的去留
type ErrRescheduleConfirmationRequired struct {
	Events []db.CalendarEvent
}

func (e *ErrRescheduleConfirmationRequired) Error() string {
	return fmt.Sprintf("reschedule requires confirmation for %d events scheduled today", len(e.Events))
}

// 改期时对当天事件的处理指令
const (
	EventActionNone   = ""
	EventActionDelete = "delete"
	EventActionKeep   = "keep"
)

// 截止分组取值，对应界面上的紧急程度分栏
const (
	GroupOverdue     = "overdue"
	GroupNext3Days   = "next_3_days"
	GroupNextWeek    = "next_week"
	GroupNextMonth   = "next_month"
	GroupNextQuarter = "next_quarter"
	GroupNextYear    = "next_year"
	GroupNoDate      = "no_date"
)

// TaskService 负责任务及其关联日历事件的一致性
type TaskService struct {
	db *gorm.DB
}

// TaskInput 定义创建/更新任务时可配置字段
// 指针字段为 nil 表示调用方未提供该字段，更新时保持原值不动；
// TagID 传 0 表示解除标签
type TaskInput struct {
	Title         string
	Description   *string
	Status        *string
	ScheduledDate *time.Time
	DeadlineType  *string
	DeadlineSetAt *time.Time
	Duration      *int
	TagID         *uint
	// EventAction 指定改期时当天 miniorg 事件的处理方式（delete/keep）
	EventAction string
}

// TaskFilter 描述任务列表过滤条件
type TaskFilter struct {
	Status      string
	ScheduledOn *time.Time
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb}
}

// List 返回用户任务集合，支持按状态与排期日过滤
func (s *TaskService) List(userID uint, filter TaskFilter) ([]db.Task, error) {
	var tasks []db.Task

	query := s.db.Model(&db.Task{}).Where("user_id = ?", userID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ScheduledOn != nil {
		dayStart := startOfDay(*filter.ScheduledOn)
		query = query.Where("scheduled_date >= ? AND scheduled_date < ?", dayStart, dayStart.AddDate(0, 0, 1))
	}

	if err := query.Preload("Tag").Preload("CalendarEvents").
		Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Get 返回指定任务，未命中或越权都视为不存在
func (s *TaskService) Get(userID, id uint) (*db.Task, error) {
	var task db.Task
	if err := s.db.Preload("Tag").Preload("CalendarEvents").
		Where("user_id = ?", userID).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// Create 新建任务；设置了截止策略但未指定生效时间时取当前时间
func (s *TaskService) Create(userID uint, input TaskInput) (*db.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrTaskInvalidInput)
	}

	deadlineType := ""
	if input.DeadlineType != nil {
		deadlineType = *input.DeadlineType
	}
	deadlineSetAt := input.DeadlineSetAt
	if deadlineType != "" && deadlineSetAt == nil {
		now := time.Now()
		deadlineSetAt = &now
	}

	task := db.Task{
		UserID:        userID,
		Title:         title,
		Type:          db.TaskTypeNormal,
		ScheduledDate: input.ScheduledDate,
		DeadlineType:  deadlineType,
		DeadlineSetAt: deadlineSetAt,
	}
	if input.TagID != nil && *input.TagID != 0 {
		task.TagID = input.TagID
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Duration != nil {
		task.Duration = *input.Duration
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// Update 更新任务并维护派生状态，未提供的字段保持原值：
// 完成时记录 CompletedAt 并把完成标记镜像到本地来源的关联事件；
// 把带有当天事件的任务改期到未来需要显式的 EventAction，否则返回确认错误
func (s *TaskService) Update(userID, id uint, input TaskInput) (*db.Task, error) {
	task, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	if input.ScheduledDate != nil && NeedsRescheduleConfirmation(task, *input.ScheduledDate, time.Now()) {
		if input.EventAction == EventActionNone {
			return nil, &ErrRescheduleConfirmationRequired{Events: TodayEvents(task, time.Now())}
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if input.ScheduledDate != nil && input.EventAction == EventActionDelete {
			// 只清掉确认提示里列出的那批事件，即当天的本地事件
			dayStart := startOfDay(time.Now())
			if err := tx.Where("task_id = ? AND source = ? AND start_time >= ? AND start_time < ?",
				task.ID, db.EventSourceLocal, dayStart, dayStart.AddDate(0, 0, 1)).
				Delete(&db.CalendarEvent{}).Error; err != nil {
				return fmt.Errorf("delete linked events: %w", err)
			}
		}

		if title := strings.TrimSpace(input.Title); title != "" {
			task.Title = title
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if input.Duration != nil {
			task.Duration = *input.Duration
		}
		if input.TagID != nil {
			if *input.TagID == 0 {
				task.TagID = nil
			} else {
				task.TagID = input.TagID
			}
		}
		if input.ScheduledDate != nil {
			task.ScheduledDate = input.ScheduledDate
		}
		if input.DeadlineType != nil && *input.DeadlineType != task.DeadlineType {
			task.DeadlineType = *input.DeadlineType
			if *input.DeadlineType == "" {
				task.DeadlineSetAt = nil
			} else {
				now := time.Now()
				task.DeadlineSetAt = &now
			}
		}

		if input.Status != nil && *input.Status != task.Status {
			task.Status = *input.Status
			if *input.Status == db.TaskStatusDone {
				now := time.Now()
				task.CompletedAt = &now
			} else {
				task.CompletedAt = nil
			}

			// 完成状态镜像到本地来源的关联事件
			if err := tx.Model(&db.CalendarEvent{}).
				Where("task_id = ? AND source = ?", task.ID, db.EventSourceLocal).
				Update("is_completed", *input.Status == db.TaskStatusDone).Error; err != nil {
				return fmt.Errorf("mirror completion: %w", err)
			}
		}

		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(userID, id)
}

// Delete 删除任务及其本地来源的关联事件
func (s *TaskService) Delete(userID, id uint) error {
	task, err := s.Get(userID, id)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND source = ?", task.ID, db.EventSourceLocal).
			Delete(&db.CalendarEvent{}).Error; err != nil {
			return fmt.Errorf("delete linked events: %w", err)
		}
		if err := tx.Delete(&db.Task{}, task.ID).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// HighlightKey 计算 highlight 任务的唯一键
func HighlightKey(userID uint, date time.Time) string {
	return fmt.Sprintf("%d:%s", userID, startOfDay(date).Format("2006-01-02"))
}

// UpsertHighlight 原子地创建或更新某天的 highlight 任务
// 唯一索引落在 highlight_key 上，并发调用收敛为一行，标题后写覆盖先写
func (s *TaskService) UpsertHighlight(userID uint, date time.Time, title string) (*db.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrTaskInvalidInput)
	}

	dayStart := startOfDay(date)
	key := HighlightKey(userID, date)

	task := db.Task{
		UserID:        userID,
		Title:         title,
		Status:        db.TaskStatusPlanned,
		Type:          db.TaskTypeHighlight,
		ScheduledDate: &dayStart,
		HighlightKey:  &key,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "highlight_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "updated_at"}),
	}).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("upsert highlight: %w", err)
	}

	return s.GetHighlight(userID, date)
}

// GetHighlight 返回某天的 highlight 任务，不存在时返回 nil
func (s *TaskService) GetHighlight(userID uint, date time.Time) (*db.Task, error) {
	var task db.Task
	if err := s.db.Preload("Tag").Preload("CalendarEvents").
		Where("highlight_key = ?", HighlightKey(userID, date)).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get highlight: %w", err)
	}
	return &task, nil
}

// Rollover 在单个事务内把任务批量顺延到目标日期并累加 RollupCount
// targetDate 为空时取明天零点；包含非本人任务时整批失败
func (s *TaskService) Rollover(userID uint, taskIDs []uint, targetDate *time.Time) ([]db.Task, error) {
	if len(taskIDs) == 0 {
		return nil, fmt.Errorf("%w: task ids are required", ErrTaskInvalidInput)
	}

	target := startOfDay(time.Now().AddDate(0, 0, 1))
	if targetDate != nil {
		target = startOfDay(*targetDate)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&db.Task{}).
			Where("user_id = ? AND id IN ?", userID, taskIDs).
			Count(&owned).Error; err != nil {
			return fmt.Errorf("check ownership: %w", err)
		}
		if owned != int64(len(taskIDs)) {
			return ErrRolloverOwnership
		}

		if err := tx.Model(&db.Task{}).
			Where("user_id = ? AND id IN ?", userID, taskIDs).
			Updates(map[string]interface{}{
				"scheduled_date": target,
				"rollup_count":   gorm.Expr("rollup_count + 1"),
				"updated_at":     time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("rollover tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var tasks []db.Task
	if err := s.db.Preload("Tag").Preload("CalendarEvents").
		Where("user_id = ? AND id IN ?", userID, taskIDs).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("reload tasks: %w", err)
	}
	return tasks, nil
}

// DeadlineGroup 把任务归入紧急程度分组，两套互不混用的策略：
// 设置了截止策略的任务按策略阈值判定逾期，否则按排期日与当前时间的距离分桶
func DeadlineGroup(task db.Task, now time.Time) string {
	if isOverdueByDeadline(task, now) {
		return GroupOverdue
	}

	if task.ScheduledDate != nil && task.DeadlineType == "" {
		daysUntil := daysBetween(now, *task.ScheduledDate)
		switch {
		case daysUntil < 0:
			return GroupOverdue
		case daysUntil <= 3:
			return GroupNext3Days
		case daysUntil <= 7:
			return GroupNextWeek
		case monthsBetween(now, *task.ScheduledDate) <= 1:
			return GroupNextMonth
		case monthsBetween(now, *task.ScheduledDate) <= 3:
			return GroupNextQuarter
		default:
			return GroupNextYear
		}
	}

	if task.DeadlineType == "" {
		return GroupNoDate
	}
	return task.DeadlineType
}

func isOverdueByDeadline(task db.Task, now time.Time) bool {
	if task.DeadlineType == "" || task.DeadlineSetAt == nil || task.Status == db.TaskStatusDone {
		return false
	}

	set := *task.DeadlineSetAt
	switch task.DeadlineType {
	case GroupNext3Days:
		return daysBetween(set, now) > 3
	case GroupNextWeek:
		return daysBetween(set, now) > 7
	case GroupNextMonth:
		return monthsBetween(set, now) > 1
	case GroupNextQuarter:
		return monthsBetween(set, now) > 3
	case GroupNextYear:
		return monthsBetween(set, now) > 12
	default:
		return false
	}
}

// TodayEvents 返回任务关联事件中排在今天的本地来源事件
func TodayEvents(task *db.Task, now time.Time) []db.CalendarEvent {
	dayStart := startOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var events []db.CalendarEvent
	for _, event := range task.CalendarEvents {
		if event.Source != db.EventSourceLocal {
			continue
		}
		if !event.StartTime.Before(dayStart) && event.StartTime.Before(dayEnd) {
			events = append(events, event)
		}
	}
	return events
}

// NeedsRescheduleConfirmation 判断把任务改期到 newDate 是否需要先确认：
// 仅当目标日在未来且任务当天还有本地事件时需要
func NeedsRescheduleConfirmation(task *db.Task, newDate, now time.Time) bool {
	if !startOfDay(newDate).After(startOfDay(now)) {
		return false
	}
	return len(TodayEvents(task, now)) > 0
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return -monthsBetween(to, from)
	}
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	months := (y2-y1)*12 + int(m2) - int(m1)
	if d2 < d1 {
		months--
	}
	return months
}
