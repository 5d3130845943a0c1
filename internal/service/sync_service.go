package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 默认同步窗口：当前时间前后各 30 天
const defaultSyncSpanDays = 30

// 访问令牌剩余有效期低于该值时先刷新再调用
const tokenRefreshLeeway = 5 * time.Minute

var (
	// ErrNoAdapter 当连接的提供商没有对应适配器时返回
	ErrNoAdapter = errors.New("no adapter for provider")
	// ErrNoRefreshToken 当令牌过期且没有 refresh token 可用时返回
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrEventNotExported 当事件没有对应的远端副本时返回
	ErrEventNotExported = errors.New("event is not exported")
)

// SyncWindow 指定同步的时间范围，零值时取默认窗口
type SyncWindow struct {
	Start *time.Time
	End   *time.Time
}

// ConnectionSyncResult 记录单个连接的同步结果
type ConnectionSyncResult struct {
	ConnectionID uint   `json:"connectionId"`
	Name         string `json:"connectionName"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// SyncResult 汇总一次全量同步
type SyncResult struct {
	SyncedCount int                    `json:"syncedCount"`
	TotalCount  int                    `json:"totalCount"`
	Results     []ConnectionSyncResult `json:"results"`
}

// SyncService 把远端日历事件对账进本地存储
// 连接之间相互隔离：单个连接失败只记入结果，不中断其余连接
type SyncService struct {
	db       *gorm.DB
	adapters map[string]calendar.Adapter
}

// NewSyncService 构造 SyncService
func NewSyncService(gdb *gorm.DB, adapters map[string]calendar.Adapter) *SyncService {
	return &SyncService{db: gdb, adapters: adapters}
}

// Adapter 返回指定提供商的适配器
func (s *SyncService) Adapter(provider string) (calendar.Adapter, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, provider)
	}
	return adapter, nil
}

// SyncAll 依次同步用户所有启用的连接
// 本层不做自动重试，调用方（界面上的立即同步）可重新发起
func (s *SyncService) SyncAll(ctx context.Context, userID uint, window SyncWindow) (*SyncResult, error) {
	var connections []db.CalendarConnection
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Find(&connections).Error; err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}

	result := &SyncResult{TotalCount: len(connections)}

	for i := range connections {
		connection := &connections[i]
		entry := ConnectionSyncResult{ConnectionID: connection.ID, Name: connection.Name}

		if err := s.syncConnection(ctx, connection, window); err != nil {
			log.Printf("sync failed for connection %d: %v", connection.ID, err)
			entry.Status = "error"
			entry.Error = err.Error()
		} else {
			entry.Status = "success"
			result.SyncedCount++
		}

		result.Results = append(result.Results, entry)
	}

	return result, nil
}

func (s *SyncService) syncConnection(ctx context.Context, connection *db.CalendarConnection, window SyncWindow) error {
	adapter, err := s.Adapter(connection.Provider)
	if err != nil {
		return err
	}

	start := time.Now().AddDate(0, 0, -defaultSyncSpanDays)
	end := time.Now().AddDate(0, 0, defaultSyncSpanDays)
	if window.Start != nil {
		start = *window.Start
	}
	if window.End != nil {
		end = *window.End
	}

	accessToken, err := s.ensureValidToken(ctx, adapter, connection)
	if err != nil {
		return err
	}

	events, err := adapter.ListEvents(ctx, accessToken, connection.CalendarID, start, end)
	if err != nil {
		var expired *calendar.TokenExpiredError
		if !errors.As(err, &expired) {
			return err
		}

		// 提供商报告令牌失效：刷新后重试一次，再失败即放弃，
		// 避免把真正作废的 refresh token 变成无限循环
		accessToken, err = s.refreshAndPersist(ctx, adapter, connection)
		if err != nil {
			return err
		}
		events, err = adapter.ListEvents(ctx, accessToken, connection.CalendarID, start, end)
		if err != nil {
			return err
		}
	}

	for _, event := range events {
		if err := s.upsertImportedEvent(connection, event); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := s.db.Model(connection).Update("last_sync_at", now).Error; err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}
	connection.LastSyncAt = &now

	return nil
}

// upsertImportedEvent 以 (connection_id, external_id) 为键幂等写入远端事件
// 已链接到任务的事件本地优先，远端内容不覆盖
func (s *SyncService) upsertImportedEvent(connection *db.CalendarConnection, event calendar.ExternalEvent) error {
	var existing db.CalendarEvent
	err := s.db.Where("connection_id = ? AND external_id = ?", connection.ID, event.ID).
		First(&existing).Error

	switch {
	case err == nil:
		if existing.TaskID != nil {
			return nil
		}
		now := time.Now()
		existing.Title = event.Title
		existing.Description = event.Description
		existing.StartTime = event.StartTime
		existing.EndTime = event.EndTime
		existing.IsAllDay = event.IsAllDay
		existing.Color = event.Color
		existing.LastSyncedAt = &now
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("update imported event %s: %w", event.ID, err)
		}
		return nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		now := time.Now()
		connectionID := connection.ID
		record := db.CalendarEvent{
			UserID:       connection.UserID,
			Title:        event.Title,
			Description:  event.Description,
			StartTime:    event.StartTime,
			EndTime:      event.EndTime,
			Source:       connection.Provider,
			ExternalID:   event.ID,
			ConnectionID: &connectionID,
			IsAllDay:     event.IsAllDay,
			Color:        event.Color,
			LastSyncedAt: &now,
		}
		// 并发同步同一连接时唯一索引可能先被写入，冲突退化为更新
		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description", "start_time", "end_time", "is_all_day", "color", "last_synced_at", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("create imported event %s: %w", event.ID, err)
		}
		return nil

	default:
		return fmt.Errorf("find imported event %s: %w", event.ID, err)
	}
}

// ensureValidToken 返回可用的访问令牌，临近过期时先刷新并落库
func (s *SyncService) ensureValidToken(ctx context.Context, adapter calendar.Adapter, connection *db.CalendarConnection) (string, error) {
	if connection.AccessToken == "" {
		return "", ErrNoRefreshToken
	}

	if connection.ExpiresAt == nil || connection.ExpiresAt.After(time.Now().Add(tokenRefreshLeeway)) {
		return connection.AccessToken, nil
	}

	return s.refreshAndPersist(ctx, adapter, connection)
}

func (s *SyncService) refreshAndPersist(ctx context.Context, adapter calendar.Adapter, connection *db.CalendarConnection) (string, error) {
	if connection.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokens, err := adapter.RefreshToken(ctx, connection.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	expiresAt := tokens.ExpiresAt
	connection.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		connection.RefreshToken = tokens.RefreshToken
	}
	connection.ExpiresAt = &expiresAt

	if err := s.db.Model(connection).Updates(map[string]interface{}{
		"access_token":  connection.AccessToken,
		"refresh_token": connection.RefreshToken,
		"expires_at":    connection.ExpiresAt,
	}).Error; err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	return connection.AccessToken, nil
}

// ExportEvent 把本地事件写到用户的导出目标日历并回填 external_id
func (s *SyncService) ExportEvent(ctx context.Context, connection *db.CalendarConnection, event *db.CalendarEvent) error {
	adapter, err := s.Adapter(connection.Provider)
	if err != nil {
		return err
	}

	accessToken, err := s.ensureValidToken(ctx, adapter, connection)
	if err != nil {
		return err
	}

	created, err := adapter.CreateEvent(ctx, accessToken, connection.CalendarID, calendar.EventInput{
		Title:       event.Title,
		Description: event.Description,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		IsAllDay:    event.IsAllDay,
		Color:       event.Color,
	})
	if err != nil {
		return fmt.Errorf("create remote event: %w", err)
	}

	now := time.Now()
	connectionID := connection.ID
	event.ExternalID = created.ID
	event.ConnectionID = &connectionID
	event.LastSyncedAt = &now

	if err := s.db.Model(event).Updates(map[string]interface{}{
		"external_id":    event.ExternalID,
		"connection_id":  event.ConnectionID,
		"last_synced_at": event.LastSyncedAt,
	}).Error; err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// UpdateExportedEvent 把本地事件的改动推送到其远端副本
func (s *SyncService) UpdateExportedEvent(ctx context.Context, connection *db.CalendarConnection, event *db.CalendarEvent) error {
	if event.ExternalID == "" {
		return ErrEventNotExported
	}

	adapter, err := s.Adapter(connection.Provider)
	if err != nil {
		return err
	}

	accessToken, err := s.ensureValidToken(ctx, adapter, connection)
	if err != nil {
		return err
	}

	if _, err := adapter.UpdateEvent(ctx, accessToken, connection.CalendarID, event.ExternalID, calendar.EventInput{
		Title:       event.Title,
		Description: event.Description,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		IsAllDay:    event.IsAllDay,
		Color:       event.Color,
	}); err != nil {
		return fmt.Errorf("update remote event: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(event).Update("last_synced_at", now).Error; err != nil {
		return fmt.Errorf("record export update: %w", err)
	}
	return nil
}

// DeleteExportedEvent 删除事件的远端副本；远端删除失败只记录，本地删除照常进行
func (s *SyncService) DeleteExportedEvent(ctx context.Context, connection *db.CalendarConnection, event *db.CalendarEvent) {
	if event.ExternalID == "" {
		return
	}

	adapter, err := s.Adapter(connection.Provider)
	if err != nil {
		log.Printf("delete exported event %d: %v", event.ID, err)
		return
	}

	accessToken, err := s.ensureValidToken(ctx, adapter, connection)
	if err != nil {
		log.Printf("delete exported event %d: %v", event.ID, err)
		return
	}

	if err := adapter.DeleteEvent(ctx, accessToken, connection.CalendarID, event.ExternalID); err != nil {
		log.Printf("delete exported event %d: %v", event.ID, err)
	}
}
