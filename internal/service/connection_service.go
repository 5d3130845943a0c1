package service

import (
	"errors"
	"fmt"

	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
)

// ErrConnectionNotFound 在日历连接不存在或不属于调用者时返回
var ErrConnectionNotFound = errors.New("calendar connection not found")

// ConnectionService 管理外部日历授权记录
type ConnectionService struct {
	db *gorm.DB
}

// NewConnectionService 构造 ConnectionService
func NewConnectionService(gdb *gorm.DB) *ConnectionService {
	return &ConnectionService{db: gdb}
}

// List 返回用户的全部日历连接
func (s *ConnectionService) List(userID uint) ([]db.CalendarConnection, error) {
	var connections []db.CalendarConnection
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at ASC").Find(&connections).Error; err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return connections, nil
}

// Get 返回指定连接，越权视为不存在
func (s *ConnectionService) Get(userID, id uint) (*db.CalendarConnection, error) {
	var connection db.CalendarConnection
	if err := s.db.Where("user_id = ?", userID).First(&connection, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &connection, nil
}

// SetActive 切换连接是否参与导入同步；授权失效走同一路径停用，不做物理删除
func (s *ConnectionService) SetActive(userID, id uint, active bool) (*db.CalendarConnection, error) {
	connection, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	connection.IsActive = active
	if err := s.db.Save(connection).Error; err != nil {
		return nil, fmt.Errorf("update connection: %w", err)
	}
	return connection, nil
}

// SetExportTarget 把连接设为导出目标
// 同一事务内先清除用户已有目标，保证每用户至多一个导出连接
func (s *ConnectionService) SetExportTarget(userID, id uint) (*db.CalendarConnection, error) {
	connection, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.CalendarConnection{}).
			Where("user_id = ? AND is_export_target = ?", userID, true).
			Update("is_export_target", false).Error; err != nil {
			return fmt.Errorf("clear export target: %w", err)
		}
		if err := tx.Model(connection).Update("is_export_target", true).Error; err != nil {
			return fmt.Errorf("set export target: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	connection.IsExportTarget = true
	return connection, nil
}

// ExportTarget 返回用户的导出目标连接，未设置时返回 nil
func (s *ConnectionService) ExportTarget(userID uint) (*db.CalendarConnection, error) {
	var connection db.CalendarConnection
	if err := s.db.Where("user_id = ? AND is_export_target = ?", userID, true).
		First(&connection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get export target: %w", err)
	}
	return &connection, nil
}

// SaveDiscovered 在 OAuth 回调后落库授权发现的日历：
// 已存在的 (provider, calendar_id) 原地刷新令牌，新日历默认 IsActive=false，
// 等待用户在引导页显式启用
func (s *ConnectionService) SaveDiscovered(userID uint, provider string, calendars []calendar.ExternalCalendar, tokens *calendar.TokenSet) (int, error) {
	created := 0

	for _, cal := range calendars {
		var existing db.CalendarConnection
		err := s.db.Where("user_id = ? AND provider = ? AND calendar_id = ?", userID, provider, cal.ID).
			First(&existing).Error

		switch {
		case err == nil:
			expiresAt := tokens.ExpiresAt
			existing.AccessToken = tokens.AccessToken
			if tokens.RefreshToken != "" {
				existing.RefreshToken = tokens.RefreshToken
			}
			existing.ExpiresAt = &expiresAt
			if err := s.db.Save(&existing).Error; err != nil {
				return created, fmt.Errorf("refresh connection %s: %w", cal.ID, err)
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			expiresAt := tokens.ExpiresAt
			connection := db.CalendarConnection{
				UserID:       userID,
				Provider:     provider,
				CalendarID:   cal.ID,
				Name:         cal.Name,
				AccessToken:  tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
				ExpiresAt:    &expiresAt,
			}
			if err := s.db.Create(&connection).Error; err != nil {
				return created, fmt.Errorf("create connection %s: %w", cal.ID, err)
			}
			created++

		default:
			return created, fmt.Errorf("find connection %s: %w", cal.ID, err)
		}
	}

	return created, nil
}
