package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RitualService 维护每用户每天一条的计划记录
type RitualService struct {
	db *gorm.DB
}

// RitualInput 定义写入某天计划时的可配置字段
// Timeline 为有序任务 ID 列表，序列化为 JSON 字符串落库
type RitualInput struct {
	HighlightID *uint
	Timeline    []uint
}

// NewRitualService 构造 RitualService
func NewRitualService(gdb *gorm.DB) *RitualService {
	return &RitualService{db: gdb}
}

// Get 返回某天的计划，不存在时返回 nil
func (s *RitualService) Get(userID uint, date time.Time) (*db.DailyRitual, error) {
	var ritual db.DailyRitual
	if err := s.db.Preload("Highlight").
		Where("user_id = ? AND date = ?", userID, startOfDay(date)).
		First(&ritual).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get daily ritual: %w", err)
	}
	return &ritual, nil
}

// Upsert 原子地创建或更新某天的计划，唯一索引落在 (user_id, date)
func (s *RitualService) Upsert(userID uint, date time.Time, input RitualInput) (*db.DailyRitual, error) {
	timeline := ""
	if input.Timeline != nil {
		encoded, err := json.Marshal(input.Timeline)
		if err != nil {
			return nil, fmt.Errorf("encode timeline: %w", err)
		}
		timeline = string(encoded)
	}

	ritual := db.DailyRitual{
		UserID:      userID,
		Date:        startOfDay(date),
		HighlightID: input.HighlightID,
		Timeline:    timeline,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"highlight_id", "timeline", "updated_at"}),
	}).Create(&ritual).Error; err != nil {
		return nil, fmt.Errorf("upsert daily ritual: %w", err)
	}

	return s.Get(userID, date)
}

// TimelineIDs 解析计划中的有序任务 ID 列表
func TimelineIDs(ritual *db.DailyRitual) ([]uint, error) {
	if ritual == nil || ritual.Timeline == "" {
		return nil, nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(ritual.Timeline), &ids); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return ids, nil
}
