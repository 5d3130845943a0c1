package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/miniorg/internal/db"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SchedulerService 周期性地为所有启用连接的用户执行日历同步
type SchedulerService struct {
	cron *cron.Cron
	db   *gorm.DB
	sync *SyncService
}

// NewSchedulerService 构造 SchedulerService
func NewSchedulerService(gdb *gorm.DB, sync *SyncService) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(),
		db:   gdb,
		sync: sync,
	}
}

// Start 注册同步任务并启动调度器
func (s *SchedulerService) Start(interval time.Duration) error {
	if interval < time.Minute {
		interval = time.Minute
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.runSync); err != nil {
		return fmt.Errorf("schedule sync job: %w", err)
	}

	s.cron.Start()
	log.Printf("calendar sync scheduled every %s", interval)
	return nil
}

// Stop 停止调度器，等待在跑的任务结束
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SchedulerService) runSync() {
	var userIDs []uint
	if err := s.db.Model(&db.CalendarConnection{}).
		Where("is_active = ?", true).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		log.Printf("scheduled sync: list users: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, userID := range userIDs {
		result, err := s.sync.SyncAll(ctx, userID, SyncWindow{})
		if err != nil {
			log.Printf("scheduled sync: user %d: %v", userID, err)
			continue
		}
		if result.SyncedCount < result.TotalCount {
			log.Printf("scheduled sync: user %d: %d/%d connections synced", userID, result.SyncedCount, result.TotalCount)
		}
	}
}
