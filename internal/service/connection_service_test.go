package service

import (
	"errors"
	"testing"
	"time"

	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/db"
)

func TestConnectionExportTargetStaysUnique(t *testing.T) {
	gdb := openTestDB(t, "connection_export")
	svc := NewConnectionService(gdb)

	first := db.CalendarConnection{UserID: 1, Provider: "google", CalendarID: "a", Name: "日历 A"}
	second := db.CalendarConnection{UserID: 1, Provider: "google", CalendarID: "b", Name: "日历 B"}
	if err := gdb.Create(&first).Error; err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}
	if err := gdb.Create(&second).Error; err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}

	if _, err := svc.SetExportTarget(1, first.ID); err != nil {
		t.Fatalf("SetExportTarget returned error: %v", err)
	}
	if _, err := svc.SetExportTarget(1, second.ID); err != nil {
		t.Fatalf("second SetExportTarget returned error: %v", err)
	}

	var targets int64
	gdb.Model(&db.CalendarConnection{}).Where("user_id = ? AND is_export_target = ?", 1, true).Count(&targets)
	if targets != 1 {
		t.Fatalf("expected exactly one export target, got %d", targets)
	}

	target, err := svc.ExportTarget(1)
	if err != nil {
		t.Fatalf("ExportTarget returned error: %v", err)
	}
	if target == nil || target.ID != second.ID {
		t.Fatalf("expected latest connection to win, got %+v", target)
	}
}

func TestConnectionExportTargetMissing(t *testing.T) {
	gdb := openTestDB(t, "connection_no_export")
	svc := NewConnectionService(gdb)

	target, err := svc.ExportTarget(1)
	if err != nil {
		t.Fatalf("ExportTarget returned error: %v", err)
	}
	if target != nil {
		t.Fatal("expected nil when no export target is set")
	}
}

func TestConnectionOwnershipScoped(t *testing.T) {
	gdb := openTestDB(t, "connection_ownership")
	svc := NewConnectionService(gdb)

	foreign := db.CalendarConnection{UserID: 2, Provider: "google", CalendarID: "x", Name: "别人的"}
	if err := gdb.Create(&foreign).Error; err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}

	if _, err := svc.Get(1, foreign.ID); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
	if _, err := svc.SetActive(1, foreign.ID, true); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestSaveDiscoveredCreatesAndRefreshes(t *testing.T) {
	gdb := openTestDB(t, "connection_discover")
	svc := NewConnectionService(gdb)

	tokens := &calendar.TokenSet{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour)}
	calendars := []calendar.ExternalCalendar{
		{ID: "primary", Name: "主日历"},
		{ID: "team", Name: "团队日历"},
	}

	created, err := svc.SaveDiscovered(1, "google", calendars, tokens)
	if err != nil {
		t.Fatalf("SaveDiscovered returned error: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 new connections, got %d", created)
	}

	// 新连接默认不参与同步，等用户显式启用
	connections, err := svc.List(1)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	for _, connection := range connections {
		if connection.IsActive {
			t.Fatalf("expected connection %s to start inactive", connection.CalendarID)
		}
	}

	// 重复授权刷新令牌而不是新建行；空 refresh token 保留旧值
	again := &calendar.TokenSet{AccessToken: "access-2", RefreshToken: "", ExpiresAt: time.Now().Add(2 * time.Hour)}
	created, err = svc.SaveDiscovered(1, "google", calendars[:1], again)
	if err != nil {
		t.Fatalf("second SaveDiscovered returned error: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no new connections, got %d", created)
	}

	var primary db.CalendarConnection
	if err := gdb.Where("user_id = ? AND calendar_id = ?", 1, "primary").First(&primary).Error; err != nil {
		t.Fatalf("failed to reload connection: %v", err)
	}
	if primary.AccessToken != "access-2" {
		t.Fatalf("expected access token refresh, got %s", primary.AccessToken)
	}
	if primary.RefreshToken != "refresh-1" {
		t.Fatalf("expected old refresh token to be kept, got %s", primary.RefreshToken)
	}
}
