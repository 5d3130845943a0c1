package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/miniorg/internal/db"
)

func authedJSON(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTaskCreateAndGet(t *testing.T) {
	api, r := newTestServer(t, "task_create")
	_, token := seedUser(t, api, "tasks@example.com")

	w := authedJSON(t, r, http.MethodPost, "/api/tasks", token,
		`{"title":"写周报","status":"planned","duration":30}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task failed: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	task, _ := body["task"].(map[string]interface{})
	if task["title"] != "写周报" {
		t.Fatalf("unexpected task body: %v", body)
	}
	id := uint(task["id"].(float64))

	w = authedJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get task failed: %d %s", w.Code, w.Body.String())
	}

	// 别人的令牌看不到这条任务
	_, otherToken := seedUser(t, api, "other@example.com")
	w = authedJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), otherToken, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign caller, got %d", w.Code)
	}
}

func TestTaskCreateRequiresTitle(t *testing.T) {
	api, r := newTestServer(t, "task_title")
	_, token := seedUser(t, api, "title@example.com")

	w := authedJSON(t, r, http.MethodPost, "/api/tasks", token, `{"title":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty title, got %d", w.Code)
	}
}

func TestTaskRescheduleNeedsConfirmation(t *testing.T) {
	api, r := newTestServer(t, "task_reschedule")
	user, token := seedUser(t, api, "reschedule@example.com")

	today := time.Now()
	w := authedJSON(t, r, http.MethodPost, "/api/tasks", token,
		fmt.Sprintf(`{"title":"准备评审","status":"planned","scheduledDate":%q}`, today.Format(time.RFC3339)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create task failed: %d %s", w.Code, w.Body.String())
	}
	task, _ := decodeBody(t, w)["task"].(map[string]interface{})
	taskID := uint(task["id"].(float64))

	// 今天有一条关联的本地事件
	event := db.CalendarEvent{
		UserID:    user.ID,
		Title:     "评审时段",
		StartTime: today,
		EndTime:   today.Add(time.Hour),
		Source:    db.EventSourceLocal,
		TaskID:    &taskID,
	}
	if err := api.db.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	// 不带 eventAction 的改期先收到 409
	future := today.AddDate(0, 0, 3).Format(time.RFC3339)
	w = authedJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", taskID), token,
		fmt.Sprintf(`{"title":"准备评审","scheduledDate":%q}`, future))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["code"] != "confirmation_required" {
		t.Fatalf("expected confirmation_required, got %v", body)
	}
	if events, ok := body["events"].([]interface{}); !ok || len(events) != 1 {
		t.Fatalf("expected affected events in payload, got %v", body["events"])
	}

	// 带 eventAction=delete 重试成功，本地事件被清掉
	w = authedJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", taskID), token,
		fmt.Sprintf(`{"title":"准备评审","scheduledDate":%q,"eventAction":"delete"}`, future))
	if w.Code != http.StatusOK {
		t.Fatalf("confirmed reschedule failed: %d %s", w.Code, w.Body.String())
	}

	var remaining int64
	if err := api.db.Model(&db.CalendarEvent{}).Where("task_id = ?", taskID).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected linked events to be deleted, got %d", remaining)
	}
}

func TestHighlightEndpoints(t *testing.T) {
	api, r := newTestServer(t, "task_highlight")
	_, token := seedUser(t, api, "highlight@example.com")

	day := "2026-09-02"
	w := authedJSON(t, r, http.MethodGet, "/api/tasks/highlight?date="+day, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get highlight failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["highlight"] != nil {
		t.Fatalf("expected null highlight for empty day, got %v", body)
	}

	w = authedJSON(t, r, http.MethodPost, "/api/tasks/highlight", token,
		fmt.Sprintf(`{"title":"发布新版本","date":%q}`, day))
	if w.Code != http.StatusOK {
		t.Fatalf("set highlight failed: %d %s", w.Code, w.Body.String())
	}

	// 同一天再次设置只改标题，不新增任务
	w = authedJSON(t, r, http.MethodPost, "/api/tasks/highlight", token,
		fmt.Sprintf(`{"title":"发布并回归","date":%q}`, day))
	if w.Code != http.StatusOK {
		t.Fatalf("second set highlight failed: %d %s", w.Code, w.Body.String())
	}

	w = authedJSON(t, r, http.MethodGet, "/api/tasks/highlight?date="+day, token, "")
	highlight, _ := decodeBody(t, w)["highlight"].(map[string]interface{})
	if highlight == nil || highlight["title"] != "发布并回归" {
		t.Fatalf("unexpected highlight: %v", highlight)
	}

	var count int64
	if err := api.db.Model(&db.Task{}).Where("type = ?", db.TaskTypeHighlight).Count(&count).Error; err != nil {
		t.Fatalf("failed to count highlights: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single highlight row, got %d", count)
	}
}
