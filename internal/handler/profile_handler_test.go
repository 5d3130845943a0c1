package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSettingsDefaultAndUpdate(t *testing.T) {
	api, r := newTestServer(t, "settings")
	_, token := seedUser(t, api, "settings@example.com")

	// 未设置过时回落到 separate
	req := httptest.NewRequest(http.MethodGet, "/api/user/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get settings failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["ritualMode"] != "separate" {
		t.Fatalf("expected separate fallback, got %v", body)
	}

	w = authedJSON(t, r, http.MethodPatch, "/api/user/settings", token, `{"ritualMode":"morning"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update settings failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["ritualMode"] != "morning" {
		t.Fatalf("expected morning, got %v", body)
	}

	// 更新后的偏好可以读回
	req = httptest.NewRequest(http.MethodGet, "/api/user/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if body := decodeBody(t, w); body["ritualMode"] != "morning" {
		t.Fatalf("expected persisted morning, got %v", body)
	}
}

func TestSettingsRejectsUnknownMode(t *testing.T) {
	api, r := newTestServer(t, "settings_invalid")
	_, token := seedUser(t, api, "settings2@example.com")

	w := authedJSON(t, r, http.MethodPatch, "/api/user/settings", token, `{"ritualMode":"midnight"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != "INVALID_RITUAL_MODE" {
		t.Fatalf("expected INVALID_RITUAL_MODE, got %v", body)
	}

	w = authedJSON(t, r, http.MethodPatch, "/api/user/settings", token, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ritualMode, got %d", w.Code)
	}
}
