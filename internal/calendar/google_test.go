package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestListEventsFiltersAndMaps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/calendars/primary/events") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("singleEvents") != "true" {
			t.Error("expected singleEvents=true")
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"e1","summary":"站会","status":"confirmed","start":{"dateTime":"2026-09-01T09:00:00Z"},"end":{"dateTime":"2026-09-01T09:30:00Z"}},
			{"id":"e2","summary":"取消的会","status":"cancelled","start":{"dateTime":"2026-09-01T10:00:00Z"},"end":{"dateTime":"2026-09-01T11:00:00Z"}},
			{"id":"e3","summary":"在家办公","status":"confirmed","eventType":"workingLocation","start":{"date":"2026-09-01"},"end":{"date":"2026-09-02"}},
			{"id":"e4","summary":"","status":"confirmed","start":{"date":"2026-09-03"},"end":{"date":"2026-09-04"}}
		]}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	events, err := adapter.ListEvents(context.Background(), "token-1", "primary",
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}

	// 取消与 workingLocation 的条目被过滤
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "e1" || events[0].IsAllDay {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Title != "Untitled Event" {
		t.Fatalf("expected untitled fallback, got %q", events[1].Title)
	}
	if !events[1].IsAllDay {
		t.Fatal("expected date-only start to map to all-day")
	}
}

func TestListCalendarsNamesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/calendarList" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"primary","summary":"我的日历","accessRole":"owner"},
			{"id":"shared","summary":"","accessRole":"reader"}
		]}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	calendars, err := adapter.ListCalendars(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("ListCalendars returned error: %v", err)
	}
	if len(calendars) != 2 {
		t.Fatalf("expected 2 calendars, got %d", len(calendars))
	}
	if calendars[1].Name != "Unnamed Calendar" {
		t.Fatalf("expected name fallback, got %q", calendars[1].Name)
	}
}

func TestRequestMapsUnauthorizedToTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	_, err := adapter.ListCalendars(context.Background(), "stale")
	var expired *TokenExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected TokenExpiredError, got %v", err)
	}
}

func TestRefreshTokenKeepsOldRefreshValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		// Google 的刷新响应通常不回传 refresh_token
		w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	tokens, err := adapter.RefreshToken(context.Background(), "keep-me")
	if err != nil {
		t.Fatalf("RefreshToken returned error: %v", err)
	}
	if tokens.AccessToken != "fresh" {
		t.Fatalf("unexpected access token: %s", tokens.AccessToken)
	}
	if tokens.RefreshToken != "keep-me" {
		t.Fatalf("expected old refresh token to be kept, got %s", tokens.RefreshToken)
	}
	if !tokens.ExpiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestExchangeCodeWrapsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	_, err := adapter.ExchangeCode(context.Background(), "used-code", "http://localhost/callback")
	var exchange *OAuthExchangeError
	if !errors.As(err, &exchange) {
		t.Fatalf("expected OAuthExchangeError, got %v", err)
	}
}

func TestUserInfoMapsProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/userinfo" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email":"zhang@example.com","name":"张三","picture":"https://example.com/a.png"}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	profile, err := adapter.UserInfo(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("UserInfo returned error: %v", err)
	}
	if profile.Email != "zhang@example.com" || profile.Name != "张三" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestUserInfoRejectsMissingEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"匿名"}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	if _, err := adapter.UserInfo(context.Background(), "token-1"); err == nil {
		t.Fatal("expected error for response without email")
	}
}

func TestUserInfoMapsUnauthorizedToTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	_, err := adapter.UserInfo(context.Background(), "stale")
	var expired *TokenExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected TokenExpiredError, got %v", err)
	}
}

func TestEventBodyAllDayUsesDateOnly(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"new-1","summary":"整天","status":"confirmed","start":{"date":"2026-09-05"},"end":{"date":"2026-09-06"}}`))
	}))
	defer server.Close()

	adapter := NewGoogleAdapter("id", "secret").WithEndpoints(server.URL+"/token", server.URL)

	created, err := adapter.CreateEvent(context.Background(), "token-1", "primary", EventInput{
		Title:     "整天",
		StartTime: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC),
		IsAllDay:  true,
	})
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if created.ID != "new-1" {
		t.Fatalf("unexpected event id: %s", created.ID)
	}

	start, _ := captured["start"].(map[string]interface{})
	if start["date"] != "2026-09-05" {
		t.Fatalf("expected date-only start, got %v", start)
	}
	if _, hasDateTime := start["dateTime"]; hasDateTime {
		t.Fatal("all-day events must not carry dateTime")
	}
}
