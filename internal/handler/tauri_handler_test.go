package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/db"
)

// identityAdapter 实现日历适配器与身份能力，登录流程测试用
type identityAdapter struct {
	code        string
	redirectURI string
	profile     calendar.UserProfile
	exchangeErr error
}

func (f *identityAdapter) AuthURL(redirectURI, state string) string { return "" }

func (f *identityAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) (*calendar.TokenSet, error) {
	f.code, f.redirectURI = code, redirectURI
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &calendar.TokenSet{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *identityAdapter) RefreshToken(ctx context.Context, refreshToken string) (*calendar.TokenSet, error) {
	return nil, nil
}

func (f *identityAdapter) ListCalendars(ctx context.Context, accessToken string) ([]calendar.ExternalCalendar, error) {
	return nil, nil
}

func (f *identityAdapter) ListEvents(ctx context.Context, accessToken, calendarID string, start, end time.Time) ([]calendar.ExternalEvent, error) {
	return nil, nil
}

func (f *identityAdapter) CreateEvent(ctx context.Context, accessToken, calendarID string, input calendar.EventInput) (*calendar.ExternalEvent, error) {
	return nil, nil
}

func (f *identityAdapter) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, input calendar.EventInput) (*calendar.ExternalEvent, error) {
	return nil, nil
}

func (f *identityAdapter) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	return nil
}

func (f *identityAdapter) UserInfo(ctx context.Context, accessToken string) (*calendar.UserProfile, error) {
	return &f.profile, nil
}

func TestTauriGoogleTokenCreatesAccount(t *testing.T) {
	adapter := &identityAdapter{profile: calendar.UserProfile{
		Email:   "gg@example.com",
		Name:    "GG",
		Picture: "https://example.com/gg.png",
	}}
	api, r := newTestServerWithGoogle(t, "tauri_google", adapter)

	w := postJSON(t, r, "/api/auth/tauri/token", `{"code":"auth-code-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("google sign-in failed: %d %s", w.Code, w.Body.String())
	}
	if adapter.code != "auth-code-1" {
		t.Fatalf("unexpected exchanged code: %q", adapter.code)
	}
	if adapter.redirectURI != "tauri://localhost" {
		t.Fatalf("expected default redirect, got %q", adapter.redirectURI)
	}

	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response, got %v", body)
	}
	user, _ := body["user"].(map[string]interface{})
	if user["email"] != "gg@example.com" {
		t.Fatalf("unexpected user: %v", user)
	}

	// 自动建号的账号邮箱视为已验证，且标记了 Google 绑定
	var created db.User
	if err := api.db.Where("email = ?", "gg@example.com").First(&created).Error; err != nil {
		t.Fatalf("failed to load created user: %v", err)
	}
	if created.EmailVerifiedAt == nil || !created.GoogleLinked {
		t.Fatalf("expected verified google-linked account, got %+v", created)
	}

	// 令牌可直接访问受保护路由
	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with issued token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTauriGoogleTokenLinksExistingAccount(t *testing.T) {
	adapter := &identityAdapter{profile: calendar.UserProfile{Email: "linked@example.com", Name: "Linked"}}
	api, r := newTestServerWithGoogle(t, "tauri_google_link", adapter)
	seeded, _ := seedUser(t, api, "linked@example.com")

	w := postJSON(t, r, "/api/auth/tauri/token", `{"code":"auth-code-2","redirect_uri":"http://localhost:1420"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("google sign-in failed: %d %s", w.Code, w.Body.String())
	}
	if adapter.redirectURI != "http://localhost:1420" {
		t.Fatalf("expected explicit redirect to pass through, got %q", adapter.redirectURI)
	}

	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]interface{})
	if uint(user["id"].(float64)) != seeded.ID {
		t.Fatalf("expected existing account %d, got %v", seeded.ID, user)
	}

	var reloaded db.User
	if err := api.db.First(&reloaded, seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if !reloaded.GoogleLinked {
		t.Fatal("expected account to be marked google linked")
	}
}

func TestTauriGoogleTokenRejectsBadCode(t *testing.T) {
	adapter := &identityAdapter{exchangeErr: &calendar.OAuthExchangeError{Provider: "google"}}
	_, r := newTestServerWithGoogle(t, "tauri_google_bad", adapter)

	w := postJSON(t, r, "/api/auth/tauri/token", `{"code":"used-code"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad code, got %d", w.Code)
	}
}

func TestTauriGoogleTokenUnavailableWithoutAdapter(t *testing.T) {
	_, r := newTestServer(t, "tauri_google_off")

	w := postJSON(t, r, "/api/auth/tauri/token", `{"code":"any"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without adapter, got %d", w.Code)
	}
}
