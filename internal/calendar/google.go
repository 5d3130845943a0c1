package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleCalendarAPI = "https://www.googleapis.com/calendar/v3"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	calendarScope = "https://www.googleapis.com/auth/calendar"

	requestTimeout = 30 * time.Second
)

// GoogleAdapter 通过 oauth2 与 Calendar v3 REST 接口实现 Adapter
// 事件接口直接走 HTTP，不引入完整的 googleapis 客户端
type GoogleAdapter struct {
	conf        *oauth2.Config
	apiBase     string
	userInfoURL string
	http        *http.Client
}

// NewGoogleAdapter 构造 Google 日历适配器
func NewGoogleAdapter(clientID, clientSecret string) *GoogleAdapter {
	return &GoogleAdapter{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{calendarScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		apiBase:     googleCalendarAPI,
		userInfoURL: googleUserInfoURL,
		http:        &http.Client{Timeout: requestTimeout},
	}
}

// WithEndpoints 重定向 OAuth 与 API 地址，仅测试使用
func (g *GoogleAdapter) WithEndpoints(tokenURL, apiBase string) *GoogleAdapter {
	g.conf.Endpoint.TokenURL = tokenURL
	g.apiBase = apiBase
	g.userInfoURL = apiBase + "/oauth2/userinfo"
	return g
}

// AuthURL 构造授权同意页地址，申请离线访问以获得 refresh token
func (g *GoogleAdapter) AuthURL(redirectURI, state string) string {
	conf := *g.conf
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode 用授权码换取令牌，失败返回 OAuthExchangeError
func (g *GoogleAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	conf := *g.conf
	conf.RedirectURL = redirectURI

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, &OAuthExchangeError{Provider: "google", Err: err}
	}

	return tokenSetFromOAuth(token, ""), nil
}

// RefreshToken 用 refresh token 换取新的访问令牌
// Google 在刷新响应中可能省略 refresh_token，此时沿用旧值
func (g *GoogleAdapter) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	source := g.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("google: refresh token: %w", err)
	}

	return tokenSetFromOAuth(token, refreshToken), nil
}

// UserInfo 读取令牌对应账号的邮箱与昵称
func (g *GoogleAdapter) UserInfo(ctx context.Context, accessToken string) (*UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &TokenExpiredError{Provider: "google"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google: fetch userinfo: status %d: %s", resp.StatusCode, string(raw))
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("google: decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("google: userinfo response missing email")
	}

	return &UserProfile{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

func tokenSetFromOAuth(token *oauth2.Token, fallbackRefresh string) *TokenSet {
	refresh := token.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiry,
	}
}

type googleCalendarList struct {
	Items []struct {
		ID         string `json:"id"`
		Summary    string `json:"summary"`
		AccessRole string `json:"accessRole"`
	} `json:"items"`
}

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id"`
	Summary     string          `json:"summary"`
	Description string          `json:"description,omitempty"`
	ColorID     string          `json:"colorId,omitempty"`
	Status      string          `json:"status"`
	EventType   string          `json:"eventType,omitempty"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
}

type googleEventList struct {
	Items []googleEvent `json:"items"`
}

// ListCalendars 枚举授权可见的日历
func (g *GoogleAdapter) ListCalendars(ctx context.Context, accessToken string) ([]ExternalCalendar, error) {
	var list googleCalendarList
	if err := g.request(ctx, accessToken, http.MethodGet, "/users/me/calendarList", nil, &list); err != nil {
		return nil, err
	}

	calendars := make([]ExternalCalendar, 0, len(list.Items))
	for _, item := range list.Items {
		name := item.Summary
		if name == "" {
			name = "Unnamed Calendar"
		}
		calendars = append(calendars, ExternalCalendar{
			ID:         item.ID,
			Name:       name,
			AccessRole: item.AccessRole,
		})
	}
	return calendars, nil
}

// ListEvents 返回窗口内的事件，过滤已取消、workingLocation 与 outOfOffice 类型
func (g *GoogleAdapter) ListEvents(ctx context.Context, accessToken, calendarID string, start, end time.Time) ([]ExternalEvent, error) {
	query := url.Values{}
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("timeMin", start.UTC().Format(time.RFC3339))
	query.Set("timeMax", end.UTC().Format(time.RFC3339))

	path := fmt.Sprintf("/calendars/%s/events?%s", url.PathEscape(calendarID), query.Encode())

	var list googleEventList
	if err := g.request(ctx, accessToken, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	events := make([]ExternalEvent, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Status == "cancelled" {
			continue
		}
		if item.EventType == "workingLocation" || item.EventType == "outOfOffice" {
			continue
		}
		events = append(events, mapGoogleEvent(item))
	}
	return events, nil
}

// CreateEvent 在远端日历创建事件
func (g *GoogleAdapter) CreateEvent(ctx context.Context, accessToken, calendarID string, input EventInput) (*ExternalEvent, error) {
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))

	var created googleEvent
	if err := g.request(ctx, accessToken, http.MethodPost, path, eventBody(input), &created); err != nil {
		return nil, err
	}

	event := mapGoogleEvent(created)
	return &event, nil
}

// UpdateEvent 以 PATCH 局部更新远端事件
func (g *GoogleAdapter) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, input EventInput) (*ExternalEvent, error) {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))

	var updated googleEvent
	if err := g.request(ctx, accessToken, http.MethodPatch, path, eventBody(input), &updated); err != nil {
		return nil, err
	}

	event := mapGoogleEvent(updated)
	return &event, nil
}

// DeleteEvent 删除远端事件
func (g *GoogleAdapter) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	return g.request(ctx, accessToken, http.MethodDelete, path, nil, nil)
}

func eventBody(input EventInput) map[string]interface{} {
	body := map[string]interface{}{
		"summary": input.Title,
	}
	if input.Description != "" {
		body["description"] = input.Description
	}
	if input.Color != "" {
		body["colorId"] = input.Color
	}
	if input.IsAllDay {
		body["start"] = googleEventTime{Date: input.StartTime.UTC().Format("2006-01-02")}
		body["end"] = googleEventTime{Date: input.EndTime.UTC().Format("2006-01-02")}
	} else {
		body["start"] = googleEventTime{DateTime: input.StartTime.UTC().Format(time.RFC3339)}
		body["end"] = googleEventTime{DateTime: input.EndTime.UTC().Format(time.RFC3339)}
	}
	return body
}

func mapGoogleEvent(item googleEvent) ExternalEvent {
	title := item.Summary
	if title == "" {
		title = "Untitled Event"
	}
	return ExternalEvent{
		ID:          item.ID,
		Title:       title,
		Description: item.Description,
		StartTime:   parseGoogleTime(item.Start),
		EndTime:     parseGoogleTime(item.End),
		IsAllDay:    item.Start.Date != "",
		Color:       item.ColorID,
		Status:      item.Status,
	}
}

func parseGoogleTime(t googleEventTime) time.Time {
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (g *GoogleAdapter) request(ctx context.Context, accessToken, method, path string, body interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("google: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("google: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &TokenExpiredError{Provider: "google"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("google: %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("google: decode response: %w", err)
	}
	return nil
}
