package calendar

import (
	"context"
	"fmt"
	"time"
)

// TokenSet 是一次授权换取的令牌集合
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ExternalCalendar 描述授权可见的一个远端日历
type ExternalCalendar struct {
	ID         string
	Name       string
	AccessRole string
}

// ExternalEvent 描述远端日历中的一个事件
type ExternalEvent struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    bool
	Color       string
	Status      string
}

// EventInput 描述向远端创建/更新事件时的可写字段
type EventInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    bool
	Color       string
}

// UserProfile 是提供商返回的账号基本信息
type UserProfile struct {
	Email   string
	Name    string
	Picture string
}

// IdentityProvider 供登录流程使用，用授权码换取令牌并读取账号信息
// 与 Adapter 分开声明，同步引擎不依赖身份能力
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (*UserProfile, error)
}

// Adapter 屏蔽具体日历提供商的 OAuth 与事件读写细节
// 同步引擎只依赖此接口，目前仅有 google 实现
type Adapter interface {
	AuthURL(redirectURI, state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
	ListCalendars(ctx context.Context, accessToken string) ([]ExternalCalendar, error)
	ListEvents(ctx context.Context, accessToken, calendarID string, start, end time.Time) ([]ExternalEvent, error)
	CreateEvent(ctx context.Context, accessToken, calendarID string, input EventInput) (*ExternalEvent, error)
	UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, input EventInput) (*ExternalEvent, error)
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}

// OAuthExchangeError 表示提供商拒绝了授权码（已过期、已使用或 redirect 不匹配）
type OAuthExchangeError struct {
	Provider string
	Err      error
}

func (e *OAuthExchangeError) Error() string {
	return fmt.Sprintf("%s: oauth code exchange failed: %v", e.Provider, e.Err)
}

func (e *OAuthExchangeError) Unwrap() error {
	return e.Err
}

// TokenExpiredError 表示提供商报告访问令牌已失效，调用方可刷新后重试一次
type TokenExpiredError struct {
	Provider string
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("%s: access token expired", e.Provider)
}
