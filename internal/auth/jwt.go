package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 桌面端令牌有效期：会话 7 天，OAuth state 5 分钟
const (
	SessionTokenTTL = 7 * 24 * time.Hour
	StateTokenTTL   = 5 * time.Minute
)

// ErrUnauthenticated 表示令牌缺失、签名错误、过期或声明不匹配
// 所有验证失败统一归一到此错误，调用方不区分具体原因
var ErrUnauthenticated = errors.New("unauthenticated")

// SessionClaims 是桌面端会话令牌的负载
type SessionClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// StateClaims 是 OAuth state 令牌的负载，Nonce 防重放
type StateClaims struct {
	Nonce  string `json:"nonce"`
	UserID uint   `json:"uid,omitempty"`
	Return string `json:"return,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer 负责签发与验证 HS256 令牌
type TokenIssuer struct {
	secret        []byte
	issuer        string
	audience      string
	stateAudience string
	now           func() time.Time
}

// NewTokenIssuer 构造 TokenIssuer，now 为空时使用 time.Now
func NewTokenIssuer(secret, issuer, audience, stateAudience string) *TokenIssuer {
	return &TokenIssuer{
		secret:        []byte(secret),
		issuer:        issuer,
		audience:      audience,
		stateAudience: stateAudience,
		now:           time.Now,
	}
}

// WithClock 替换时钟，仅测试使用
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// IssueSession 为用户签发 7 天有效的会话令牌
func (t *TokenIssuer) IssueSession(userID uint, email, name, picture string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(SessionTokenTTL)

	claims := SessionClaims{
		Email:   email,
		Name:    name,
		Picture: picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueState 签发 5 分钟有效的 OAuth state 令牌，可携带发起用户与返回路径
func (t *TokenIssuer) IssueState(userID uint, returnPath string) (string, error) {
	now := t.now()

	claims := StateClaims{
		Nonce:  uuid.New().String(),
		UserID: userID,
		Return: returnPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign state token: %w", err)
	}
	return signed, nil
}

// VerifySession 验证会话令牌并返回负载
func (t *TokenIssuer) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := t.verify(token, claims, t.audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyState 验证 state 令牌并返回负载
func (t *TokenIssuer) VerifyState(token string) (*StateClaims, error) {
	claims := &StateClaims{}
	if err := t.verify(token, claims, t.stateAudience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenIssuer) verify(token string, claims jwt.Claims, audience string) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return ErrUnauthenticated
	}
	return nil
}

// SubjectID 解析会话令牌 subject 中的用户 ID
func (c *SessionClaims) SubjectID() (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(c.Subject, "%d", &id); err != nil || id == 0 {
		return 0, ErrUnauthenticated
	}
	return id, nil
}
