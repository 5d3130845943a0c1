package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const resendAPIURL = "https://api.resend.com/emails"

// Mailer 发送验证码邮件
type Mailer interface {
	SendVerificationCode(email, code string) error
	SendPasswordResetCode(email, code string) error
}

// ResendMailer 通过 Resend HTTP API 发信
type ResendMailer struct {
	apiKey string
	from   string
	apiURL string
	http   *http.Client
}

// NewResendMailer 构造 ResendMailer
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		apiKey: apiKey,
		from:   from,
		apiURL: resendAPIURL,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithAPIURL 覆盖 API 地址，测试用
func (m *ResendMailer) WithAPIURL(url string) *ResendMailer {
	m.apiURL = url
	return m
}

// SendVerificationCode 发送注册验证码
func (m *ResendMailer) SendVerificationCode(email, code string) error {
	return m.send(email, "Verify your email", codeEmailHTML("Verify your email",
		"Use the code below to verify your email address. It expires in 15 minutes.", code))
}

// SendPasswordResetCode 发送找回密码验证码
func (m *ResendMailer) SendPasswordResetCode(email, code string) error {
	return m.send(email, "Reset your password", codeEmailHTML("Reset your password",
		"Use the code below to reset your password. It expires in 15 minutes. If you did not request this, you can ignore this email.", code))
}

func (m *ResendMailer) send(to, subject, html string) error {
	payload := map[string]interface{}{
		"from":    m.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

func codeEmailHTML(title, intro, code string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px;margin:0 auto;padding:24px">
  <h2 style="margin:0 0 12px">%s</h2>
  <p style="color:#555;line-height:1.5">%s</p>
  <div style="font-size:32px;letter-spacing:8px;font-weight:bold;text-align:center;padding:16px;background:#f4f4f5;border-radius:8px">%s</div>
</div>`, title, intro, code)
}

// LogMailer 在未配置发信服务时把验证码打到日志，仅供本地开发
type LogMailer struct{}

// SendVerificationCode 记录注册验证码
func (LogMailer) SendVerificationCode(email, code string) error {
	log.Printf("verification code for %s: %s", email, code)
	return nil
}

// SendPasswordResetCode 记录找回验证码
func (LogMailer) SendPasswordResetCode(email, code string) error {
	log.Printf("password reset code for %s: %s", email, code)
	return nil
}
