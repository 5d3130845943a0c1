package auth

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CodeExpiryMinutes 是验证码的有效期（分钟）
const CodeExpiryMinutes = 15

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	symbolPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{}|;:,.<>?]`)
	upperPattern  = regexp.MustCompile(`[A-Z]`)
	lowerPattern  = regexp.MustCompile(`[a-z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
)

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword 校验明文密码与哈希是否匹配
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PasswordValidation 汇总密码强度检查结果，Errors 包含所有未满足的规则
type PasswordValidation struct {
	Valid  bool
	Errors []string
}

// ValidatePassword 检查密码强度：至少 8 位，包含大小写字母、数字和特殊字符
func ValidatePassword(plain string) PasswordValidation {
	var errs []string

	if len(plain) < 8 {
		errs = append(errs, "password must be at least 8 characters")
	}
	if !upperPattern.MatchString(plain) {
		errs = append(errs, "password must contain an uppercase letter")
	}
	if !lowerPattern.MatchString(plain) {
		errs = append(errs, "password must contain a lowercase letter")
	}
	if !digitPattern.MatchString(plain) {
		errs = append(errs, "password must contain a digit")
	}
	if !symbolPattern.MatchString(plain) {
		errs = append(errs, "password must contain a special character")
	}

	return PasswordValidation{Valid: len(errs) == 0, Errors: errs}
}

// ValidateEmail 检查邮箱格式
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// GenerateCode 生成 6 位数字验证码，不足位补零
func GenerateCode() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand 在受支持平台上不会失败
		panic(fmt.Sprintf("read random: %v", err))
	}
	n := binary.BigEndian.Uint32(buf[:]) % 1000000
	return fmt.Sprintf("%06d", n)
}

// CodeExpiry 返回从现在起的验证码过期时间
func CodeExpiry() time.Time {
	return time.Now().Add(CodeExpiryMinutes * time.Minute)
}
