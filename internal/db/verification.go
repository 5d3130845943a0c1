package db

import (
	"time"

	"gorm.io/gorm"
)

// 验证码类型
const (
	VerificationTypeEmail         = "email"
	VerificationTypePasswordReset = "password_reset"
)

// VerificationToken 保存一次性验证码
// 同一 (identifier, type) 只保留最新一条，写入前先删除旧记录
type VerificationToken struct {
	gorm.Model
	Identifier string `gorm:"index:idx_verification_key"`
	Token      string
	Type       string `gorm:"index:idx_verification_key"`
	ExpiresAt  time.Time
}
