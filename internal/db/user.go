package db

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了用户模型
// Password 为空表示仅通过 Google 登录的账号；GoogleLinked 标记是否绑定过 Google
// EmailVerifiedAt 为空时邮箱尚未通过验证码确认
// RitualMode 记录每日计划的展示偏好，空值按 separate 处理
type User struct {
	gorm.Model
	Email           string `gorm:"uniqueIndex;not null"`
	Password        string
	Name            string
	Image           string
	GoogleLinked    bool
	EmailVerifiedAt *time.Time
	RitualMode      string
}
