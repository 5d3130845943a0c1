package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/miniorg/internal/auth"
	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
)

// AccountError 携带给前端的机器可读错误码
type AccountError struct {
	Code    string
	Message string
}

func (e *AccountError) Error() string {
	return e.Message
}

var (
	// ErrEmailExists 邮箱已被凭据账号占用
	ErrEmailExists = &AccountError{Code: "EMAIL_EXISTS", Message: "an account with this email already exists"}
	// ErrUseGoogle 该邮箱是 Google 登录账号，没有可用密码
	ErrUseGoogle = &AccountError{Code: "USE_GOOGLE", Message: "this account uses Google sign-in"}
	// ErrInvalidCode 验证码不匹配
	ErrInvalidCode = &AccountError{Code: "INVALID_CODE", Message: "invalid verification code"}
	// ErrCodeExpired 验证码已过期
	ErrCodeExpired = &AccountError{Code: "CODE_EXPIRED", Message: "verification code has expired"}
	// ErrInvalidCredentials 邮箱或密码错误；两种情况统一返回，避免账号枚举
	ErrInvalidCredentials = &AccountError{Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	// ErrEmailNotVerified 账号存在但邮箱尚未完成验证
	ErrEmailNotVerified = &AccountError{Code: "EMAIL_NOT_VERIFIED", Message: "email address is not verified"}
	// ErrInvalidEmail 邮箱格式不合法
	ErrInvalidEmail = &AccountError{Code: "INVALID_EMAIL", Message: "invalid email address"}
	// ErrInvalidRitualMode 计划展示偏好取值不在枚举内
	ErrInvalidRitualMode = &AccountError{Code: "INVALID_RITUAL_MODE", Message: "ritualMode must be separate, morning or evening"}
)

// 每日计划的展示偏好取值
const (
	RitualModeSeparate = "separate"
	RitualModeMorning  = "morning"
	RitualModeEvening  = "evening"
)

// WeakPasswordError 列出未满足的全部密码规则
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	return "password does not meet requirements"
}

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// AccountService 处理注册、登录与凭据找回
type AccountService struct {
	db     *gorm.DB
	mailer Mailer
}

// NewAccountService 构造 AccountService
func NewAccountService(gdb *gorm.DB, mailer Mailer) *AccountService {
	return &AccountService{db: gdb, mailer: mailer}
}

// GetUser 按 ID 取用户
func (s *AccountService) GetUser(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail 按邮箱取用户，不存在时返回 ErrUserNotFound
func (s *AccountService) GetUserByEmail(email string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// Signup 创建凭据账号并发出邮箱验证码
// 同邮箱的 Google 账号返回 USE_GOOGLE，已验证的凭据账号返回 EMAIL_EXISTS
func (s *AccountService) Signup(email, password, name string) (*db.User, error) {
	if !auth.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if validation := auth.ValidatePassword(password); !validation.Valid {
		return nil, &WeakPasswordError{Violations: validation.Errors}
	}

	existing, err := s.GetUserByEmail(email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Password == "" {
			return nil, ErrUseGoogle
		}
		// 未验证的老账号允许重新注册，覆盖口令并重发验证码
		if existing.EmailVerifiedAt != nil {
			return nil, ErrEmailExists
		}
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := existing
	if user == nil {
		user = &db.User{Email: email}
	}
	user.Password = hashed
	user.Name = name

	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	if err := s.issueCode(email, db.VerificationTypeEmail); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyEmail 校验注册验证码；过期与使用过的码都会被删除，单次有效
func (s *AccountService) VerifyEmail(email, code string) (*db.User, error) {
	if err := s.consumeCode(email, code, db.VerificationTypeEmail); err != nil {
		return nil, err
	}

	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(user).Update("email_verified_at", now).Error; err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}
	user.EmailVerifiedAt = &now
	return user, nil
}

// ResendVerification 为未验证账号重发验证码；已验证或不存在的邮箱静默成功
func (s *AccountService) ResendVerification(email string) error {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerifiedAt != nil || user.Password == "" {
		return nil
	}
	return s.issueCode(email, db.VerificationTypeEmail)
}

// Login 校验凭据登录
func (s *AccountService) Login(email, password string) (*db.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, ErrUseGoogle
	}
	if !auth.VerifyPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.EmailVerifiedAt == nil {
		return nil, ErrEmailNotVerified
	}
	return user, nil
}

// GetOrCreateGoogleUser 以 Google 身份登录，首次出现时建号
// 同邮箱已有凭据账号时直接关联，视为账号合并
func (s *AccountService) GetOrCreateGoogleUser(email, name, picture string) (*db.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	now := time.Now()
	if user == nil {
		user = &db.User{
			Email:           email,
			Name:            name,
			Image:           picture,
			GoogleLinked:    true,
			EmailVerifiedAt: &now,
		}
		if err := s.db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("create google user: %w", err)
		}
		return user, nil
	}

	updates := map[string]interface{}{"google_linked": true}
	if user.Name == "" && name != "" {
		updates["name"] = name
	}
	if user.Image == "" && picture != "" {
		updates["image"] = picture
	}
	if user.EmailVerifiedAt == nil {
		updates["email_verified_at"] = now
		user.EmailVerifiedAt = &now
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("link google user: %w", err)
	}
	user.GoogleLinked = true
	return user, nil
}

// ForgotPassword 发起找回流程
// 无论邮箱是否注册都返回成功，不暴露账号是否存在
func (s *AccountService) ForgotPassword(email string) error {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.Password == "" {
		return nil
	}
	return s.issueCode(email, db.VerificationTypePasswordReset)
}

// VerifyResetCode 校验找回验证码但不消耗它，供重置页先行确认
func (s *AccountService) VerifyResetCode(email, code string) error {
	return s.checkCode(email, code, db.VerificationTypePasswordReset)
}

// ResetPassword 消耗验证码并写入新口令
func (s *AccountService) ResetPassword(email, code, newPassword string) error {
	if validation := auth.ValidatePassword(newPassword); !validation.Valid {
		return &WeakPasswordError{Violations: validation.Errors}
	}

	if err := s.consumeCode(email, code, db.VerificationTypePasswordReset); err != nil {
		return err
	}

	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateProfile 更新展示名
func (s *AccountService) UpdateProfile(userID uint, name string) (*db.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user.Name = name
	return user, nil
}

// UpdateSettings 更新计划展示偏好，取值限定在枚举内
func (s *AccountService) UpdateSettings(userID uint, ritualMode string) (*db.User, error) {
	switch ritualMode {
	case RitualModeSeparate, RitualModeMorning, RitualModeEvening:
	default:
		return nil, ErrInvalidRitualMode
	}

	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("ritual_mode", ritualMode).Error; err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	user.RitualMode = ritualMode
	return user, nil
}

// issueCode 重新生成某类验证码：旧码先删，同类码同时只有一个有效
func (s *AccountService) issueCode(email, tokenType string) error {
	code := auth.GenerateCode()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identifier = ? AND type = ?", email, tokenType).
			Delete(&db.VerificationToken{}).Error; err != nil {
			return fmt.Errorf("remove stale codes: %w", err)
		}
		token := db.VerificationToken{
			Identifier: email,
			Token:      code,
			Type:       tokenType,
			ExpiresAt:  auth.CodeExpiry(),
		}
		if err := tx.Create(&token).Error; err != nil {
			return fmt.Errorf("store code: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sendCode(email, tokenType, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (s *AccountService) sendCode(email, tokenType, code string) error {
	switch tokenType {
	case db.VerificationTypePasswordReset:
		return s.mailer.SendPasswordResetCode(email, code)
	default:
		return s.mailer.SendVerificationCode(email, code)
	}
}

// checkCode 只校验不删除
func (s *AccountService) checkCode(email, code, tokenType string) error {
	var token db.VerificationToken
	err := s.db.Where("identifier = ? AND type = ? AND token = ?", email, tokenType, code).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("find code: %w", err)
	}

	if time.Now().After(token.ExpiresAt) {
		// 过期码顺手清掉，失败不影响结果
		if err := s.db.Delete(&token).Error; err != nil {
			log.Printf("delete expired code for %s: %v", email, err)
		}
		return ErrCodeExpired
	}
	return nil
}

// consumeCode 校验并删除，验证码单次有效
func (s *AccountService) consumeCode(email, code, tokenType string) error {
	if err := s.checkCode(email, code, tokenType); err != nil {
		return err
	}
	if err := s.db.Where("identifier = ? AND type = ? AND token = ?", email, tokenType, code).
		Delete(&db.VerificationToken{}).Error; err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}
