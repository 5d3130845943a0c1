package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miniorg/internal/db"
	"gorm.io/gorm"
)

var (
	ErrTagExists   = errors.New("tag already exists")
	ErrTagInUse    = errors.New("tag is associated with tasks")
	ErrTagNotFound = errors.New("tag not found")
)

// TagService wraps tag related operations.
type TagService struct {
	db *gorm.DB
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb}
}

// List 返回用户的全部标签
func (s *TagService) List(userID uint) ([]db.Tag, error) {
	var tags []db.Tag
	if err := s.db.Where("user_id = ?", userID).
		Order("name asc").Order("id asc").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Create inserts a new tag with unique name per user.
func (s *TagService) Create(userID uint, name, color string) (*db.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name is required")
	}

	var existing db.Tag
	if err := s.db.Where("user_id = ? AND name = ?", userID, name).
		First(&existing).Error; err == nil {
		return nil, ErrTagExists
	}

	tag := db.Tag{UserID: userID, Name: name, Color: color}
	if err := s.db.Create(&tag).Error; err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &tag, nil
}

// Update changes the tag name and color while keeping uniqueness.
func (s *TagService) Update(userID, id uint, name, color string) (*db.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name is required")
	}

	var tag db.Tag
	if err := s.db.Where("user_id = ?", userID).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}

	var existing db.Tag
	if err := s.db.Where("user_id = ? AND name = ? AND id <> ?", userID, name, id).
		First(&existing).Error; err == nil {
		return nil, ErrTagExists
	}

	tag.Name = name
	if color != "" {
		tag.Color = color
	}
	if err := s.db.Save(&tag).Error; err != nil {
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return &tag, nil
}

// Delete removes a tag if no task references it.
func (s *TagService) Delete(userID, id uint) error {
	var tag db.Tag
	if err := s.db.Where("user_id = ?", userID).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagNotFound
		}
		return fmt.Errorf("get tag: %w", err)
	}

	var count int64
	if err := s.db.Model(&db.Task{}).Where("tag_id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("count tag usage: %w", err)
	}
	if count > 0 {
		return ErrTagInUse
	}

	return s.db.Unscoped().Delete(&tag).Error
}
