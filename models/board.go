package models

import (
	"time"

	"gorm.io/gorm"
)

// Board describes one discussion board. Posts reference a board through
// Post.BoardID instead of living in per-board tables, so the schema stays
// static and no runtime table introspection is needed.
type Board struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Slug        string         `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Name        string         `gorm:"size:128;not null" json:"name"`
	Description string         `gorm:"size:512" json:"description"`
	ReadLevel   int            `gorm:"default:0" json:"read_level"`
	WriteLevel  int            `gorm:"default:1" json:"write_level"`
	SortOrder   int            `gorm:"default:0" json:"sort_order"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	PostCount   int64          `gorm:"default:0" json:"post_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Posts       []Post         `json:"-"`
}
