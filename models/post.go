package models

import (
	"time"

	"gorm.io/gorm"
)

// Post status values.
const (
	PostStatusPublished = "published"
	PostStatusHidden    = "hidden"
)

// Post represents a board post created by a user.
type Post struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	BoardID      uint           `gorm:"index;not null" json:"board_id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Category     string         `gorm:"size:32" json:"category"`
	Status       string         `gorm:"size:16;default:'published'" json:"status"`
	ViewCount    int64          `gorm:"default:0" json:"view_count"`
	LikeCount    int64          `gorm:"default:0" json:"like_count"`
	DislikeCount int64          `gorm:"default:0" json:"dislike_count"`
	CommentCount int64          `gorm:"default:0" json:"comment_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	User         User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Board        Board          `json:"-"`
	Comments     []Comment      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}
