package models

import "time"

// Likeable entity type values.
const (
	LikeableTypePost    = "post"
	LikeableTypeComment = "comment"
)

// PostLike is one (user, target) reaction row. IsLike distinguishes a like
// from a dislike; at most one row exists per pair, maintained by the toggle
// logic in the like service.
type PostLike struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	LikeableType string    `gorm:"size:32;index:idx_likeable,unique;not null" json:"likeable_type"`
	LikeableID   uint      `gorm:"index:idx_likeable,unique;not null" json:"likeable_id"`
	UserID       uint      `gorm:"index:idx_likeable,unique;index;not null" json:"user_id"`
	IsLike       bool      `gorm:"not null" json:"is_like"`
	IP           string    `gorm:"size:45" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
