package models

import "time"

// SearchLog records every search call: keyword, hit count, requester context
// and execution time. Written unconditionally by the search service.
type SearchLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Keyword     string    `gorm:"size:100;index;not null" json:"keyword"`
	ResultCount int64     `gorm:"not null" json:"result_count"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	IP          string    `gorm:"size:45" json:"-"`
	UserAgent   string    `gorm:"size:255" json:"-"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
