package models

import "time"

// Scrap is one (user, target) bookmark with an optional memo.
type Scrap struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ScrapableType string    `gorm:"size:32;index:idx_scrapable,unique;not null" json:"scrapable_type"`
	ScrapableID   uint      `gorm:"index:idx_scrapable,unique;not null" json:"scrapable_id"`
	UserID        uint      `gorm:"index:idx_scrapable,unique;index;not null" json:"user_id"`
	Memo          string    `gorm:"size:255" json:"memo"`
	Category      string    `gorm:"size:64" json:"category"`
	CreatedAt     time.Time `json:"created_at"`
}
