package models

import "time"

// Point history type values. One constant per point-affecting event.
const (
	PointTypePostWrite    = "post_write"
	PointTypeCommentWrite = "comment_write"
	PointTypePostLike     = "post_like"
	PointTypeDailyLogin   = "daily_login"
	PointTypeTransferSend = "transfer_send"
	PointTypeTransferRecv = "transfer_recv"
	PointTypeTransferFee  = "transfer_fee"
	PointTypeExpired      = "expired"
	PointTypeAdminAdjust  = "admin_adjust"
	PointTypeOther        = "other"
)

// Pointable entity type values for the polymorphic reference.
const (
	PointableTypePost    = "post"
	PointableTypeComment = "comment"
	PointableTypeUser    = "user"
)

// PointHistory is one ledger entry per point-affecting event. BalanceBefore
// and BalanceAfter snapshot the user's total atomically with the write, so
// BalanceAfter = BalanceBefore + Points always holds.
type PointHistory struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	Points        int        `gorm:"not null" json:"points"`
	BalanceBefore int        `gorm:"not null" json:"balance_before"`
	BalanceAfter  int        `gorm:"not null" json:"balance_after"`
	Type          string     `gorm:"size:32;index;not null" json:"type"`
	Description   string     `gorm:"size:255" json:"description"`
	PointableType string     `gorm:"size:32;index:idx_pointable" json:"pointable_type,omitempty"`
	PointableID   uint       `gorm:"index:idx_pointable" json:"pointable_id,omitempty"`
	ExpireAt      *time.Time `gorm:"index" json:"expire_at,omitempty"`
	Expired       bool       `gorm:"default:false;index" json:"expired"`
	AdminID       *uint      `json:"admin_id,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}
