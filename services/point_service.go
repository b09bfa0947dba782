package services

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moadong/moabbs/config"
	"github.com/moadong/moabbs/models"
)

// PointConfig carries the reward amounts and economy limits.
type PointConfig struct {
	PostWrite          int
	CommentWrite       int
	PostLike           int
	DailyLogin         int
	DailyCap           int
	TransferMin        int
	TransferFeePercent int
	ExpireDays         int
}

// PointConfigFromApp derives point settings from the app config.
func PointConfigFromApp(cfg config.AppConfig) PointConfig {
	return PointConfig{
		PostWrite:          cfg.PointPostWrite,
		CommentWrite:       cfg.PointCommentWrite,
		PostLike:           cfg.PointPostLike,
		DailyLogin:         cfg.PointDailyLogin,
		DailyCap:           cfg.PointDailyCap,
		TransferMin:        cfg.PointTransferMin,
		TransferFeePercent: cfg.PointTransferFeePercent,
		ExpireDays:         cfg.PointExpireDays,
	}
}

// PointService maintains the point ledger. Every balance mutation locks the
// user row, snapshots balance before/after, and appends one history row, all
// in a single transaction, so user.Points always equals the balance_after of
// the latest history entry.
type PointService struct {
	db       *gorm.DB
	cfg      PointConfig
	settings *SettingStore
}

// NewPointService creates a new PointService.
func NewPointService(db *gorm.DB, cfg PointConfig) *PointService {
	if cfg.ExpireDays <= 0 {
		cfg.ExpireDays = 365
	}
	return &PointService{db: db, cfg: cfg}
}

// WithSettings lets operator-edited settings override the static economy
// limits (daily cap, transfer minimum and fee).
func (s *PointService) WithSettings(store *SettingStore) *PointService {
	s.settings = store
	return s
}

func (s *PointService) dailyCap(ctx context.Context) int {
	if s.settings != nil {
		return s.settings.Int(ctx, SettingPointDailyCap, s.cfg.DailyCap)
	}
	return s.cfg.DailyCap
}

func (s *PointService) transferMin(ctx context.Context) int {
	if s.settings != nil {
		return s.settings.Int(ctx, SettingPointTransferMin, s.cfg.TransferMin)
	}
	return s.cfg.TransferMin
}

func (s *PointService) transferFeePercent(ctx context.Context) int {
	if s.settings != nil {
		return s.settings.Int(ctx, SettingPointTransferFeePercent, s.cfg.TransferFeePercent)
	}
	return s.cfg.TransferFeePercent
}

// Award credits amount points to the user. Amount must be positive. The
// credit expires ExpireDays from now unless consumed by the expiry sweep.
func (s *PointService) Award(ctx context.Context, userID uint, amount int, pointType, description, pointableType string, pointableID uint) (*models.PointHistory, error) {
	if amount <= 0 {
		return nil, NewValidationError("award amount must be positive")
	}
	expireAt := time.Now().AddDate(0, 0, s.cfg.ExpireDays)

	var history *models.PointHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		history, err = s.apply(tx, userID, amount, pointType, description, pointableType, pointableID, &expireAt, nil)
		return err
	})
	return history, err
}

// Deduct removes amount points from the user. Amount must be positive and
// must not exceed the current balance.
func (s *PointService) Deduct(ctx context.Context, userID uint, amount int, pointType, description, pointableType string, pointableID uint) (*models.PointHistory, error) {
	if amount <= 0 {
		return nil, NewValidationError("deduct amount must be positive")
	}

	var history *models.PointHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		history, err = s.apply(tx, userID, -amount, pointType, description, pointableType, pointableID, nil, nil)
		return err
	})
	return history, err
}

// AwardPostPoints credits the fixed post-writing reward.
func (s *PointService) AwardPostPoints(ctx context.Context, userID, postID uint) (*models.PointHistory, error) {
	return s.Award(ctx, userID, s.cfg.PostWrite, models.PointTypePostWrite, "게시글 작성", models.PointableTypePost, postID)
}

// AwardCommentPoints credits the fixed comment-writing reward.
func (s *PointService) AwardCommentPoints(ctx context.Context, userID, commentID uint) (*models.PointHistory, error) {
	return s.Award(ctx, userID, s.cfg.CommentWrite, models.PointTypeCommentWrite, "댓글 작성", models.PointableTypeComment, commentID)
}

// AwardLikePoints credits the fixed received-like reward to a post author.
func (s *PointService) AwardLikePoints(ctx context.Context, userID, postID uint) (*models.PointHistory, error) {
	return s.Award(ctx, userID, s.cfg.PostLike, models.PointTypePostLike, "추천 받음", models.PointableTypePost, postID)
}

// AwardAttendancePoints credits the daily check-in reward once per calendar
// day. A second same-day call returns (nil, nil) without crediting.
func (s *PointService) AwardAttendancePoints(ctx context.Context, userID uint) (*models.PointHistory, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PointHistory{}).
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, models.PointTypeDailyLogin, startOfToday()).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}
	return s.Award(ctx, userID, s.cfg.DailyLogin, models.PointTypeDailyLogin, "출석 체크", models.PointableTypeUser, userID)
}

// TransferResult reports the outcome of a point transfer.
type TransferResult struct {
	Amount        int `json:"amount"`
	Fee           int `json:"fee"`
	SenderBalance int `json:"sender_balance"`
}

// Transfer moves amount points from sender to receiver minus a percentage
// fee, as one all-or-nothing transaction. The sender row is locked for the
// duration so two concurrent transfers cannot both pass the balance check.
func (s *PointService) Transfer(ctx context.Context, senderID, receiverID uint, amount int, message string) (*TransferResult, error) {
	if senderID == receiverID {
		return nil, NewValidationError("cannot transfer points to yourself")
	}
	if amount < s.transferMin(ctx) {
		return nil, NewValidationError("transfer amount below minimum")
	}
	fee := amount * s.transferFeePercent(ctx) / 100

	desc := message
	if desc == "" {
		desc = "포인트 선물"
	}

	result := &TransferResult{Amount: amount, Fee: fee}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sender models.User
		if err := lockForUpdate(tx).First(&sender, senderID).Error; err != nil {
			return err
		}
		if sender.Points < amount+fee {
			return NewValidationError("insufficient points for transfer and fee")
		}

		if _, err := s.apply(tx, senderID, -amount, models.PointTypeTransferSend, desc, models.PointableTypeUser, receiverID, nil, nil); err != nil {
			return err
		}
		if fee > 0 {
			if _, err := s.apply(tx, senderID, -fee, models.PointTypeTransferFee, "이체 수수료", models.PointableTypeUser, receiverID, nil, nil); err != nil {
				return err
			}
		}
		if _, err := s.apply(tx, receiverID, amount, models.PointTypeTransferRecv, desc, models.PointableTypeUser, senderID, nil, nil); err != nil {
			return err
		}
		result.SenderBalance = sender.Points - amount - fee
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CanEarn reports whether crediting amount keeps the user's same-day positive
// total at or under the daily cap. Advisory: Award does not call this itself;
// the write-path controllers do.
func (s *PointService) CanEarn(ctx context.Context, userID uint, amount int) (bool, error) {
	earned, err := s.earnedToday(ctx, userID)
	if err != nil {
		return false, err
	}
	return earned+amount <= s.dailyCap(ctx), nil
}

// DailyCap returns the effective daily earn cap, preferring the dynamic
// setting over static config.
func (s *PointService) DailyCap(ctx context.Context) int {
	return s.dailyCap(ctx)
}

// EarnedToday returns the sum of today's positive point credits.
func (s *PointService) EarnedToday(ctx context.Context, userID uint) (int, error) {
	return s.earnedToday(ctx, userID)
}

func (s *PointService) earnedToday(ctx context.Context, userID uint) (int, error) {
	var earned int64
	err := s.db.WithContext(ctx).Model(&models.PointHistory{}).
		Where("user_id = ? AND points > 0 AND created_at >= ?", userID, startOfToday()).
		Select("COALESCE(SUM(points), 0)").
		Scan(&earned).Error
	return int(earned), err
}

// ExpirePoints sweeps positive credits whose expiry date passed: when the
// user's balance still covers the credit it is clawed back with an
// offsetting "expired" entry; otherwise the row is skipped silently.
// Returns the number of credits expired.
func (s *PointService) ExpirePoints(ctx context.Context) (int, error) {
	var candidates []models.PointHistory
	if err := s.db.WithContext(ctx).
		Where("points > 0 AND expired = ? AND expire_at IS NOT NULL AND expire_at < ?", false, time.Now()).
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	processed := 0
	for _, row := range candidates {
		done, err := s.expireOne(ctx, row)
		if err != nil {
			return processed, err
		}
		if done {
			processed++
		}
	}
	return processed, nil
}

// expireOne claws back a single expired credit. It reports false when the
// credit is skipped: the balance no longer covers it, or a concurrent sweep
// (cron and the admin trigger can overlap) claimed it first. Claiming flips
// the expired flag with a guarded update before writing the clawback, so a
// credit can never be clawed back twice.
func (s *PointService) expireOne(ctx context.Context, row models.PointHistory) (bool, error) {
	expired := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).First(&user, row.UserID).Error; err != nil {
			return err
		}
		if user.Points < row.Points {
			// Already spent; best-effort sweep skips it.
			return nil
		}
		res := tx.Model(&models.PointHistory{}).
			Where("id = ? AND expired = ?", row.ID, false).
			Update("expired", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if _, err := s.apply(tx, row.UserID, -row.Points, models.PointTypeExpired, "포인트 유효기간 만료", row.PointableType, row.PointableID, nil, nil); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// AdminAdjust applies a manual correction. Amount may be positive or negative
// but not zero; the acting admin is recorded on the history row. Negative
// adjustments are applied even past zero since the admin overrides the
// balance check.
func (s *PointService) AdminAdjust(ctx context.Context, userID uint, amount int, reason string, adminID uint) (*models.PointHistory, error) {
	if amount == 0 {
		return nil, NewValidationError("adjustment amount cannot be zero")
	}
	if reason == "" {
		reason = "관리자 조정"
	}

	var history *models.PointHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		history, err = s.apply(tx, userID, amount, models.PointTypeAdminAdjust, reason, models.PointableTypeUser, userID, nil, &adminID)
		return err
	})
	return history, err
}

// Balance returns the user's current point total.
func (s *PointService) Balance(ctx context.Context, userID uint) (int, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("points").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.Points, nil
}

// History returns a page of the user's ledger, newest first.
func (s *PointService) History(ctx context.Context, userID uint, page, pageSize int) ([]models.PointHistory, int64, error) {
	var items []models.PointHistory
	var total int64
	q := s.db.WithContext(ctx).Model(&models.PointHistory{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// apply is the single write path of the ledger: lock the user row, snapshot
// the balance, append the history row, store the new balance. Callers run it
// inside a transaction. Negative deltas without an admin fail when they would
// take the balance below zero.
func (s *PointService) apply(tx *gorm.DB, userID uint, delta int, pointType, description, pointableType string, pointableID uint, expireAt *time.Time, adminID *uint) (*models.PointHistory, error) {
	var user models.User
	if err := lockForUpdate(tx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	before := user.Points
	after := before + delta
	if delta < 0 && after < 0 && adminID == nil {
		return nil, NewValidationError("insufficient points")
	}

	history := &models.PointHistory{
		UserID:        userID,
		Points:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Type:          pointType,
		Description:   description,
		PointableType: pointableType,
		PointableID:   pointableID,
		ExpireAt:      expireAt,
		AdminID:       adminID,
	}
	if err := tx.Create(history).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("points", after).Error; err != nil {
		return nil, err
	}
	return history, nil
}

// lockForUpdate takes a pessimistic row lock on databases that support it.
// SQLite serializes writers on its own and has no FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
