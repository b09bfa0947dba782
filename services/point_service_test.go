package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moadong/moabbs/models"
)

func testPointConfig() PointConfig {
	return PointConfig{
		PostWrite:          10,
		CommentWrite:       5,
		PostLike:           2,
		DailyLogin:         10,
		DailyCap:           300,
		TransferMin:        100,
		TransferFeePercent: 5,
		ExpireDays:         365,
	}
}

func TestAwardSnapshotsBalance(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	h1, err := svc.Award(ctx, user.ID, 100, models.PointTypeOther, "첫 적립", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, h1.BalanceBefore)
	assert.Equal(t, 100, h1.BalanceAfter)
	require.NotNil(t, h1.ExpireAt)

	h2, err := svc.Award(ctx, user.ID, 50, models.PointTypeOther, "두번째", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 100, h2.BalanceBefore)
	assert.Equal(t, 150, h2.BalanceAfter)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, balance)

	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 150, fresh.Points, "user.Points must track the latest balance_after")
}

func TestAwardRejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)

	for _, amount := range []int{0, -10} {
		_, err := svc.Award(context.Background(), user.ID, amount, models.PointTypeOther, "", "", 0)
		assert.True(t, IsValidationError(err), "amount %d should be rejected", amount)
	}
}

func TestDeductRejectsInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 30)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, user.ID, 50, models.PointTypeOther, "차감", "", 0)
	assert.True(t, IsValidationError(err))

	// Nothing was written and the balance is untouched.
	var count int64
	require.NoError(t, db.Model(&models.PointHistory{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)
}

func TestFixedRewardHelpers(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	h, err := svc.AwardPostPoints(ctx, user.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, h.Points)
	assert.Equal(t, models.PointTypePostWrite, h.Type)
	assert.Equal(t, models.PointableTypePost, h.PointableType)
	assert.Equal(t, uint(7), h.PointableID)

	h, err = svc.AwardCommentPoints(ctx, user.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 5, h.Points)
	assert.Equal(t, models.PointTypeCommentWrite, h.Type)

	h, err = svc.AwardLikePoints(ctx, user.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Points)
	assert.Equal(t, 17, h.BalanceAfter)
}

func TestAttendanceOncePerDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	h, err := svc.AwardAttendancePoints(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, 10, h.Points)

	// Second same-day check-in is a silent no-op.
	h, err = svc.AwardAttendancePoints(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, h)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestTransferMovesPointsWithFee(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	sender := createTestUser(t, db, "alice", 1000)
	receiver := createTestUser(t, db, "bob", 0)
	ctx := context.Background()

	res, err := svc.Transfer(ctx, sender.ID, receiver.ID, 200, "선물")
	require.NoError(t, err)
	assert.Equal(t, 200, res.Amount)
	assert.Equal(t, 10, res.Fee) // 5% of 200
	assert.Equal(t, 790, res.SenderBalance)

	sb, err := svc.Balance(ctx, sender.ID)
	require.NoError(t, err)
	assert.Equal(t, 790, sb)
	rb, err := svc.Balance(ctx, receiver.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, rb)

	// One ledger row per leg: send, fee, receive.
	var types []string
	require.NoError(t, db.Model(&models.PointHistory{}).Order("id").Pluck("type", &types).Error)
	assert.Equal(t, []string{
		models.PointTypeTransferSend,
		models.PointTypeTransferFee,
		models.PointTypeTransferRecv,
	}, types)
}

func TestTransferValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	sender := createTestUser(t, db, "alice", 150)
	receiver := createTestUser(t, db, "bob", 0)
	ctx := context.Background()

	_, err := svc.Transfer(ctx, sender.ID, sender.ID, 100, "")
	assert.True(t, IsValidationError(err), "self transfer")

	_, err = svc.Transfer(ctx, sender.ID, receiver.ID, 50, "")
	assert.True(t, IsValidationError(err), "below minimum")

	// 150 covers the amount but not amount+fee (100 + 5).
	_, err = svc.Transfer(ctx, sender.ID, receiver.ID, 150, "")
	assert.True(t, IsValidationError(err), "balance must cover amount plus fee")

	// Failed transfers leave no ledger rows behind.
	var count int64
	require.NoError(t, db.Model(&models.PointHistory{}).Count(&count).Error)
	assert.Zero(t, count)
	rb, err := svc.Balance(ctx, receiver.ID)
	require.NoError(t, err)
	assert.Zero(t, rb)
}

func TestDailyEarnCap(t *testing.T) {
	db := newTestDB(t)
	cfg := testPointConfig()
	cfg.DailyCap = 100
	svc := NewPointService(db, cfg)
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	_, err := svc.Award(ctx, user.ID, 80, models.PointTypePostWrite, "", "", 0)
	require.NoError(t, err)

	earned, err := svc.EarnedToday(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, earned)

	ok, err := svc.CanEarn(ctx, user.ID, 20)
	require.NoError(t, err)
	assert.True(t, ok, "exactly at the cap is allowed")

	ok, err = svc.CanEarn(ctx, user.ID, 21)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deductions never count against the cap.
	_, err = svc.Deduct(ctx, user.ID, 50, models.PointTypeOther, "", "", 0)
	require.NoError(t, err)
	earned, err = svc.EarnedToday(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, earned)
}

func TestExpirePointsClawsBackExpiredCredits(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	h, err := svc.Award(ctx, user.ID, 100, models.PointTypeOther, "적립", "", 0)
	require.NoError(t, err)

	past := time.Now().AddDate(0, 0, -1)
	require.NoError(t, db.Model(&models.PointHistory{}).Where("id = ?", h.ID).
		Update("expire_at", past).Error)

	n, err := svc.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	var expiredRow models.PointHistory
	require.NoError(t, db.Where("type = ?", models.PointTypeExpired).First(&expiredRow).Error)
	assert.Equal(t, -100, expiredRow.Points)

	// The swept credit is marked and never processed twice.
	var original models.PointHistory
	require.NoError(t, db.First(&original, h.ID).Error)
	assert.True(t, original.Expired)

	n, err = svc.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpirePointsSkipsSpentCredits(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	h, err := svc.Award(ctx, user.ID, 100, models.PointTypeOther, "적립", "", 0)
	require.NoError(t, err)
	_, err = svc.Deduct(ctx, user.ID, 90, models.PointTypeOther, "사용", "", 0)
	require.NoError(t, err)

	past := time.Now().AddDate(0, 0, -1)
	require.NoError(t, db.Model(&models.PointHistory{}).Where("id = ?", h.ID).
		Update("expire_at", past).Error)

	// Balance 10 cannot absorb a 100-point claw-back; the row is skipped.
	n, err := svc.ExpirePoints(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestExpireOneClaimsCreditOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	// Enough extra balance that a double clawback would still pass the
	// spent-credit check.
	_, err := svc.Award(ctx, user.ID, 200, models.PointTypeOther, "", "", 0)
	require.NoError(t, err)
	h, err := svc.Award(ctx, user.ID, 100, models.PointTypeOther, "", "", 0)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.PointHistory{}).Where("id = ?", h.ID).
		Update("expire_at", time.Now().Add(-time.Hour)).Error)

	var row models.PointHistory
	require.NoError(t, db.First(&row, h.ID).Error)

	done, err := svc.expireOne(ctx, row)
	require.NoError(t, err)
	assert.True(t, done)

	// Overlapping sweeps can each hold the same stale candidate; the second
	// pass must see the claimed flag and skip.
	done, err = svc.expireOne(ctx, row)
	require.NoError(t, err)
	assert.False(t, done)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, balance)

	var clawbacks int64
	require.NoError(t, db.Model(&models.PointHistory{}).
		Where("user_id = ? AND type = ?", user.ID, models.PointTypeExpired).
		Count(&clawbacks).Error)
	assert.Equal(t, int64(1), clawbacks)
}

func TestAdminAdjustBypassesBalanceFloor(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 50)
	admin := createTestUser(t, db, "root", 0)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, user.ID, 0, "", admin.ID)
	assert.True(t, IsValidationError(err))

	h, err := svc.AdminAdjust(ctx, user.ID, -200, "패널티", admin.ID)
	require.NoError(t, err)
	assert.Equal(t, -150, h.BalanceAfter)
	require.NotNil(t, h.AdminID)
	assert.Equal(t, admin.ID, *h.AdminID)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, -150, balance)
}

func TestSettingOverridesEconomyLimits(t *testing.T) {
	db := newTestDB(t)
	store := &SettingStore{db: db, skipCache: true}
	svc := NewPointService(db, testPointConfig()).WithSettings(store)
	user := createTestUser(t, db, "alice", 1000)
	bob := createTestUser(t, db, "bob", 0)
	ctx := context.Background()

	// No rows yet: static config applies.
	assert.Equal(t, 300, svc.DailyCap(ctx))

	require.NoError(t, db.Create(&models.Setting{Key: SettingPointDailyCap, Value: "50"}).Error)
	require.NoError(t, db.Create(&models.Setting{Key: SettingPointTransferMin, Value: "500"}).Error)
	assert.Equal(t, 50, svc.DailyCap(ctx))

	ok, err := svc.CanEarn(ctx, user.ID, 51)
	require.NoError(t, err)
	assert.False(t, ok)

	// Transfer minimum raised above the requested amount.
	_, err = svc.Transfer(ctx, user.ID, bob.ID, 100, "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	// Unparsable value falls back to config.
	require.NoError(t, db.Model(&models.Setting{}).Where("`key` = ?", SettingPointDailyCap).
		Update("value", "not-a-number").Error)
	assert.Equal(t, 300, svc.DailyCap(ctx))
}

func TestHistoryPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointService(db, testPointConfig())
	user := createTestUser(t, db, "alice", 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Award(ctx, user.ID, 10, models.PointTypeOther, "", "", 0)
		require.NoError(t, err)
	}

	items, total, err := svc.History(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	// Newest first.
	assert.Equal(t, 50, items[0].BalanceAfter)

	items, _, err = svc.History(ctx, user.ID, 3, 2)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
