package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/utils"
)

// Dynamic setting keys the services consult before static config.
const (
	SettingPointDailyCap           = "points.daily_cap"
	SettingPointTransferMin        = "points.transfer_min"
	SettingPointTransferFeePercent = "points.transfer_fee_percent"
)

const settingCacheTTL = time.Minute

// SettingStore reads operator-tunable settings from the settings table, with
// a short redis cache in front so hot paths do not query per request. A key
// that is absent or unparsable falls back to the caller's static value.
type SettingStore struct {
	db *gorm.DB
	// skipCache turns off the redis layer; only tests set it.
	skipCache bool
}

func NewSettingStore(db *gorm.DB) *SettingStore {
	return &SettingStore{db: db}
}

// Get returns the raw value for key and whether it exists.
func (s *SettingStore) Get(ctx context.Context, key string) (string, bool) {
	cacheKey := "cache:setting:" + key
	if !s.skipCache {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			return string(b), true
		}
	}

	var row models.Setting
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&row).Error; err != nil {
		return "", false
	}
	if !s.skipCache {
		utils.CacheSetBytes(cacheKey, []byte(row.Value), settingCacheTTL)
	}
	return row.Value, true
}

// Int returns the setting parsed as an int, or fallback when the key is
// missing or not a number.
func (s *SettingStore) Int(ctx context.Context, key string, fallback int) int {
	v, ok := s.Get(ctx, key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}
