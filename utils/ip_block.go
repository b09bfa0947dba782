package utils

import (
	"context"
	"strings"
	"time"
)

const ipBlockPrefix = "ipblock:"

// BlockedIP is one entry of the admin-managed blocklist.
type BlockedIP struct {
	IP        string        `json:"ip"`
	Reason    string        `json:"reason"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// BlockIP adds ip to the blocklist. A zero ttl blocks permanently.
func BlockIP(ip, reason string, ttl time.Duration) error {
	rc := GetRedis()
	if rc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return rc.Set(ctx, ipBlockPrefix+ip, reason, ttl).Err()
}

// UnblockIP removes ip from the blocklist.
func UnblockIP(ip string) error {
	rc := GetRedis()
	if rc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return rc.Del(ctx, ipBlockPrefix+ip).Err()
}

// IsIPBlocked reports whether ip is currently blocked. Redis errors fail open
// so a cache outage does not lock everyone out.
func IsIPBlocked(ip string) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := rc.Exists(ctx, ipBlockPrefix+ip).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// ListBlockedIPs scans the blocklist keys and returns current entries.
func ListBlockedIPs() []BlockedIP {
	rc := GetRedis()
	if rc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out []BlockedIP
	var cursor uint64
	for i := 0; i < 10; i++ {
		keys, cur, err := rc.Scan(ctx, cursor, ipBlockPrefix+"*", 500).Result()
		if err != nil {
			break
		}
		cursor = cur
		for _, k := range keys {
			reason, _ := rc.Get(ctx, k).Result()
			ttl, _ := rc.TTL(ctx, k).Result()
			out = append(out, BlockedIP{
				IP:        strings.TrimPrefix(k, ipBlockPrefix),
				Reason:    reason,
				ExpiresIn: ttl,
			})
		}
		if cursor == 0 {
			break
		}
	}
	return out
}
