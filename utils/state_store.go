package utils

import (
	"context"
	"sync"
	"time"
)

const oauthStateKeyPrefix = "oauth:state:"

var (
	oauthStates  = map[string]time.Time{}
	oauthStateMu sync.Mutex
)

// SaveState records an OAuth state token for CSRF protection. Redis keeps
// states consistent across instances; the map fallback only works for a
// single process.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rc.Set(ctx, oauthStateKeyPrefix+state, "1", ttl).Err()
		return
	}
	now := time.Now()
	oauthStateMu.Lock()
	for s, exp := range oauthStates {
		if now.After(exp) {
			delete(oauthStates, s)
		}
	}
	oauthStates[state] = now.Add(ttl)
	oauthStateMu.Unlock()
}

// ConsumeState validates a state token and removes it, so each state is
// accepted at most once.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := rc.GetDel(ctx, oauthStateKeyPrefix+state).Result()
		return err == nil && v != ""
	}

	oauthStateMu.Lock()
	expiresAt, ok := oauthStates[state]
	if ok {
		delete(oauthStates, state)
	}
	oauthStateMu.Unlock()
	return ok && time.Now().Before(expiresAt)
}
