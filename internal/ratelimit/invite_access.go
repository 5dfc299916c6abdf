package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/assessly/internal/config"
)

const keyInviteAccessIP = "invite:access:ip:%s"

// InviteAccessLimiter throttles token lookups per client address so invite tokens
// cannot be enumerated through the public endpoints.
type InviteAccessLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewInviteAccessLimiter(cfg config.Config, bucket *TokenBucket) (*InviteAccessLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if bucket == nil {
		return nil, errors.New("rate limiting requires REDIS_ADDR")
	}
	if limitCfg.InviteAccessRate <= 0 || limitCfg.InviteAccessBurst <= 0 {
		return nil, errors.New("invite access rate limit must be positive")
	}
	return &InviteAccessLimiter{
		bucket: bucket,
		rate:   limitCfg.InviteAccessRate,
		burst:  limitCfg.InviteAccessBurst,
	}, nil
}

func (l *InviteAccessLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *InviteAccessLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInviteAccessIP, clientIP), l.rate, l.burst)
}
