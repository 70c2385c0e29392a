package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimitService limits how often a user can start a booking attempt.
// Every attempt holds a seat for five minutes, so unbounded attempts let
// one client lock a whole bus.
type RateLimitService struct {
	client *redis.Client
	config RateLimitConfig
	logger *logrus.Logger
	now    func() time.Time
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxHoldRequests int           // Max hold attempts per user
	HoldWindow      time.Duration // Sliding window for the user limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxHoldRequests: 10,          // 10 attempts
		HoldWindow:      time.Minute, // per minute
	}
}

// NewRateLimitService creates a new rate limit service. A nil client disables limiting.
func NewRateLimitService(client *redis.Client, config RateLimitConfig, logger *logrus.Logger) *RateLimitService {
	if config.MaxHoldRequests <= 0 || config.HoldWindow <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &RateLimitService{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "user"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// slidingWindow trims the window, then admits the request if under the limit.
// Returns {admitted, oldest_score_ms}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		return {0, tonumber(oldest[2])}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, now}
`)

// CheckHoldRateLimit records a hold attempt and fails with *RateLimitError
// once the user exceeded the limit. Redis errors fail open.
func (s *RateLimitService) CheckHoldRateLimit(ctx context.Context, userID uuid.UUID) error {
	if s.client == nil {
		return nil
	}

	now := s.now()
	key := fmt.Sprintf("booking:ratelimit:hold:%s", userID)
	window := s.config.HoldWindow

	result, err := slidingWindow.Run(ctx, s.client, []string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		s.config.MaxHoldRequests,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Rate limiter unavailable, allowing request")
		return nil
	}
	if len(result) != 2 {
		s.logger.WithField("user_id", userID).Warn("Unexpected rate limiter response, allowing request")
		return nil
	}

	if result[0] == 1 {
		return nil
	}

	retryAfter := time.UnixMilli(result[1]).Add(window)
	return &RateLimitError{
		Message:    fmt.Sprintf("Too many booking attempts. Please try again after %s", retryAfter.Format("15:04:05")),
		RetryAfter: retryAfter,
		Type:       "user",
	}
}
