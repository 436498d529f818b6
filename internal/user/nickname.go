package user

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"backoffice/internal/types"
)

const defaultNicknameTTL = 10 * time.Minute

// NicknameSource is the authoritative store of display names.
type NicknameSource interface {
	GetNicknameByID(ctx context.Context, userID int64) (string, error)
}

// Cache is the subset of redis.Cmdable the resolver uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// MissCounter records cache misses.
type MissCounter interface {
	Increment(metric string)
}

// NicknameResolver serves display names from redis when available and falls
// back to the source behind a circuit breaker.
type NicknameResolver struct {
	source  NicknameSource
	cache   Cache
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[string]
	metrics MissCounter
	logger  *slog.Logger
}

// NicknameResolverConfig holds the dependencies for creating a NicknameResolver.
// Cache and Metrics are optional.
type NicknameResolverConfig struct {
	Source  NicknameSource
	Cache   Cache
	TTL     time.Duration
	Metrics MissCounter
	Logger  *slog.Logger
}

// NewNicknameResolver creates a resolver. The breaker opens after more than
// five consecutive source failures and probes again after 30 seconds.
func NewNicknameResolver(cfg NicknameResolverConfig) *NicknameResolver {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultNicknameTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "nickname-lookup",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A missing user is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || types.IsCode(err, types.ErrCodeNotFoundUser)
		},
	})
	return &NicknameResolver{
		source:  cfg.Source,
		cache:   cfg.Cache,
		ttl:     ttl,
		breaker: cb,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

func nicknameKey(userID int64) string {
	return "nickname:" + strconv.FormatInt(userID, 10)
}

// GetNicknameByID returns the display name of userID.
func (r *NicknameResolver) GetNicknameByID(ctx context.Context, userID int64) (string, error) {
	key := nicknameKey(userID)
	if r.cache != nil {
		name, err := r.cache.Get(ctx, key).Result()
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("nickname cache read failed", "user_id", userID, "error", err)
		}
		if r.metrics != nil {
			r.metrics.Increment(types.MetricNicknameMiss)
		}
	}

	name, err := r.breaker.Execute(func() (string, error) {
		return r.source.GetNicknameByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", types.NewAppError(types.ErrCodeUpstreamUnavailable, "nickname lookup unavailable", err)
		}
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, name, r.ttl).Err(); err != nil {
			r.logger.Warn("nickname cache write failed", "user_id", userID, "error", err)
		}
	}
	return name, nil
}

// Invalidate drops the cached names of the given users.
func (r *NicknameResolver) Invalidate(ctx context.Context, userIDs ...int64) error {
	if r.cache == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = nicknameKey(id)
	}
	return r.cache.Del(ctx, keys...).Err()
}
