// Package cache wraps redis for the small pieces of shared state that
// do not belong in the relational store: pending anonymous guesses,
// one-time login tokens and request rate counters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"satoshidaily/internal/config"
)

type Store struct {
	Client *redis.Client
}

func New(cfg config.RedisConfig) *Store {
	return &Store{Client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return errors.New("redis not configured")
	}
	return s.Client.Ping(ctx).Err()
}

// --- Pending anonymous guesses ----------------------------------------------

// PutGuess stores an anonymous guess for (cookie, date). At most one
// guess per cookie per day: returns false when one already exists.
func (s *Store) PutGuess(ctx context.Context, cookieID, date string, price int64, ttl time.Duration) (bool, error) {
	if s == nil || s.Client == nil {
		return false, errors.New("redis not configured")
	}
	return s.Client.SetNX(ctx, guessKey(cookieID, date), price, ttl).Result()
}

func (s *Store) GetGuess(ctx context.Context, cookieID, date string) (int64, bool, error) {
	if s == nil || s.Client == nil {
		return 0, false, errors.New("redis not configured")
	}
	raw, err := s.Client.Get(ctx, guessKey(cookieID, date)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

func (s *Store) DeleteGuess(ctx context.Context, cookieID, date string) error {
	if s == nil || s.Client == nil {
		return errors.New("redis not configured")
	}
	return s.Client.Del(ctx, guessKey(cookieID, date)).Err()
}

// --- One-time login tokens --------------------------------------------------

func (s *Store) SaveToken(ctx context.Context, tokenHash, profileID string, ttl time.Duration) error {
	if s == nil || s.Client == nil {
		return errors.New("redis not configured")
	}
	return s.Client.Set(ctx, tokenKey(tokenHash), profileID, ttl).Err()
}

// RedeemToken atomically consumes the one-time token.
func (s *Store) RedeemToken(ctx context.Context, tokenHash string) (string, bool, error) {
	if s == nil || s.Client == nil {
		return "", false, errors.New("redis not configured")
	}
	profileID, err := s.Client.GetDel(ctx, tokenKey(tokenHash)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return profileID, true, nil
}

// --- Rate limiting ----------------------------------------------------------

// Allow implements a fixed-window counter. The window boundary is part
// of the key, so no sliding state is kept.
func (s *Store) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if s == nil || s.Client == nil {
		return false, errors.New("redis not configured")
	}
	if limit <= 0 {
		return true, nil
	}
	bucket := time.Now().Unix() / int64(window.Seconds())
	k := fmt.Sprintf("rl:%s:%d", key, bucket)
	n, err := s.Client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		s.Client.Expire(ctx, k, window)
	}
	return n <= int64(limit), nil
}

func guessKey(cookieID, date string) string {
	return "anon_guess:" + cookieID + ":" + date
}

func tokenKey(hash string) string {
	return "login_token:" + hash
}
