// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockoutHistoryTTL is how long past lockouts count towards backoff.
const lockoutHistoryTTL = maxLockout

// RedisAttemptStore keeps lockout state in Redis so several instances
// share it. Keys:
//
//	<prefix>login:fail:<account>      failures in the current window
//	<prefix>login:lock:<account>      present while locked
//	<prefix>login:lockouts:<account>  lockouts so far, for backoff
type RedisAttemptStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAttemptStore creates a RedisAttemptStore.
func NewRedisAttemptStore(client redis.UniversalClient, prefix string) *RedisAttemptStore {
	return &RedisAttemptStore{client: client, prefix: prefix}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisAttemptStore) key(kind, account string) string {
	return s.prefix + "login:" + kind + ":" + account
}

// LockedFor implements AttemptStore.
func (s *RedisAttemptStore) LockedFor(ctx context.Context, account string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.key("lock", account)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl: %w", err)
	}
	// Missing keys report negative TTLs.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Failures implements AttemptStore.
func (s *RedisAttemptStore) Failures(ctx context.Context, account string) (int, error) {
	v, err := s.client.Get(ctx, s.key("fail", account)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing failure count: %w", err)
	}
	return n, nil
}

// RecordFailure implements AttemptStore.
func (s *RedisAttemptStore) RecordFailure(ctx context.Context, account string, policy LockoutPolicy) (time.Duration, error) {
	failKey := s.key("fail", account)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, failKey)
		// NX keeps the window anchored at the first failure.
		pipe.ExpireNX(ctx, failKey, policy.AttemptWindow)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	if int(incr.Val()) < policy.MaxFailedAttempts {
		return 0, nil
	}

	lockoutsKey := s.key("lockouts", account)
	lockouts, err := s.client.Incr(ctx, lockoutsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	d := policy.lockDuration(int(lockouts) - 1)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, lockoutsKey, lockoutHistoryTTL)
		pipe.Set(ctx, s.key("lock", account), "1", d)
		pipe.Del(ctx, failKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis lock: %w", err)
	}
	return d, nil
}

// Reset implements AttemptStore.
func (s *RedisAttemptStore) Reset(ctx context.Context, account string) error {
	err := s.client.Del(ctx, s.key("fail", account), s.key("lockouts", account)).Err()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Health pings Redis.
func (s *RedisAttemptStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
