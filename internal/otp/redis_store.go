package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// RedisStore keeps entries as JSON under otp:<email>, expiring with the code.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Save(ctx context.Context, email string, entry Entry) error {
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("otp for %s already expired", email)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+email, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, email string) (*Entry, error) {
	data, err := s.client.Get(ctx, keyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode otp: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) MarkVerified(ctx context.Context, email string) error {
	entry, err := s.Get(ctx, email)
	if err != nil {
		return err
	}
	entry.Verified = true
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// XX keeps a key that expired in the meantime from coming back.
	res, err := s.client.SetArgs(ctx, keyPrefix+email, data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if errors.Is(err, redis.Nil) || (err == nil && res != "OK") {
		return ErrNotFound
	}
	return err
}

func (s *RedisStore) Clear(ctx context.Context, email string) error {
	return s.client.Del(ctx, keyPrefix+email).Err()
}
