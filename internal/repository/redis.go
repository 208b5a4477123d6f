package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const resetTokenPrefix = "password-reset:"

type redisResetTokens struct {
	client *redis.Client
}

// NewRedisClient parses url and pings the server, retrying a few times the way
// the service expects redis to come up next to it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	client.Close()
	return nil, fmt.Errorf("connect to redis: %w", err)
}

// NewRedisResetTokens returns a ResetTokenStore whose entries expire in redis.
func NewRedisResetTokens(client *redis.Client) ResetTokenStore {
	return &redisResetTokens{client: client}
}

func (s *redisResetTokens) Issue(ctx context.Context, email string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetTokenPrefix+token, email, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *redisResetTokens) Consume(ctx context.Context, token string) (string, error) {
	email, err := s.client.GetDel(ctx, resetTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return email, nil
}
