package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type (
	// Provider supplies the bearer token used to authenticate a session.
	// Returning ErrNoToken means the session proceeds unauthenticated
	Provider interface {
		Token(ctx context.Context) (string, error)
	}

	// Func adapts a function to the Provider interface
	Func func(ctx context.Context) (string, error)

	// Static always yields the same token
	Static string

	// Redis reads the token from a Redis key on every call, so rotating the
	// key takes effect on the next connection
	Redis struct {
		client *redis.Client
		key    string
	}
)

var (
	ErrNoToken        = errors.New("no token available")
	ErrClientRequired = errors.New("redis client is required")
	ErrKeyRequired    = errors.New("redis key is required")
)

var (
	_ Provider = Func(nil)
	_ Provider = Static("")
	_ Provider = (*Redis)(nil)
)

// Token implements Provider
func (f Func) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Token implements Provider
func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// NewRedis creates a Provider backed by the given Redis key
func NewRedis(client *redis.Client, key string) (*Redis, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if key == "" {
		return nil, ErrKeyRequired
	}
	return &Redis{
		client: client,
		key:    key,
	}, nil
}

// Token implements Provider
func (r *Redis) Token(ctx context.Context) (string, error) {
	res, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if res == "" {
		return "", ErrNoToken
	}
	return res, nil
}
