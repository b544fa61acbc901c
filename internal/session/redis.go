package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// RedisStore shares one identity between every process pointed at the same
// Redis. Each change is also published so other processes can follow it.
type RedisStore struct {
	client  *redis.Client
	key     string
	channel string
	logger  *slog.Logger
}

func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client:  client,
		key:     Key,
		channel: Key + ":events",
		logger:  logger.With("component", "session", "backend", "redis"),
	}
}

func (s *RedisStore) Load(ctx context.Context) (*models.User, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, user *models.User) error {
	data, err := encode(user)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key, data, 0)
	pipe.Publish(ctx, s.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	pipe.Publish(ctx, s.channel, "")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) Watch(ctx context.Context, onChange func(*models.User)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	// wait for the subscription confirmation so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			u, err := decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("ignoring malformed session broadcast", "error", err)
				continue
			}
			onChange(u)
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		if err := pubsub.Close(); err != nil {
			s.logger.Error("error closing session subscription", "error", err)
		}
		<-done
	}, nil
}
