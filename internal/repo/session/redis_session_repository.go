package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
)

// RedisConfig holds connection settings of the Redis session backend.
type RedisConfig struct {
	Addr      string `env:"ADDR" default:"localhost:6379"`
	Password  string `env:"PASSWORD" default:""`
	DB        int    `env:"DB" default:"0"`
	KeyPrefix string `env:"KEY_PREFIX" default:"catalog:session:"`
}

// RedisSessionRepository keeps sessions as JSON values that expire with the session.
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
	log    logging.Logger
	now    func() time.Time
}

var _ Repository = (*RedisSessionRepository)(nil)

// NewRedisSessionRepository connects to Redis and verifies the connection.
func NewRedisSessionRepository(ctx context.Context, cfg RedisConfig) (*RedisSessionRepository, error) {
	//nolint:exhaustruct
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisSessionRepository{
		client: client,
		prefix: cfg.KeyPrefix,
		log: logging.GetLogger("repo.session.redis").With(
			logging.Group("redis", "addr", cfg.Addr, "db", cfg.DB),
		),
		now: time.Now,
	}, nil
}

func (r *RedisSessionRepository) key(id string) string {
	return r.prefix + id
}

// Create implements Repository.Create using Redis.
func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	ttl := session.TTL(r.now())
	if ttl <= 0 {
		return fmt.Errorf("create session: %w", domain.ErrSessionNotFound)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

// Get implements Repository.Get using Redis.
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = errors.Join(domain.ErrSessionNotFound, err)
		}

		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if session.Expired(r.now()) {
		return nil, domain.ErrSessionNotFound
	}

	return &session, nil
}

// Delete implements Repository.Delete using Redis.
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("del session: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the Redis client.
func (r *RedisSessionRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
