package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var insertUserScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'email', ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'username', ARGV[2], 'password', ARGV[3])
return 1
`)

var updatePasswordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'password', ARGV[1])
return 1
`)

// RedisStore keeps one hash per user at <prefix>:user:<email>.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authapi"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) key(email string) string {
	return s.prefix + ":user:" + NormalizeEmail(email)
}

func (s *RedisStore) Get(ctx context.Context, email string) (*User, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &User{
		Email:    fields["email"],
		Username: fields["username"],
		Password: fields["password"],
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, user User) error {
	email := NormalizeEmail(user.Email)
	created, err := insertUserScript.Run(ctx, s.redis, []string{s.key(email)}, email, user.Username, user.Password).Int()
	if err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	if created == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *RedisStore) UpdatePassword(ctx context.Context, email, hash string) error {
	updated, err := updatePasswordScript.Run(ctx, s.redis, []string{s.key(email)}, hash).Int()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if updated == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if err := s.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
