package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// renameScript swaps KEYS[1] for KEYS[2] in one step.
// Returns 1 on success, 0 when KEYS[1] is missing and -1 when KEYS[2] exists.
var renameScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if redis.call("EXISTS", KEYS[2]) == 1 then
	return -1
end
redis.call("DEL", KEYS[1])
if tonumber(ARGV[1]) > 0 then
	redis.call("SET", KEYS[2], "1", "PX", ARGV[1])
else
	redis.call("SET", KEYS[2], "1")
end
return 1
`)

// RedisClient is the subset of go-redis the store needs.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore keeps one key per session. Keys expire with the token, so stale
// sessions drop out on their own.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisStore builds a store over client. A ttl of zero keeps keys forever.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}

// classifyRedisErr separates server replies (logic failures) from transport errors.
func classifyRedisErr(err, logicErr error) error {
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return fmt.Errorf("%w: %w", logicErr, err)
	}
	return fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
}

func (s *RedisStore) Create(ctx context.Context, token string) (Session, error) {
	ok, err := s.client.SetNX(ctx, redisKey(token), 1, s.ttl).Result()
	if err != nil {
		l := logger.For(logger.REDIS)
		l.Error().Err(err).Msg("Redis SETNX for session create failed")
		return Session{}, classifyRedisErr(err, ErrInsertFailed)
	}
	if !ok {
		return Session{}, fmt.Errorf("%w: duplicate token", ErrInsertFailed)
	}

	return Session{Token: token}, nil
}

func (s *RedisStore) Update(ctx context.Context, oldToken, newToken string) (Session, error) {
	res, err := renameScript.Run(ctx, s.client, []string{redisKey(oldToken), redisKey(newToken)}, s.ttl.Milliseconds()).Int()
	if err != nil {
		l := logger.For(logger.REDIS)
		l.Error().Err(err).Msg("Redis rename script for session update failed")
		return Session{}, classifyRedisErr(err, ErrUpdateFailed)
	}

	switch res {
	case 1:
		return Session{Token: newToken}, nil
	case 0:
		return Session{}, fmt.Errorf("%w: no session for token", ErrUpdateFailed)
	default:
		return Session{}, fmt.Errorf("%w: new token already in use", ErrUpdateFailed)
	}
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		l := logger.For(logger.REDIS)
		l.Error().Err(err).Msg("Redis DEL for session delete failed")
		return classifyRedisErr(err, ErrDeleteFailed)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
