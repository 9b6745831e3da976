package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the record under "<prefix>:token" and "<prefix>:user".
// Both keys are written in one MULTI/EXEC pipeline and removed with a
// single DEL, so readers never see one without the other.
//
// The caller owns the client; Close does not close it.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a [RedisStore]. prefix namespaces the keys (one
// prefix per client profile); ttl, when positive, expires both keys
// together.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gosession"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	user, err := EncodeUser(rec.User)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(tokenKey), rec.Token, s.ttl)
		pipe.Set(ctx, s.key(userKey), user, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	values, err := s.redis.MGet(ctx, s.key(tokenKey), s.key(userKey)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(values) != 2 {
		return Record{}, fmt.Errorf("%w: unexpected MGET reply length %d", ErrStorage, len(values))
	}

	token, hasToken := values[0].(string)
	user, hasUser := values[1].(string)
	return assemble(token, hasToken, []byte(user), hasUser)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(tokenKey), s.key(userKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return nil }
