package sessionstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/reflection"
)

const keyPrefix = "kazi:wizard:"

// RedisStore keeps wizard sessions in Redis. Every save refreshes the session TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ reflection.SessionStore = (*RedisStore)(nil) // interface compliance check

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	vala.BeginValidation().Validate(
		vala.IsNotNil(client, "client"),
	).CheckAndPanic()

	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) SaveSession(ctx context.Context, sess reflection.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err = s.client.Set(ctx, keyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "saving session")
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (reflection.Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return reflection.Session{}, reflection.ErrSessionNotFound
	} else if err != nil {
		return reflection.Session{}, errors.Wrap(err, "getting session")
	}

	var sess reflection.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return reflection.Session{}, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}

// TakeSession uses GETDEL, which needs Redis 6.2 or later.
func (s *RedisStore) TakeSession(ctx context.Context, id string) (reflection.Session, error) {
	data, err := s.client.GetDel(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return reflection.Session{}, reflection.ErrSessionNotFound
	} else if err != nil {
		return reflection.Session{}, errors.Wrap(err, "taking session")
	}

	var sess reflection.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return reflection.Session{}, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}
