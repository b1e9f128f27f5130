package session

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	sessionKeyPrefix = "blogpanel-session||"
	ChangesChannel   = "blogpanel-session-changes"
)

type RedisStorage struct {
	redisClient *redis.Client
}

func NewRedisStorage(redisClient *redis.Client) *RedisStorage {
	return &RedisStorage{
		redisClient: redisClient,
	}
}

func (rs *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := rs.redisClient.Get(ctx, sessionKeyPrefix+key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return cmd.Val(), true, nil
}

func (rs *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := rs.redisClient.Set(ctx, sessionKeyPrefix+key, value, 0).Err(); err != nil {
		return err
	}
	rs.publish(ctx, key)
	return nil
}

func (rs *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = sessionKeyPrefix + k
	}

	if err := rs.redisClient.Del(ctx, prefixed...).Err(); err != nil {
		return err
	}
	rs.publish(ctx, keys[0])
	return nil
}

// publish failure does not fail the write, watchers will catch up on the next change
func (rs *RedisStorage) publish(ctx context.Context, key string) {
	if err := rs.redisClient.Publish(ctx, ChangesChannel, key).Err(); err != nil {
		log.Errorf("redis session storage, publish change of %s: %s", key, err)
	}
}

func (rs *RedisStorage) Changes(ctx context.Context) (<-chan struct{}, error) {
	pubsub := rs.redisClient.Subscribe(ctx, ChangesChannel)
	// wait for the subscription confirmation, so no change is missed after return
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer func() {
			if err := pubsub.Close(); err != nil {
				log.Errorf("redis session storage, close pubsub: %s", err)
			}
		}()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				log.Tracef("redis session storage, %s changed", msg.Payload)
				notify(changes)
			}
		}
	}()

	return changes, nil
}
