package credstore

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"wagate/internal/constants"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (st *RedisStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := st.client.Get(ctx, constants.StoreKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (st *RedisStore) Write(ctx context.Context, key string, data []byte) error {
	return st.client.Set(ctx, constants.StoreKeyPrefix+key, data, 0).Err()
}

func (st *RedisStore) Delete(ctx context.Context, key string) error {
	return st.client.Del(ctx, constants.StoreKeyPrefix+key).Err()
}

func (st *RedisStore) WipeAll(ctx context.Context) error {
	pattern := constants.StoreKeyPrefix + "*"
	iter := st.client.Scan(ctx, 0, pattern, 100).Iterator()

	for iter.Next(ctx) {
		if err := st.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("Failed to delete session key from Redis: %v", err)
		}
	}

	return iter.Err()
}

func (st *RedisStore) Close() error {
	return st.client.Close()
}
