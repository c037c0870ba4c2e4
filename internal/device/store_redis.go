package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKey = "mailbox:state"

type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redisAddr ("host:port", an optional redis://
// prefix is stripped) and verifies the connection.
func NewRedisStore(ctx context.Context, redisAddr, password string) (*RedisStore, error) {
	redisAddr = strings.TrimPrefix(redisAddr, "redis://")
	redisAddr = strings.TrimPrefix(redisAddr, "rediss://")

	rdb := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: rdb, key: stateKey}, nil
}

func (r *RedisStore) Load(ctx context.Context) (State, error) {
	if r == nil || r.client == nil {
		// mock mode
		return State{}, nil
	}
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return State{}, err
	}

	var st State
	if v, ok := fields["count"]; ok {
		if st.Count, err = strconv.ParseInt(v, 10, 64); err != nil {
			return State{}, fmt.Errorf("corrupt count %q: %w", v, err)
		}
	}
	st.Lamp = fields["lamp"] == "1"
	return st, nil
}

func (r *RedisStore) Save(ctx context.Context, st State) error {
	if r == nil || r.client == nil {
		// mock mode
		return nil
	}
	lamp := "0"
	if st.Lamp {
		lamp = "1"
	}
	return r.client.HSet(ctx, r.key, map[string]any{
		"count":      st.Count,
		"lamp":       lamp,
		"updated_at": time.Now().Format(time.RFC3339Nano),
	}).Err()
}

func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
