package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineTTL = 24 * time.Hour

// RedisTracker keeps one hash per room, keyed by endpoint id, so every
// instance behind the load balancer sees the same presence.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

// Connect dials redis and checks the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (t *RedisTracker) Add(ctx context.Context, roomID string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := onlineKey(roomID)

	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, entry.EndpointID, data)
	pipe.Expire(ctx, key, onlineTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence add %s: %w", key, err)
	}
	return nil
}

func (t *RedisTracker) Remove(ctx context.Context, roomID, endpointID string) error {
	key := onlineKey(roomID)
	if err := t.client.HDel(ctx, key, endpointID).Err(); err != nil {
		return fmt.Errorf("presence remove %s: %w", key, err)
	}
	return nil
}

func (t *RedisTracker) Online(ctx context.Context, roomID string) ([]Entry, error) {
	key := onlineKey(roomID)
	raw, err := t.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("presence online %s: %w", key, err)
	}

	out := make([]Entry, 0, len(raw))
	for _, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func onlineKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:online_users", roomID)
}
