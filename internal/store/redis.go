// redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ghost.drop/internal/models"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore persists drops as JSON under "drop:<id>" with a native
// Redis TTL as the expiry backstop. The Consume and RecordFailure
// transitions run as Lua scripts so each executes atomically on the
// server; no client-side read-modify-write can race them.
//
// The client is injected and may be shared with other components; Close
// here does not close it.
type RedisStore struct {
	client      *redis.Client
	maxAttempts int
}

func NewRedisStore(client *redis.Client, maxAttempts int) (*RedisStore, error) {
	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, maxAttempts: maxAttempts}, nil
}

func (r *RedisStore) Create(ctx context.Context, id string, drop *models.Drop, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	data, err := json.Marshal(drop)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, dropKey(id), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Drop, error) {
	data, err := r.client.Get(ctx, dropKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDrop(data)
}

func (r *RedisStore) Replace(ctx context.Context, id string, drop *models.Drop) error {
	data, err := json.Marshal(drop)
	if err != nil {
		return err
	}

	// XX + KEEPTTL: only update existing keys, never touch the expiry.
	err = r.client.SetArgs(ctx, dropKey(id), data, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return err
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, dropKey(id)).Err()
}

var consumeScript = redis.NewScript(`
	local data = redis.call('GET', KEYS[1])
	if not data then
		return false
	end
	local drop = cjson.decode(data)
	if (drop['failedAttempts'] or 0) >= tonumber(ARGV[1]) then
		redis.call('DEL', KEYS[1])
		return {'destroyed'}
	end
	drop['remainingViews'] = drop['remainingViews'] - 1
	local out = cjson.encode(drop)
	if drop['remainingViews'] <= 0 then
		redis.call('DEL', KEYS[1])
	else
		redis.call('SET', KEYS[1], out, 'KEEPTTL')
	end
	return {'ok', out}
`)

func (r *RedisStore) Consume(ctx context.Context, id string) (*models.Drop, error) {
	val, err := consumeScript.Run(ctx, r.client, []string{dropKey(id)}, r.maxAttempts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	reply, ok := val.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("unexpected consume reply: %v", val)
	}

	status, _ := reply[0].(string)
	switch status {
	case "destroyed":
		return nil, ErrDestroyed
	case "ok":
		if len(reply) < 2 {
			return nil, fmt.Errorf("consume reply missing payload")
		}
		data, ok := reply[1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected consume payload type %T", reply[1])
		}
		return decodeDrop([]byte(data))
	default:
		return nil, fmt.Errorf("unexpected consume status %q", status)
	}
}

var recordFailureScript = redis.NewScript(`
	local data = redis.call('GET', KEYS[1])
	if not data then
		return false
	end
	local drop = cjson.decode(data)
	drop['failedAttempts'] = (drop['failedAttempts'] or 0) + 1
	if drop['failedAttempts'] >= tonumber(ARGV[1]) then
		redis.call('DEL', KEYS[1])
		return {drop['failedAttempts'], 1}
	end
	redis.call('SET', KEYS[1], cjson.encode(drop), 'KEEPTTL')
	return {drop['failedAttempts'], 0}
`)

func (r *RedisStore) RecordFailure(ctx context.Context, id string) (int, bool, error) {
	val, err := recordFailureScript.Run(ctx, r.client, []string{dropKey(id)}, r.maxAttempts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Already gone; reporting failure on a missing drop is a
			// no-op, not an error.
			return 0, true, nil
		}
		return 0, false, err
	}

	reply, ok := val.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, false, fmt.Errorf("unexpected failure reply: %v", val)
	}

	attempts, _ := reply[0].(int64)
	destroyed, _ := reply[1].(int64)
	return int(attempts), destroyed == 1, nil
}

// Close is a no-op: the shared client's lifecycle belongs to whoever
// constructed it.
func (r *RedisStore) Close() error {
	return nil
}

// Helpers

func dropKey(id string) string {
	return "drop:" + id
}

func decodeDrop(data []byte) (*models.Drop, error) {
	var drop models.Drop
	if err := json.Unmarshal(data, &drop); err != nil {
		return nil, err
	}
	return &drop, nil
}
