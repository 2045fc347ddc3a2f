package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotTTL limita a defasagem das listagens de apostas servidas do cache.
const SnapshotTTL = 15 * time.Second

// Cache guarda snapshots de leitura (listagens de grupo e de usuário) no Redis.
// É apenas uma camada de conveniência: a fonte de verdade segue no Postgres.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func KeyGroup(groupID string) string { return "wagers:group:" + groupID }
func KeyUser(userID string) string   { return "wagers:user:" + userID }

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(ctx context.Context, key string, v any) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, key, b, SnapshotTTL).Err()
}

// Invalidate remove os snapshots afetados por uma transição de estado.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.R.Del(ctx, keys...)
}
