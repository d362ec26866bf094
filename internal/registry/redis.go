package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tankai/internal/model"
)

// RedisLatest keeps a hash per project pointing at the newest artifact of each type,
// so device-facing services can find the current model without scanning the registry.
type RedisLatest struct {
	client *redis.Client
}

func NewRedisLatest(addr, password string, db int) *RedisLatest {
	return &RedisLatest{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// Ping checks the connection within a short timeout.
func (r *RedisLatest) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// LatestKey is the hash holding a project's newest artifact paths.
func LatestKey(project string) string {
	return fmt.Sprintf("tankai:model:%s:latest", project)
}

func (r *RedisLatest) Record(ctx context.Context, rec model.ModelRecord) error {
	if r == nil || r.client == nil {
		return errors.New("redis client not initialized")
	}
	return r.client.HSet(ctx, LatestKey(rec.ProjectID),
		string(rec.Type), rec.Path,
		"created", rec.CreatedAt.UTC().Format(time.RFC3339),
	).Err()
}

func (r *RedisLatest) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
