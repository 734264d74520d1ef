package endpoints

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no endpoints were stored for an app
var ErrNotFound = errors.New("endpoints not found")

// Hosts is the pair of endpoints an app was last redirected to
type Hosts struct {
	API       string
	Push      string
	UpdatedAt time.Time
}

// Store persists learned endpoints so later processes start on the
// current hosts instead of paying for the redirect again
type Store interface {
	Load(ctx context.Context, apiKey string) (Hosts, error)
	Save(ctx context.Context, apiKey string, hosts Hosts) error
	Delete(ctx context.Context, apiKey string) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	fieldAPI     = "api"
	fieldPush    = "push"
	fieldUpdated = "updated_at"
)

// RedisStore keeps each app's endpoints in a Redis hash
type RedisStore struct {
	client *redis.Client
	config *Config
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server in config
func NewRedisStore(config *Config) (*RedisStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddress(),
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, config), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, config *Config) *RedisStore {
	if config == nil {
		config = DefaultConfig()
	}
	return &RedisStore{client: client, config: config}
}

func (r *RedisStore) key(apiKey string) string {
	return r.config.KeyPrefix + ":" + apiKey
}

// Load returns the stored endpoints for apiKey
func (r *RedisStore) Load(ctx context.Context, apiKey string) (Hosts, error) {
	vals, err := r.client.HGetAll(ctx, r.key(apiKey)).Result()
	if err != nil {
		return Hosts{}, fmt.Errorf("failed to load endpoints: %w", err)
	}
	if len(vals) == 0 {
		return Hosts{}, ErrNotFound
	}

	hosts := Hosts{API: vals[fieldAPI], Push: vals[fieldPush]}
	if ts, ok := vals[fieldUpdated]; ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			hosts.UpdatedAt = t
		}
	}
	return hosts, nil
}

// Save stores hosts for apiKey and refreshes the TTL. Empty hosts leave
// the stored value unchanged.
func (r *RedisStore) Save(ctx context.Context, apiKey string, hosts Hosts) error {
	if hosts.UpdatedAt.IsZero() {
		hosts.UpdatedAt = time.Now()
	}

	fields := map[string]interface{}{fieldUpdated: hosts.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	if hosts.API != "" {
		fields[fieldAPI] = hosts.API
	}
	if hosts.Push != "" {
		fields[fieldPush] = hosts.Push
	}

	key := r.key(apiKey)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if r.config.TTL > 0 {
		pipe.Expire(ctx, key, r.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save endpoints: %w", err)
	}
	return nil
}

// Delete forgets the endpoints for apiKey
func (r *RedisStore) Delete(ctx context.Context, apiKey string) error {
	n, err := r.client.Del(ctx, r.key(apiKey)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete endpoints: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
