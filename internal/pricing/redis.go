package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"paperledger/internal/logger"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Address  string
	Password string
	DB       int
	// Key is a hash of code -> last price maintained by an external feed.
	Key string
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisSource reads quotes from a single Redis hash.
type RedisSource struct {
	client hashReader
	closer func() error
	key    string
}

func NewRedisSource(opts RedisOptions) (*RedisSource, error) {
	if strings.TrimSpace(opts.Address) == "" {
		return nil, fmt.Errorf("pricing: redis address cannot be empty")
	}
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		return nil, fmt.Errorf("pricing: redis key cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisSource{client: client, closer: client.Close, key: key}, nil
}

func (s *RedisSource) Quotes(ctx context.Context, codes []string) (map[string]float64, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("pricing: read %s: %w", s.key, err)
	}
	out := make(map[string]float64, len(codes))
	for _, code := range codes {
		v, ok := raw[code]
		if !ok {
			v, ok = raw[normalize(code)]
		}
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || price <= 0 {
			logger.Warnf("[pricing] ignoring redis quote %s=%q", code, v)
			continue
		}
		out[code] = price
	}
	return out, nil
}

func (s *RedisSource) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}
