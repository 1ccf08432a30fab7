package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ordermart/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService is a read-through cache for tenant-scoped order lookups.
// Misses return (nil, nil); callers fall back to the repository.
type CacheService interface {
	GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	SetOrder(ctx context.Context, tenantID uuid.UUID, order *models.Order, ttl time.Duration) error
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept both "host:port" and "redis://host:port" forms.
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisCacheService{client: client}
}

func orderKey(tenantID, orderID uuid.UUID) string {
	return fmt.Sprintf("order:%s:%s", tenantID, orderID)
}

func (s *redisCacheService) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	data, err := s.client.Get(ctx, orderKey(tenantID, orderID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order := &models.Order{}
	if err := json.Unmarshal([]byte(data), order); err != nil {
		// A stale or corrupt entry behaves like a miss.
		return nil, nil
	}
	return order, nil
}

func (s *redisCacheService) SetOrder(ctx context.Context, tenantID uuid.UUID, order *models.Order, ttl time.Duration) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, orderKey(tenantID, order.ID), data, ttl).Err()
}

func (s *redisCacheService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
