package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/port"
)

const stockKeyPrefix = "stock:"

// reserveStockScript makes the floor check and decrement a single Redis
// operation. Returns 1 on success, 0 on insufficient stock, -1 when the
// product has no stock key.
var reserveStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

// RedisLedger is an InventoryLedger backed by Redis. Lua scripting gives the
// single-statement atomicity the ledger contract requires, so no retry loop
// is needed.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (r *RedisLedger) GetStock(ctx context.Context, productID string) (int, error) {
	stock, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

func (r *RedisLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	key := stockKeyPrefix + productID
	result, err := reserveStockScript.Run(ctx, r.client, []string{key}, quantity).Int()
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("%w: %s", port.ErrProductNotFound, productID)
	default:
		return fmt.Errorf("%w: product %s, want %d", port.ErrInsufficientStock, productID, quantity)
	}
}

func (r *RedisLedger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}
	if err := r.client.IncrBy(ctx, stockKeyPrefix+productID, int64(quantity)).Err(); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}

// SetStock seeds or resets a product's stock key, used when warming the
// ledger from the durable inventory table at startup.
func (r *RedisLedger) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}
