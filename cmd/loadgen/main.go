// loadgen races concurrent checkouts for the last units of stock against the
// Redis ledger and verifies that exactly stock-many succeed and the final
// count is zero.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storely/order-core/internal/adapter/storage"
	"github.com/storely/order-core/internal/core/domain"
	"github.com/storely/order-core/internal/core/service"
	"github.com/storely/order-core/pkg/logging"
)

const (
	redisAddr     = "localhost:6379"
	productID     = "loadgen-widget"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	ledger := storage.NewRedisLedger(rdb)
	if err := ledger.SetStock(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	catalog := storage.NewMemoryCatalog()
	catalog.Put(domain.ProductSnapshot{
		ID:        productID,
		Name:      "Widget",
		UnitPrice: domain.NewMoney(1999, "USD"),
		Stock:     initialStock,
		Active:    true,
	})

	svc := service.NewOrderService(logging.New(), ledger, storage.NewMemoryOrderStore(), catalog)

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(customer int) {
			defer wg.Done()

			_, err := svc.Checkout(ctx, fmt.Sprintf("customer-%d", customer),
				[]service.OrderLine{{ProductID: productID, Quantity: 1}}, "", "")
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== LOADGEN RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=====================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: exactly %d checkouts succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	finalStock, err := ledger.GetStock(ctx, productID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected stock 0, got %d\n", finalStock)
	}
}
