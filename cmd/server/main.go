package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/storely/order-core/internal/adapter/handler"
	"github.com/storely/order-core/internal/adapter/storage"
	"github.com/storely/order-core/internal/core/service"
	"github.com/storely/order-core/pkg/logging"
	"github.com/storely/order-core/pkg/shutdown"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	httpAddr := env("HTTP_ADDR", ":8080")
	mysqlDSN := env("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true")
	redisAddr := env("REDIS_ADDR", "localhost:6379")

	// MySQL: orders, catalog, durable inventory
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Error("mysql open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Error("mysql ping failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to mysql")

	// Redis: hot ledger for the reservation path
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	mysqlLedger := storage.NewMySQLLedger(db)
	redisLedger := storage.NewRedisLedger(rdb)
	orderStore := storage.NewMySQLOrderStore(db)
	catalog := storage.NewMySQLCatalog(db)

	// Warm the Redis ledger from the durable inventory table so the atomic
	// reservation path serves from memory. The order store keeps that table
	// in step with persisted orders, so a restart resumes from the correct
	// counts rather than resurrecting sold stock.
	records, err := mysqlLedger.Records(ctx)
	if err != nil {
		log.Error("inventory load failed", "err", err)
		os.Exit(1)
	}
	for _, rec := range records {
		if err := redisLedger.SetStock(ctx, rec.ProductID, rec.Stock); err != nil {
			log.Error("ledger warm-up failed", "product_id", rec.ProductID, "err", err)
			os.Exit(1)
		}
	}
	log.Info("ledger warmed", "products", len(records))

	orderService := service.NewOrderService(log, redisLedger, orderStore, catalog)
	httpHandler := handler.NewHTTPHandler(log, orderService)

	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
