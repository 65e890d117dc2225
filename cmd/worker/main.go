package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrms-lite/hrms/internal/config"
	"github.com/hrms-lite/hrms/internal/metrics"
	"github.com/hrms-lite/hrms/internal/orphans"
	"github.com/hrms-lite/hrms/internal/queue"
	"github.com/hrms-lite/hrms/internal/store"
)

// Worker consumes employee lifecycle events from redis and reports
// attendance records left behind by deletes.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}

	gateway, err := store.New(store.Options{
		Backend:     cfg.StoreBackend,
		MongoURL:    cfg.MongoURL,
		DBName:      cfg.DBName,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	if err := gateway.Connect(ctx); err != nil {
		log.Fatalf("store (%s) connect failed: %v", cfg.StoreBackend, err)
	}
	defer gateway.Disconnect(context.Background())

	redisClient := store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable yet, will keep retrying", cfg.RedisAddr)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	orphans.NewReporter(gateway.Attendance(), m).Run(ctx, messages)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Println("worker stopped")
}
