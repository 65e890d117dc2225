package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrms-lite/hrms/internal/attendance"
	"github.com/hrms-lite/hrms/internal/config"
	"github.com/hrms-lite/hrms/internal/employee"
	"github.com/hrms-lite/hrms/internal/handler"
	"github.com/hrms-lite/hrms/internal/httpmiddleware"
	"github.com/hrms-lite/hrms/internal/metrics"
	"github.com/hrms-lite/hrms/internal/orphans"
	"github.com/hrms-lite/hrms/internal/queue"
	"github.com/hrms-lite/hrms/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	gateway, err := store.New(store.Options{
		Backend:     cfg.StoreBackend,
		MongoURL:    cfg.MongoURL,
		DBName:      cfg.DBName,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gateway.Disconnect(ctx); err != nil {
			log.Printf("store disconnect: %v", err)
		}
	}()

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	err = gateway.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		log.Fatalf("store (%s) connect failed: %v", cfg.StoreBackend, err)
	}
	log.Printf("store connected: %s", cfg.StoreBackend)

	var redisClient *store.Redis
	if cfg.QueueBackend == "redis" || cfg.RateLimiter == "redis" {
		redisClient = store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var q queue.Queue
	switch cfg.QueueBackend {
	case "redis":
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	case "memory":
		mem := queue.NewInMemory(64)
		q = mem
		// No separate worker shares this queue, so the reporter runs here.
		messages, err := mem.Consume(ctx)
		if err != nil {
			return err
		}
		go orphans.NewReporter(gateway.Attendance(), m).Run(ctx, messages)
	default:
		log.Printf("queue backend %q: events discarded", cfg.QueueBackend)
		q = queue.Discard{}
	}

	emp := employee.NewService(gateway.Employees(), employee.WithPublisher(q), employee.WithMetrics(m))
	att := attendance.NewService(gateway.Attendance(), emp, time.Now, m)
	h := handler.New(emp, att, gateway, redisClient)

	var limiter httpmiddleware.Limiter
	switch cfg.RateLimiter {
	case "redis":
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	case "memory":
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	default:
		log.Println("rate limiting disabled")
	}

	r := handler.NewRouter(h, handler.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     limiter,
		Metrics:     m,
		MetricsView: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
