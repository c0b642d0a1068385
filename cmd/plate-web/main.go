package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/princekumarofficial/plate-console/docs"
	"github.com/princekumarofficial/plate-console/internal/cache"
	"github.com/princekumarofficial/plate-console/internal/config"
	"github.com/princekumarofficial/plate-console/internal/console"
	"github.com/princekumarofficial/plate-console/internal/events"
	consoleHandlers "github.com/princekumarofficial/plate-console/internal/http/handlers/console"
	mediaHandlers "github.com/princekumarofficial/plate-console/internal/http/handlers/media"
	wsHandlers "github.com/princekumarofficial/plate-console/internal/http/handlers/websocket"
	"github.com/princekumarofficial/plate-console/internal/http/middleware"
	"github.com/princekumarofficial/plate-console/internal/janitor"
	"github.com/princekumarofficial/plate-console/internal/metrics"
	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/ratelimit"
	"github.com/princekumarofficial/plate-console/internal/services/detect"
	"github.com/princekumarofficial/plate-console/internal/storage"
	"github.com/princekumarofficial/plate-console/internal/storage/memory"
	"github.com/princekumarofficial/plate-console/internal/storage/postgres"
	"github.com/princekumarofficial/plate-console/internal/upload"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
	wsClient "github.com/princekumarofficial/plate-console/internal/websocket"
)

// @title Plate Console API
// @version 1.0
// @description Web console for the license plate detection service.
// @host localhost:8080
// @BasePath /
func main() {
	// load config
	cfg := config.MustLoad()
	setupLogger(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// redis is optional unless a redis-backed feature is enabled
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		slog.Info("Connected to Redis", slog.String("address", cfg.Redis.Address))
	}

	store, err := objectStore(ctx, cfg, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize object URL store:", err)
	}
	registry := objecturl.NewRegistry(store)

	history, closeHistory, err := historyStorage(cfg, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize history storage:", err)
	}
	defer closeHistory()

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// websocket hub
	hub := wsClient.NewHub()
	go hub.Run(ctx)
	publisher := events.NewEventPublisher(hub)

	detector := detect.NewClient(&cfg.Detector)
	sessions := console.NewSessions(detector, registry,
		upload.WithPublisher(publisher),
		upload.WithHistory(history),
		upload.WithMetrics(m),
	)

	rateLimits := middleware.NewRateLimitConfig(m)
	if cfg.RateLimit.Enabled {
		rateLimits.Register(middleware.ActionSubmit,
			ratelimit.NewTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Refill))
		slog.Info("Submission rate limit enabled",
			slog.Int64("capacity", cfg.RateLimit.Capacity),
			slog.Int64("refill_per_minute", cfg.RateLimit.Refill))
	}

	go janitor.New(registry, cfg.Janitor.Interval, cfg.ObjectURLs.TTL,
		janitor.WithHistory(history, cfg.History.Retention),
		janitor.WithSessions(sessions),
	).Start(ctx)

	// setup router
	consoleH := consoleHandlers.NewConsoleHandlers(sessions, history, cfg.HTTPServer.MaxUploadMB)
	mediaH := mediaHandlers.NewMediaHandlers(registry)
	rateLimits.OnLimited(middleware.ActionSubmit, consoleH.Limited())

	router := http.NewServeMux()

	router.HandleFunc("GET /{$}", consoleH.Index())
	router.Handle("POST /submit", rateLimits.RateLimitedHandler(middleware.ActionSubmit, consoleH.Submit()))
	router.HandleFunc("GET /history", consoleH.History())
	router.HandleFunc("GET /media/{id}", mediaH.ServeObject())
	router.HandleFunc("GET /ws", wsHandlers.WebSocketHandler(hub))

	router.HandleFunc("GET /health", health())
	router.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if redisClient != nil {
		router.HandleFunc("GET /cache/stats", cache.GetCacheStats(redisClient))
	}

	server := http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      middleware.Logger(middleware.Session(router)),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	slog.Info("server started",
		slog.String("address", cfg.HTTPServer.Address),
		slog.String("detector", cfg.Detector.BaseURL),
		slog.String("object_urls", cfg.ObjectURLs.Backend),
		slog.String("history", cfg.History.Backend))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
	}

	// release every result still on display
	if err := sessions.Close(shutdownCtx); err != nil {
		slog.Error("failed to release object URLs", slog.String("error", err.Error()))
	}
	cancel()

	slog.Info("Server stopped")
}

func setupLogger(env string) {
	var handler slog.Handler
	switch env {
	case config.EnvLocal:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func objectStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (objecturl.Store, error) {
	switch cfg.ObjectURLs.Backend {
	case "redis":
		return objecturl.NewRedisStore(redisClient, cfg.ObjectURLs.TTL), nil
	case "minio":
		return objecturl.NewMinIOStore(ctx, &cfg.MinIO)
	default:
		return objecturl.NewMemoryStore(), nil
	}
}

// historyStorage picks the history backend and fronts it with the redis
// cache when redis is available.
func historyStorage(cfg *config.Config, redisClient *redis.Client) (storage.Storage, func(), error) {
	var (
		s       storage.Storage
		closeFn = func() {}
	)

	switch cfg.History.Backend {
	case "postgres":
		pg, err := postgres.NewPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		s = pg
		closeFn = func() { pg.Close() }
	default:
		s = memory.New()
	}

	if redisClient != nil && cfg.History.CacheTTL > 0 {
		s = cache.NewCachedStorage(s, redisClient, cfg.History.CacheTTL)
	}
	return s, closeFn, nil
}

// health reports liveness
// @Summary Liveness check
// @Tags ops
// @Produce json
// @Success 200 {object} response.Response "Service is healthy"
// @Router /health [get]
func health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, response.RequestOK("ok", nil))
	}
}
