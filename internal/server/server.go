package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsie/config"
	"github.com/mohammad-safakhou/newsie/internal/ingest"
	"github.com/mohammad-safakhou/newsie/provider"
	"github.com/mohammad-safakhou/newsie/rag"
	"github.com/mohammad-safakhou/newsie/repository"
	"github.com/mohammad-safakhou/newsie/repository/redis_repository"
	"github.com/mohammad-safakhou/newsie/session"
	"github.com/mohammad-safakhou/newsie/vectorstore"
)

func Run(cfg *config.Config, addr string) error {
	e := newEcho(cfg)

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Shared dependencies, built once at startup.
	embedder, err := provider.NewEmbedder(cfg.Providers)
	if err != nil {
		return err
	}
	answerer, err := provider.NewAnswerer(cfg.Providers)
	if err != nil {
		return err
	}
	index, err := vectorstore.NewVectorStore(vectorstore.QdrantStore, cfg.Databases.Qdrant)
	if err != nil {
		return err
	}

	// The scheduler lock needs the raw client, so the redis path is built
	// by hand here instead of through repository.NewKV.
	var kv repository.KV
	var rdb *redis.Client
	if cfg.Databases.Upstash.Enabled() {
		kv, err = repository.NewKV(context.Background(), cfg.Databases)
		if err != nil {
			return err
		}
	} else {
		r := cfg.Databases.Redis
		rdb, err = redis_repository.Conn(context.Background(), r.Host, r.Port, r.Password, r.DB, r.Timeout)
		if err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", r.Host, r.Port, err)
		}
		kv = redis_repository.NewKV(rdb)
	}

	sessions := session.NewStore(kv)
	orch := rag.NewOrchestrator(embedder, index, answerer, nil)

	api := e.Group("/api")
	sh := &SessionsHandler{Sessions: sessions, Responder: orch, TopK: rag.DefaultTopK}
	sh.Register(api.Group("/session"))

	if cfg.Ingest.CronSpec != "" {
		pipeline, err := ingest.NewPipeline(cfg.Ingest, embedder, index, nil)
		if err != nil {
			return err
		}
		sched := &ingest.Scheduler{
			Pipeline: pipeline,
			CronSpec: cfg.Ingest.CronSpec,
			Rdb:      rdb,
			Stop:     make(chan struct{}),
		}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":5000"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho assembles the middleware stack shared by the real server and the
// handler tests.
func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := cfg.General.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	// Session responses are per-user and mutate on every turn; nothing on
	// the API may be cached.
	e.Use(noStore)
	e.Use(observeRequests(baseLogger))

	return e
}

func noStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return next(c)
	}
}

func observeRequests(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			req := c.Request()
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			requestsTotal.WithLabelValues(req.Method, strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())
			logger.Printf("%s %s %d %s", req.Method, req.URL.Path, status, elapsed)
			return err
		}
	}
}
