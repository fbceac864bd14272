package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"weathermap/internal/api"
	"weathermap/internal/artifact"
	"weathermap/internal/auth"
	"weathermap/internal/catalog"
	"weathermap/internal/config"
	"weathermap/internal/render"
	"weathermap/internal/task"
	"weathermap/internal/topology"
)

func main() {

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// .env overrides are optional; absence is not an error
	_ = godotenv.Load()

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("jwt_secret is not configured (config.yml or WEATHERMAP_JWT_SECRET)")
	}

	artifacts := artifact.NewStore(cfg.DataDir)
	if err := artifacts.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure storage dirs")
	}

	taskManager, err := buildTaskManager(cfg, artifacts)
	if err != nil {
		log.Fatal().Err(err).Msg("build task manager")
	}

	router := setupRouter()
	wireAPI(router, cfg, taskManager, artifacts)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	taskManager.SetBaseContext(baseCtx)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, taskManager, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	r.Use(api.CORSMiddleware())
	return r
}

func buildTaskManager(cfg config.Config, artifacts *artifact.Store) (*task.Manager, error) {
	store := task.NewMemoryStore()
	if cfg.PersistTasks {
		var err error
		store, err = task.NewFileStore(cfg.TasksDir())
		if err != nil {
			return nil, err
		}
	}
	return task.NewManager(task.Options{
		Store:                store,
		Artifacts:            artifacts,
		Renderer:             render.NewWeathermap(),
		MaxConcurrentRenders: cfg.MaxConcurrentRenders,
		RenderTimeout:        cfg.RenderTimeout(),
	}), nil
}

func wireAPI(router *gin.Engine, cfg config.Config, tm *task.Manager, artifacts *artifact.Store) {
	apiHandler := api.NewAPI(api.Options{
		Auth:      auth.NewService(cfg.JWTSecret, cfg.TokenTTL()),
		Directory: catalog.NewDirectory(),
		Topology:  topology.NewProvider(),
		Tasks:     tm,
		Artifacts: artifacts,
		BaseURL:   cfg.BaseURL,
		DataDir:   cfg.DataDir,
	})
	apiHandler.RegisterRoutes(router)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, tm *task.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	done := tm.WaitAll(ctx)
	if !done {
		log.Warn().Msg("background workers did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
