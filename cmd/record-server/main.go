package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mangasync/internal/auth"
	"mangasync/internal/events"
	"mangasync/internal/records"
	"mangasync/pkg/config"
	"mangasync/pkg/database"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default ~/"+config.FileName+")")
	addr := flag.String("addr", "", "HTTP listen address")
	tcpAddr := flag.String("tcp-addr", "", "TCP event feed listen address")
	dataDir := flag.String("data-dir", "", "database and file storage directory")
	verbose := flag.Bool("v", false, "debug logging")
	initCfg := flag.Bool("init", false, "write the default config file and exit")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if *initCfg {
		path := *cfgPath
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				log.Fatal().Err(err).Msg("init")
			}
		}
		if err := config.CreateDefault(path); err != nil {
			log.Fatal().Err(err).Msg("init")
		}
		log.Info().Str("path", path).Msg("created default config file")
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	cfg.ApplyFlags(config.Flags{Addr: *addr, TCPAddr: *tcpAddr, DataDir: *dataDir})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	dbCfg := database.DefaultConfig(cfg.Server.DataDir)
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbCfg.Path).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Server.JWTSecret),
		Issuer:   cfg.Server.JWTIssuer,
		Duration: cfg.Server.JWTTTL,
	}
	authRepo := auth.NewRepo(db)
	if cfg.Server.AdminPassword != "" {
		admin, created, err := authRepo.EnsureAdmin(ctx, cfg.Server.AdminEmail, cfg.Server.AdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("ensure admin")
		}
		if created {
			log.Info().Str("email", admin.Email).Msg("admin account created")
		}
	}

	hub := events.NewHub(log)
	defer hub.Close()

	router := newRouter(db, dbCfg, hub, authRepo, tokens, cfg, log)

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	tcpSrv := events.NewServer(cfg.Server.TCPAddr, hub)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Server.Addr).Str("data", cfg.Server.DataDir).Msg("record server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}
	stop()

	log.Info().Msg("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	log.Info().Msg("servers stopped")
}

func newRouter(db *sql.DB, dbCfg database.Config, hub *events.Hub, authRepo *auth.Repo,
	tokens auth.TokenService, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "API is healthy.", "db": dbCfg.Path})
	})
	api.GET("/realtime", events.WSHandler(hub))

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	auth.NewHandler(authRepo, tokens, log).RegisterRoutes(api)

	rh := &records.Handler{
		Repo:    records.NewRepo(db),
		Storage: &records.Storage{Root: filepath.Join(cfg.Server.DataDir, "storage")},
		Events:  hub,
		Log:     log,
	}
	if cfg.Server.RequireAuth {
		rh.Guard = auth.RequireAdmin(tokens, authRepo)
	}
	rh.RegisterRoutes(api)
	return router
}
