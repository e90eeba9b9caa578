package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"rendercv-service/internal/config"
	"rendercv-service/internal/http/server"
	"rendercv-service/internal/infra/logging"
	"rendercv-service/internal/infra/postgres"
	"rendercv-service/internal/infra/renderpool"
	"rendercv-service/internal/notify"
	"rendercv-service/internal/render"
	"rendercv-service/internal/tokens"
)

func main() {
	configPath, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := loadConfig(configPath)

	if err := ensureLogDir(cfg.Logger.File); err != nil {
		fmt.Fprintln(os.Stderr, "cannot create log directory:", err)
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	// maxprocs.Set only fails on an invalid GOMAXPROCS env; runtime defaults apply then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logging.Debug(fmt.Sprintf(format, args...))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toolchain := render.NewCLIToolchain(cfg.Render.RenderCVPath, cfg.Render.TypstPath)
	checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := toolchain.Check(checkCtx); err != nil {
		logging.Error("RenderCV toolchain is not available", "error", err)
	} else {
		logging.Info("RenderCV toolchain is available")
	}
	checkCancel()

	pool, err := renderpool.NewPool(renderpool.ResolveSize(cfg.Render.PoolSize))
	if err != nil {
		logging.Error("Render pool init failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
		defer rdb.Close()
	}

	var tokenCache *tokens.Cache
	if cfg.Auth.PostgresDSN != "" {
		db := postgres.NewDB()
		defer db.Close()

		tokenCache = tokens.NewCache()
		reloader := tokens.NewReloader(postgres.NewTokenRepository(db, cfg.Auth.PostgresDSN), tokenCache, cfg.Auth.TokenReloadInterval)
		reloader.Start(ctx)
	}

	if !cfg.Notify.Enabled() {
		logging.Warn("Telegram notifications disabled: BOT_TOKEN or CHAT_ID not set")
	}

	app := server.New(server.Deps{
		Config:    cfg,
		Redis:     rdb,
		Toolchain: toolchain,
		Pool:      pool,
		Tokens:    tokenCache,
		Notifier:  notify.NewTelegramNotifier(cfg.Notify),
	})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// parseFlags reads --config. Unknown flags are ignored.
func parseFlags(args []string) (string, error) {
	fs := flag.NewFlagSet("rendercv-service", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configPath := fs.StringP("config", "c", "", "path to the YAML config file (overrides CONFIG_PATH)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *configPath, nil
}

func loadConfig(path string) config.Config {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// ensureLogDir creates the directory of the log file when it has one.
func ensureLogDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
