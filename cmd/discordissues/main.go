package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	discordadapter "github.com/belst/discordissues/internal/adapter/driven/discord"
	githubadapter "github.com/belst/discordissues/internal/adapter/driven/github"
	sqliteadapter "github.com/belst/discordissues/internal/adapter/driven/sqlite"
	"github.com/belst/discordissues/internal/adapter/driving/webhook"
	"github.com/belst/discordissues/internal/application"
	"github.com/belst/discordissues/internal/config"
	"github.com/belst/discordissues/internal/domain/model"
	"github.com/belst/discordissues/internal/routing"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config (default: ./discordissues.toml)")
	flag.Parse()

	// 1. Load configuration (fail fast on missing credentials or bad mapping).
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"trigger_emoji", cfg.TriggerEmoji,
		"mapped_repos", len(cfg.Mapping),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the correlation database and run migrations.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	store := sqliteadapter.NewCorrelationRepo(db)

	// 4. Create the GitHub client (PAT or app auth) and resolve the identity
	// the bridge comments as, for webhook echo suppression.
	var tracker *githubadapter.Client
	if cfg.UsesAppAuth() {
		key, err := os.ReadFile(cfg.GitHub.PrivateKey)
		if err != nil {
			return err
		}
		tracker, err = githubadapter.NewAppClient(cfg.GitHub.AppID, key)
		if err != nil {
			return err
		}
		slog.Info("github client created", "auth", "app", "app_id", cfg.GitHub.AppID)
	} else {
		tracker = githubadapter.NewClient(cfg.GitHub.Token)
		slog.Info("github client created", "auth", "token")
	}

	botLogin, err := tracker.AuthenticatedLogin(ctx)
	if err != nil {
		return err
	}
	slog.Info("github identity resolved", "login", botLogin)

	// 5. Create the chat client. The publish closure resolves the bridge
	// lazily: no event can arrive before the gateway is opened below, and by
	// then the bridge exists.
	var bridge *application.Bridge
	publish := func(ev model.Event) { bridge.Publish(ev) }

	chat, err := discordadapter.New(cfg.Discord.Token, publish, slog.Default())
	if err != nil {
		return err
	}

	// 6. Wire the synchronization engine and start dispatching.
	routes := routing.NewTable(cfg.Bindings())
	bridge = application.NewBridge(chat, tracker, store, routes, cfg.TriggerEmoji, slog.Default())
	go bridge.Run(ctx)

	// 7. Open the gateway connection.
	if err := chat.Open(); err != nil {
		return err
	}
	defer func() {
		if closeErr := chat.Close(); closeErr != nil {
			slog.Error("error closing gateway", "error", closeErr)
		}
	}()
	slog.Info("discord gateway connected")

	// 8. Start the webhook server.
	handler := webhook.NewHandler(store, publish, botLogin, db, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           webhook.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("webhook server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook server error", "error", err)
		}
	}()

	slog.Info("discordissues started")

	// 9. Wait for shutdown signal, then stop accepting deliveries. In-flight
	// event handlers are not drained.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("webhook server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
