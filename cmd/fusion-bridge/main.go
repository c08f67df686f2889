package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/austin-smith/fusion-bridge-sub012/internal/actions"
	"github.com/austin-smith/fusion-bridge-sub012/internal/automation"
	"github.com/austin-smith/fusion-bridge-sub012/internal/config"
	"github.com/austin-smith/fusion-bridge-sub012/internal/connector"
	"github.com/austin-smith/fusion-bridge-sub012/internal/drivers"
	"github.com/austin-smith/fusion-bridge-sub012/internal/feed"
	"github.com/austin-smith/fusion-bridge-sub012/internal/httpapi"
	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers/genea"
	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers/piko"
	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers/yolink"
	"github.com/austin-smith/fusion-bridge-sub012/internal/pipeline"
	"github.com/austin-smith/fusion-bridge-sub012/internal/state"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	db, err := store.OpenPostgres(cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SSLMode)
	if err != nil {
		slog.Error("db init failed", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("schema init failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	cache := state.NewCache(rdb)

	hub := feed.NewHub()
	registry := actions.NewRegistry()
	engine := automation.New(repo, cache, repo, registry)
	pipe := pipeline.New(repo, cache, hub, engine)

	pikoAPI := drivers.NewPikoAPI(nil)
	registry.Register(actions.NewCreateEvent(pipe))
	registry.Register(actions.NewBookmark(pikoAPI))
	registry.Register(actions.NewHTTP(nil))
	registry.Register(actions.NewNotification(notificationDriver(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	managers := connector.NewRegistry()
	var handlers []actions.DeviceActionHandler
	conns, err := repo.ListEnabledConnectors(ctx)
	if err != nil {
		slog.Error("connector list failed", "error", err)
		os.Exit(1)
	}
	for i := range conns {
		conn := &conns[i]
		switch model.ConnectorCategory(conn.Category) {
		case model.ConnectorYoLink:
			mgr, err := connector.NewYoLink(conn, pipe, yolink.New(), nil)
			if err != nil {
				slog.Error("yolink connector skipped", "connector_id", conn.ID, "error", err)
				continue
			}
			managers.Add(mgr)
			handlers = append(handlers, mgr)
		case model.ConnectorPiko:
			mgr, err := connector.NewPiko(conn, pipe, piko.New())
			if err != nil {
				slog.Error("piko connector skipped", "connector_id", conn.ID, "error", err)
				continue
			}
			managers.Add(mgr)
			registerPikoAPI(pikoAPI, conn)
		case model.ConnectorGenea:
			// Webhook-driven; no standing connection.
		default:
			slog.Warn("unknown connector category", "connector_id", conn.ID, "category", conn.Category)
		}
	}
	registry.Register(actions.NewDeviceState(handlers...))

	if err := engine.Start(ctx); err != nil {
		slog.Error("rule engine start failed", "error", err)
		os.Exit(1)
	}
	managers.StartAll(ctx)

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RetentionCron, func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.EventRetention)
		n, err := repo.PruneEventsBefore(context.Background(), cutoff)
		if err != nil {
			slog.Error("event retention prune failed", "error", err)
			return
		}
		slog.Info("event retention prune", "deleted", n, "cutoff", cutoff)
	}); err != nil {
		slog.Error("retention schedule invalid", "cron", cfg.RetentionCron, "error", err)
		os.Exit(1)
	}
	sched.Start()

	api := httpapi.New(repo, cache, hub, pipe, genea.New())
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: api.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()
	slog.Info("fusion-bridge started", "port", cfg.Port, "connectors", len(conns))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	managers.StopAll()
	engine.Drain()
	<-sched.Stop().Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	slog.Info("fusion-bridge stopped")
}

func registerPikoAPI(api *drivers.PikoAPI, conn *store.Connector) {
	var cfg struct {
		APIURL string `json:"api_url"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(conn.Config, &cfg); err != nil || cfg.APIURL == "" {
		slog.Warn("piko connector has no api_url, bookmarks disabled", "connector_id", conn.ID)
		return
	}
	api.RegisterSystem(conn.ID.String(), cfg.APIURL, cfg.Token)
}

func notificationDriver(cfg config.Config) actions.NotificationDriver {
	if cfg.PushoverToken != "" && cfg.PushoverUserKey != "" {
		return drivers.NewPushover(cfg.PushoverToken, cfg.PushoverUserKey, nil)
	}
	if cfg.PushcutAPIKey != "" {
		return drivers.NewPushcut(cfg.PushcutAPIKey, cfg.PushcutNotifName, nil)
	}
	return drivers.LogOnly{}
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
