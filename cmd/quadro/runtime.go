package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evanschultz/quadro/internal/adapters/server"
	"github.com/evanschultz/quadro/internal/adapters/server/common"
	"github.com/evanschultz/quadro/internal/adapters/storage/rediscache"
	"github.com/evanschultz/quadro/internal/adapters/storage/sqlite"
	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/config"
	"github.com/evanschultz/quadro/internal/domain"
	"github.com/evanschultz/quadro/internal/platform"
)

// runtimeEnv is everything a command needs once config is resolved: the
// logger, the sqlite repository, the optional Redis cache, and a loaded store.
type runtimeEnv struct {
	appName    string
	configPath string
	paths      platform.Paths
	cfg        config.Config
	lanes      []app.LaneConfig
	drag       app.DragConfig

	logger *runtimeLogger
	repo   *sqlite.Repository
	redis  *redis.Client
	cache  *rediscache.Cache
	store  *app.Store
}

// openRuntime resolves paths and config, opens storage, and loads the store.
// command "tui" mutes the console sink.
func openRuntime(ctx context.Context, opts *rootOptions, command string, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return nil, err
	}

	configPath := opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("QUADRO_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("QUADRO_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		logger.SetConsoleEnabled(false)
	}
	env := &runtimeEnv{
		appName:    opts.appName,
		configPath: configPath,
		paths:      paths,
		cfg:        cfg,
		lanes:      appLanes(cfg),
		drag: app.DragConfig{
			PointerMinDistance: cfg.Drag.PointerMinDistance,
			TouchLongPress:     cfg.Drag.TouchLongPress(),
			TouchTolerance:     cfg.Drag.TouchTolerance,
		},
		logger: logger,
	}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	if err := config.EnsureConfigDir(cfg.Database.Path); err != nil {
		env.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		env.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	env.repo = repo
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path)

	var persist app.Persistence = repo
	if addr := strings.TrimSpace(cfg.Cache.RedisAddr); addr != "" {
		env.redis = redis.NewClient(&redis.Options{Addr: addr})
		env.cache = rediscache.NewCache(repo, env.redis, cfg.Cache.TTL())
		persist = env.cache
		logger.Info("redis cache enabled", "addr", addr, "ttl", cfg.Cache.TTL())
	}

	storeLogger := logger.StoreLogger()
	env.store = app.NewStore(persist, uuid.NewString, time.Now,
		app.WithLogger(storeLogger),
		app.WithNotifier(app.LogNotifier{Logger: storeLogger}),
		app.WithProfiles(app.StaticProfiles(cfg.Profiles)),
	)
	if _, err := env.store.FetchTasks(ctx, app.TaskFilter{}); err != nil {
		logger.Error("initial fetch failed", "err", err)
		env.Close()
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return env, nil
}

// adapter exposes the store through the transport-neutral board service.
func (e *runtimeEnv) adapter() *common.StoreAdapter {
	return common.NewStoreAdapter(e.store, e.lanes, e.drag)
}

// probes lists the dependencies /readyz checks.
func (e *runtimeEnv) probes() []server.Probe {
	probes := []server.Probe{{Name: "sqlite", Pinger: e.repo}}
	if e.cache != nil {
		probes = append(probes, server.Probe{Name: "redis", Pinger: e.cache})
	}
	return probes
}

// Close releases everything openRuntime acquired, in reverse order.
func (e *runtimeEnv) Close() {
	if e == nil {
		return
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("redis close failed", "err", err)
		}
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
		}
	}
	if err := e.logger.Close(); err != nil && e.logger.ConsoleEnabled() {
		e.logger.Warn("close runtime log sink failed", "err", err)
	}
}

// appLanes maps validated config lanes onto the board projection.
func appLanes(cfg config.Config) []app.LaneConfig {
	configured := cfg.BoardLanes()
	out := make([]app.LaneConfig, 0, len(configured))
	for _, lane := range configured {
		out = append(out, app.LaneConfig{
			Status:   domain.Status(lane.Status),
			Name:     lane.Name,
			WIPLimit: lane.WIPLimit,
		})
	}
	return out
}
