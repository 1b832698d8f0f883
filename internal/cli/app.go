package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lazypower/vaultactivity/internal/activity"
	"github.com/lazypower/vaultactivity/internal/config"
	"github.com/lazypower/vaultactivity/internal/engine"
	"github.com/lazypower/vaultactivity/internal/notice"
	"github.com/lazypower/vaultactivity/internal/storage"
	"github.com/lazypower/vaultactivity/internal/vault"
)

// app is everything a command needs, wired from the config.
type app struct {
	cfg     config.Config
	logger  slog.Logger
	vault   *vault.Vault
	backend storage.Backend
	tracker *activity.Tracker
	notices *notice.Feed
	engine  *engine.Engine
}

func newLogger() slog.Logger {
	logger := slog.Make(sloghuman.Sink(os.Stderr))
	if verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if vaultPath != "" {
		cfg.Vault.Path = vaultPath
	}
	if storageDSN != "" {
		cfg.Storage.DSN = storageDSN
	}
	if exclude != "" {
		cfg.Tracking.ExcludedFolders = activity.ParseFolderList(exclude)
	}
	return cfg, nil
}

func opener(cfg config.Config) vault.Opener {
	fields := strings.Fields(cfg.Vault.Opener)
	if len(fields) == 0 {
		return vault.DefaultOpener()
	}
	return vault.CommandOpener{Command: fields[0], Args: fields[1:]}
}

// openApp wires the tracker and loads stored activity. reg may be nil.
// printNotices echoes user notices to stderr, for one-shot commands.
func openApp(ctx context.Context, reg prometheus.Registerer, printNotices bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	v, err := vault.Open(cfg.Vault.Path, vault.Options{
		ConfigDir: cfg.Vault.ConfigDir,
		Opener:    opener(cfg),
	})
	if err != nil {
		return nil, err
	}

	backend, err := storage.Build(cfg.Storage.DSN, v.Root())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	clock := quartz.NewReal()
	feed := notice.NewFeed(logger.Named("notice"), clock, notice.DefaultCapacity)
	if printNotices {
		feed.OnNotice(func(n notice.Notice) {
			fmt.Fprintln(os.Stderr, n.Message)
		})
	}
	hub := engine.NewHub()

	var metrics *activity.Metrics
	if reg != nil {
		metrics = activity.NewMetrics(reg)
	}

	tracker := activity.New(activity.Options{
		Storage:       backend,
		DataPath:      v.DataPath(),
		ConfigDir:     v.ConfigDir(),
		Settings:      cfg.Settings(),
		Clock:         clock,
		Logger:        logger.Named("tracker"),
		Notifier:      feed,
		OnRefresh:     hub.Publish,
		Metrics:       metrics,
		SaveDelay:     time.Duration(cfg.Schedule.SaveDelay),
		RefreshDelay:  time.Duration(cfg.Schedule.RefreshDelay),
		FlushInterval: time.Duration(cfg.Schedule.FlushInterval),
	})
	// A failed load leaves the store empty and has already been reported.
	_ = tracker.Load(ctx)

	return &app{
		cfg:     cfg,
		logger:  logger,
		vault:   v,
		backend: backend,
		tracker: tracker,
		notices: feed,
		engine: engine.New(engine.Options{
			Tracker: tracker,
			Vault:   v,
			Notices: feed,
			Hub:     hub,
			Clock:   clock,
			Logger:  logger.Named("engine"),
		}),
	}, nil
}

// Close shuts the tracker down and releases storage. Only commands that
// changed the data save it; the rest leave the stored file untouched.
func (a *app) Close(ctx context.Context, writes bool) error {
	var err error
	if writes {
		err = a.tracker.Close(ctx)
	} else {
		a.tracker.Discard()
	}
	if cerr := a.backend.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
