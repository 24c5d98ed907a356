package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/config"
	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/notify"
	"github.com/headline-goat/split-goat/internal/store"
)

type globalOptions struct {
	configPath string
	dbPath     string
}

// app is everything a command needs, opened from the loaded config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.SQLiteStore
	engine   *engine.Engine
	registry *prometheus.Registry
}

// withApp loads config, opens the database and builds the engine, runs fn,
// then releases everything.
func withApp(opts *globalOptions, fn func(*app) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	s, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(reg)),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		n := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer n.Close()
		engineOpts = append(engineOpts, engine.WithNotifier(n))
	}

	return fn(&app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		engine:   engine.New(engine.StoreCollaborators(s), engineOpts...),
		registry: reg,
	})
}

// findCampaign resolves a campaign by id, falling back to its name.
func (a *app) findCampaign(ctx context.Context, ref string) (*store.Campaign, error) {
	c, err := a.engine.Campaign(ctx, ref)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	campaigns, err := a.engine.Campaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	for _, c := range campaigns {
		if c.Name == ref {
			return c, nil
		}
	}
	return nil, fmt.Errorf("campaign '%s' not found", ref)
}

func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
