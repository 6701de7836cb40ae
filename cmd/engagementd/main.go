// Command engagementd runs the engagement engine as a standalone process: a
// Postgres-backed notification queue, Redis-backed rate-limit counters, and
// rule, template and journey definitions loaded from YAML files.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel/postmark"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/config"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/delivery"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/journey"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/logger"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/personalization"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/pg"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/redis"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/trigger"
	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/svc/engagement"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`

	RulesPath     string `env:"ENGAGEMENT_RULES_PATH" envDefault:"rules.yaml"`
	TemplatesPath string `env:"ENGAGEMENT_TEMPLATES_PATH" envDefault:"templates.yaml"`
	JourneysPath  string `env:"ENGAGEMENT_JOURNEYS_PATH" envDefault:"journeys.yaml"`

	BatchSize     int           `env:"ENGAGEMENT_BATCH_SIZE" envDefault:"50"`
	BatchInterval time.Duration `env:"ENGAGEMENT_BATCH_INTERVAL" envDefault:"10s"`
	SweepInterval time.Duration `env:"ENGAGEMENT_SWEEP_INTERVAL" envDefault:"1m"`

	// PostmarkEnabled switches the email channel from the dev sender to the
	// Postmark adapter.
	PostmarkEnabled bool `env:"POSTMARK_ENABLED" envDefault:"false"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var app appConfig
	config.MustLoad(&app)

	logOpt := logger.WithDevelopment("engagementd")
	if app.Env == "production" {
		logOpt = logger.WithProduction("engagementd")
	}
	log := logger.New(logOpt)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.Error("postgres connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.Error("migrations failed", logger.Error(err))
		os.Exit(1)
	}

	store, err := delivery.NewPostgresStorage(pool)
	if err != nil {
		log.Error("queue storage init failed", logger.Error(err))
		os.Exit(1)
	}

	var redisCfg redis.Config
	config.MustLoad(&redisCfg)

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	counter, err := trigger.NewRedisCounter(redisClient)
	if err != nil {
		log.Error("send counter init failed", logger.Error(err))
		os.Exit(1)
	}

	templates, err := personalization.LoadTemplateFile(app.TemplatesPath)
	if err != nil {
		log.Error("template file load failed", logger.Error(err))
		os.Exit(1)
	}
	resolver, err := personalization.NewResolver(templates,
		personalization.WithResolverLogger(log))
	if err != nil {
		log.Error("resolver init failed", logger.Error(err))
		os.Exit(1)
	}

	registry := channel.NewRegistry(
		emailSender(app, log),
		channel.NewDevSender(channel.Push, log),
		channel.NewDevSender(channel.InApp, log),
	)

	pipeline, err := delivery.NewPipeline(store, store, registry, resolver,
		personalization.DefaultPreferenceSource{},
		delivery.WithBatchSize(app.BatchSize),
		delivery.WithBatchInterval(app.BatchInterval),
		delivery.WithLogger(log),
	)
	if err != nil {
		log.Error("pipeline init failed", logger.Error(err))
		os.Exit(1)
	}

	rules, err := trigger.LoadRuleFile(app.RulesPath)
	if err != nil {
		log.Error("rule file load failed", logger.Error(err))
		os.Exit(1)
	}
	triggers, err := trigger.NewEngine(rules, pipeline, counter,
		trigger.WithEngineLogger(log))
	if err != nil {
		log.Error("trigger engine init failed", logger.Error(err))
		os.Exit(1)
	}

	journeyTemplates, err := journey.LoadTemplateFile(app.JourneysPath)
	if err != nil {
		log.Error("journey file load failed", logger.Error(err))
		os.Exit(1)
	}
	journeys, err := journey.NewEngine(journeyTemplates, triggers,
		journey.WithSweepInterval(app.SweepInterval),
		journey.WithEngineLogger(log))
	if err != nil {
		log.Error("journey engine init failed", logger.Error(err))
		os.Exit(1)
	}

	svc, err := engagement.NewService(triggers, pipeline, journeys,
		engagement.WithLogger(log))
	if err != nil {
		log.Error("service init failed", logger.Error(err))
		os.Exit(1)
	}

	log.Info("engagementd starting")
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("engagementd stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("engagementd stopped")
}

func emailSender(app appConfig, log *slog.Logger) channel.Sender {
	if !app.PostmarkEnabled {
		return channel.NewDevSender(channel.Email, log)
	}

	var cfg postmark.Config
	config.MustLoad(&cfg)
	return postmark.MustNew(cfg)
}
