package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/trackerplugins/scheduled/internal/config"
	"github.com/trackerplugins/scheduled/internal/db"
	"github.com/trackerplugins/scheduled/internal/events"
	"github.com/trackerplugins/scheduled/internal/http/api"
	"github.com/trackerplugins/scheduled/internal/http/api/scheduled/endpoints"
	"github.com/trackerplugins/scheduled/internal/http/middleware"
	"github.com/trackerplugins/scheduled/internal/runlock"
	"github.com/trackerplugins/scheduled/internal/scheduler"
	"github.com/trackerplugins/scheduled/internal/ticket"
)

func runServe(_ *cli.Context) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to serve")
	}

	if err := store.Migrate(context.Background()); err != nil {
		return err
	}

	runner, cleanup := buildRunner(cfg, store)
	defer cleanup()

	r := gin.Default()
	registerRoutes(r, cfg, store, runner)

	if cfg.UpdateCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.UpdateCron, func() {
			fired, failed, err := runner.Run(context.Background(), time.Now())
			if err != nil {
				log.Error().Err(err).Msg("periodic due evaluation failed")
				return
			}
			log.Info().Int("fired", len(fired)).Int("failed", len(failed)).Msg("periodic due evaluation done")
		}); err != nil {
			return fmt.Errorf("invalid UPDATE_CRON %q: %w", cfg.UpdateCron, err)
		}
		c.Start()
		defer c.Stop()
		log.Info().Str("spec", cfg.UpdateCron).Msg("built-in update trigger enabled")
	}

	log.Info().Str("address", cfg.ServerAddress).Msg("listening")
	return r.Run(cfg.ServerAddress)
}

// registerRoutes sets up all application routes.
func registerRoutes(r *gin.Engine, cfg *config.Config, store db.Store, runner *scheduler.Runner) {
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"X-Operator-Token",
		},
		AllowCredentials: false,
	}))

	ctl := endpoints.NewScheduleController(store, runner)

	api.MountGroup(r, api.GroupConfig{
		Auth:      true,
		SecretKey: cfg.JWTSecret,
	},
		endpoints.ScheduledModule(ctl),
	)

	api.MountGroup(r, api.GroupConfig{
		Middleware: []gin.HandlerFunc{middleware.OperatorToken(cfg.OperatorTokenHash)},
	},
		endpoints.RunModule(ctl),
	)
}

// buildRunner wires the batch pipeline: emitter against the tracker, plus the
// optional Redis run lock and MQTT fired-event publisher.
func buildRunner(cfg *config.Config, store db.Store) (*scheduler.Runner, func()) {
	sink := ticket.NewHTTPSink(cfg.TrackerURL, cfg.TrackerToken, cfg.TrackerTimeout)
	runner := &scheduler.Runner{
		Store:   store,
		Emitter: ticket.NewEmitter(sink, cfg.Reporter, ticket.RequireSummary),
	}

	cleanup := func() {}

	if cfg.RedisAddress != "" {
		runner.Lock = runlock.NewRedisLock(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword, 5*time.Minute)
	}
	if cfg.MQTTBrokerURL != "" {
		pub, err := events.NewMQTTPublisher(cfg.MQTTBrokerURL, "scheduled-plugin")
		if err != nil {
			log.Warn().Err(err).Msg("fired-event publishing disabled")
		} else {
			runner.Events = pub
			cleanup = pub.Close
		}
	}
	return runner, cleanup
}
