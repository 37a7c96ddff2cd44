// Command leadproxy runs the edge lead forwarder for the marketing
// landing page: it accepts sanitized lead payloads, writes them to the
// external lead database, and optionally mirrors analytics state to
// Redis and sends lead notification emails.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimbleresolve/leadgate/core/config"
	"github.com/nimbleresolve/leadgate/core/dispatch"
	"github.com/nimbleresolve/leadgate/core/event"
	"github.com/nimbleresolve/leadgate/core/logger"
	"github.com/nimbleresolve/leadgate/core/server"
	"github.com/nimbleresolve/leadgate/core/store"
	"github.com/nimbleresolve/leadgate/integration/airtable"
	redisint "github.com/nimbleresolve/leadgate/integration/database/redis"
	"github.com/nimbleresolve/leadgate/integration/email/postmark"
	"github.com/nimbleresolve/leadgate/proxy"
)

type appConfig struct {
	AppName  string `env:"APP_NAME" envDefault:"leadproxy"`
	Env      string `env:"APP_ENV" envDefault:"production"`
	RedisOn  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	NotifyOn bool   `env:"LEAD_NOTIFY_ENABLED" envDefault:"false"`

	Server   server.Config
	Proxy    proxy.Config
	Airtable airtable.Config
	Redis    redisint.Config
	Postmark postmark.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	logOpts := []logger.Option{logger.WithProduction(cfg.AppName)}
	if cfg.Env == "development" {
		logOpts = []logger.Option{logger.WithDevelopment(cfg.AppName)}
	}
	log := logger.New(logOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := airtable.New(cfg.Airtable)
	if err != nil {
		log.Error("airtable client init failed", logger.Error(err))
		os.Exit(1)
	}

	opts := []proxy.ServiceOption{proxy.WithLogger(log)}
	var readiness []func(context.Context) error

	if cfg.RedisOn {
		redisClient, err := redisint.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", logger.Error(err))
			os.Exit(1)
		}
		defer redisClient.Close()

		s := store.New(redisint.NewBackend(redisClient, cfg.AppName), store.WithLogger(log))
		tracker := event.NewTracker(event.WithStore(s), event.WithLogger(log))
		opts = append(opts, proxy.WithTracker(tracker))
		readiness = append(readiness, redisint.Healthcheck(redisClient))
	}

	// Registered after the Redis close so the drain runs first and
	// store-backed tasks keep a live connection during shutdown.
	dispatcher := dispatch.New(dispatch.WithLogger(log))
	defer func() {
		if err := dispatcher.Close(); err != nil {
			log.Warn("background tasks did not drain", logger.Error(err))
		}
	}()
	opts = append(opts, proxy.WithDispatcher(dispatcher))

	if cfg.NotifyOn {
		sender, err := postmark.New(cfg.Postmark)
		if err != nil {
			log.Error("postmark client init failed", logger.Error(err))
			os.Exit(1)
		}
		opts = append(opts, proxy.WithNotifier(sender, cfg.Postmark.NotifyEmail))
	}

	svc := proxy.NewService(airtable.NewForwarder(client), opts...)
	router := proxy.NewRouter(cfg.Proxy, svc, log, readiness...)

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		log.Error("server init failed", logger.Error(err))
		os.Exit(1)
	}

	if err := srv.Run(ctx, router); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}
