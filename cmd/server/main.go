package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/lupppig/deliverynotify/internal/agent"
	"github.com/lupppig/deliverynotify/internal/broker"
	natsbroker "github.com/lupppig/deliverynotify/internal/broker/nats"
	"github.com/lupppig/deliverynotify/internal/config"
	"github.com/lupppig/deliverynotify/internal/dispatch"
	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/httpclient"
	"github.com/lupppig/deliverynotify/internal/logging"
	"github.com/lupppig/deliverynotify/internal/metrics"
	"github.com/lupppig/deliverynotify/internal/proximity"
	"github.com/lupppig/deliverynotify/internal/retry"
	"github.com/lupppig/deliverynotify/internal/server"
	"github.com/lupppig/deliverynotify/internal/settings"
	"github.com/lupppig/deliverynotify/internal/store"
	"github.com/lupppig/deliverynotify/internal/store/memory"
	"github.com/lupppig/deliverynotify/internal/store/postgres"
	redisstore "github.com/lupppig/deliverynotify/internal/store/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "config file (default is $HOME/.deliverynotify.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	closer := logging.Init(cfg.Server.LogLevel, cfg.Server.LogFile)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", slog.String("code", "SYS_FATAL"), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting deliverynotify server",
		slog.String("code", "SYS_STARTUP"),
		slog.String("http_addr", cfg.Server.HTTPAddr),
		slog.String("grpc_addr", cfg.Server.GRPCAddr),
	)
	metrics.Register(prometheus.DefaultRegisterer)

	var (
		subs       store.SubscriptionStore
		dispatches store.DispatchStore
	)
	if cfg.Server.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		subs, dispatches = postgres.NewSubscriptionStore(db), postgres.NewDispatchStore(db)
	} else {
		slog.Warn("no database configured, using in-memory stores", slog.String("code", "SYS_CONFIG"))
		subs, dispatches = memory.NewSubscriptionStore(), memory.NewDispatchStore()
	}

	var backend settings.Backend = settings.NewMemoryBackend()
	if cfg.Server.RedisURL != "" {
		rb, err := redisstore.NewSettingsBackend(cfg.Server.RedisURL)
		if err != nil {
			return err
		}
		defer rb.Close()
		backend = rb
	}
	settingsStore := settings.NewStore(backend)

	var (
		publisher broker.Publisher
		nb        *natsbroker.Publisher
	)
	if cfg.Server.NATSURL != "" {
		var err error
		nb, err = natsbroker.New(ctx, cfg.Server.NATSURL)
		if err != nil {
			return err
		}
		defer nb.Close()
		publisher = nb
	} else {
		slog.Warn("no NATS configured, background push path disabled", slog.String("code", "SYS_CONFIG"))
	}

	hub := events.NewHub()
	dispatcher := dispatch.NewDispatcher(publisher, hub, subs, dispatches)

	client := httpclient.New(10 * time.Second)
	opts := []agent.Option{agent.WithFetcher(agent.NewHTTPFetcher(client, cfg.Server.AppBaseURL))}
	if cfg.Server.AnalyticsURL != "" {
		opts = append(opts, agent.WithAnalytics(agent.NewHTTPAnalytics(client, cfg.Server.AnalyticsURL)))
	}
	agentCfg := agent.DefaultConfig()
	agentCfg.Version = cfg.Agent.Version
	agentCfg.UserID = cfg.Agent.UserID
	agentCfg.PushTimeout = cfg.Agent.PushTimeout
	ag := agent.New(agentCfg, agent.NewMemorySurface(), events.NewWindows(hub, cfg.Agent.UserID), settingsStore, opts...)

	auth := server.NewAuthInterceptor(cfg.Server.AdminAPIKey)
	if !auth.Enabled() {
		slog.Warn("no admin API key configured, admin routes are open", slog.String("code", "SYS_CONFIG"))
	}

	api := server.NewAPI(server.Deps{
		Hub:           hub,
		Dispatcher:    dispatcher,
		Subscriptions: subs,
		Dispatches:    dispatches,
		Settings:      settingsStore,
		Monitor:       proximity.NewMonitor(),
		Agent:         ag,
		Auth:          auth,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, healthServer := server.NewGRPCServer(hub, auth)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ag.Serve(gctx)
	})

	g.Go(func() error {
		if _, err := ag.Submit(gctx, agent.Envelope{Kind: agent.KindInstall}); err != nil {
			return fmt.Errorf("agent install: %w", err)
		}
		if _, err := ag.Submit(gctx, agent.Envelope{Kind: agent.KindActivate}); err != nil {
			return fmt.Errorf("agent activate: %w", err)
		}
		return nil
	})

	if nb != nil {
		durable := "push-agent"
		if cfg.Agent.UserID != "" {
			durable += "-" + cfg.Agent.UserID
		}
		redelivery := retry.DefaultConfig()
		redelivery.MaxDeliveries = cfg.Agent.MaxDeliveries
		redelivery.FirstDelay = cfg.Agent.RedeliveryDelay
		cons, err := nb.PushConsumer(ctx, durable, cfg.Agent.UserID, redelivery.MaxDeliveries)
		if err != nil {
			return err
		}
		consumer := agent.NewConsumer(cons, ag, retry.NewPolicy(redelivery))
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("HTTP server listening", slog.String("code", "SYS_STARTUP"), slog.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("gRPC server listening", slog.String("code", "SYS_STARTUP"), slog.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", slog.String("code", "SYS_SHUTDOWN"))
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
