package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	callhandler "qrcall/internal/calls/handler"
	callmetrics "qrcall/internal/calls/metrics"
	"qrcall/internal/calls/service"
	callstore "qrcall/internal/calls/store"
	"qrcall/internal/events"
	"qrcall/internal/health"
	idhandler "qrcall/internal/identity/handler"
	idservice "qrcall/internal/identity/service"
	idstore "qrcall/internal/identity/store"
	jwttoken "qrcall/internal/jwt_token"
	"qrcall/internal/masked"
	"qrcall/internal/notify"
	"qrcall/internal/platform/config"
	"qrcall/internal/platform/httpserver"
	"qrcall/internal/platform/kafka"
	"qrcall/internal/platform/logger"
	"qrcall/internal/platform/metrics"
	"qrcall/internal/platform/middleware"
	"qrcall/internal/platform/mqtt"
	"qrcall/internal/platform/postgres"
	"qrcall/internal/platform/redis"
	rlmw "qrcall/internal/ratelimit/middleware"
	rlmodels "qrcall/internal/ratelimit/models"
	"qrcall/internal/ratelimit/store/bucket"
	"qrcall/internal/realtime"
	"qrcall/internal/rtc"
	"qrcall/pkg/platform/middleware/metadata"
)

const (
	shutdownTimeout     = 10 * time.Second
	bucketSweepInterval = time.Minute
	notifyRetryWait     = 500 * time.Millisecond
	webhookPath         = "/calls/webhook/masked"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Environment)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	db       *sql.DB
	calls    service.Store
	identity interface {
		idservice.Store
		idstore.Saver
	}
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*stores, error) {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if db == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{calls: callstore.NewInMemory(), identity: idstore.NewInMemory()}, nil
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{db: db, calls: callstore.NewPostgres(db), identity: idstore.NewPostgres(db)}, nil
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	callMetrics := callmetrics.New()
	httpMetrics := metrics.New()
	checker := health.New()
	if st.db != nil {
		checker.Critical("postgres", st.db.PingContext)
	}
	if rdb != nil {
		checker.Optional("redis", rdb.Health)
	}

	// Masked calling
	var maskedClient *masked.Client
	if cfg.Masked.Configured() {
		maskedClient = masked.NewClient(cfg.Masked,
			masked.WithLogger(log),
			masked.WithMaxDuration(cfg.Calls.MaxDuration),
		)
		checker.Optional("masked_relay", health.Breaker(maskedClient.Breaker()))
	} else {
		log.Info("masked relay not configured, offering direct calls only")
	}

	idService := idservice.New(st.identity,
		idservice.WithLogger(log),
		idservice.WithMaskedAvailable(maskedClient != nil),
	)
	if cfg.IsDevelopment() {
		if err := seedDemo(ctx, st.db, st.identity, jwtService, log); err != nil {
			return err
		}
	}

	issuer := rtc.NewTRTC(cfg.RTC.SDKAppID, cfg.RTC.SecretKey)
	if !issuer.Configured() {
		log.Warn("TRTC credentials missing, direct calls will fail")
	}

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(callMetrics),
	}
	if maskedClient != nil {
		svcOpts = append(svcOpts, service.WithMaskedRelay(maskedClient))
	}

	// Push notifications
	var dispatcher *notify.Dispatcher
	if gateway := notify.NewHTTPGateway(cfg.Notify, notify.WithGatewayLogger(log)); gateway != nil {
		dispatcher = notify.NewDispatcher(gateway,
			notify.WithLogger(log),
			notify.WithMetrics(callMetrics),
			notify.WithWorkers(cfg.Notify.Workers),
			notify.WithQueueSize(cfg.Notify.QueueSize),
			notify.WithTimeout(cfg.Notify.Timeout),
			notify.WithRetry(cfg.Notify.MaxAttempts, notifyRetryWait),
		)
		dispatcher.Start(context.WithoutCancel(ctx))
		defer dispatcher.Stop()
		svcOpts = append(svcOpts, service.WithNotifier(dispatcher))
	} else {
		log.Info("push gateway not configured, notifications disabled")
	}

	// Lifecycle events
	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		publisher := events.NewPublisher(producer,
			events.WithLogger(log),
			events.WithMetrics(callMetrics),
		)
		go publisher.Run(context.WithoutCancel(ctx))
		defer publisher.Close()
		checker.Optional("kafka", producer.Health)
		svcOpts = append(svcOpts, service.WithEvents(publisher))
	}

	// Realtime
	hub := realtime.NewHub(realtime.WithHubLogger(log))
	callMetrics.TrackConnections(hub.Connections)
	var fanoutOpts []realtime.FanoutOption
	var relay *realtime.Relay
	if rdb != nil {
		relay = realtime.NewRelay(rdb, cfg.Realtime.RelayChannel, hub, log)
		fanoutOpts = append(fanoutOpts, realtime.WithRelay(relay))
	}
	mq, err := mqtt.New(cfg.MQTT, log)
	if err != nil {
		return err
	}
	if mq != nil {
		defer mq.Close()
		fanoutOpts = append(fanoutOpts, realtime.WithMirror(
			realtime.NewMirror(mq, cfg.MQTT.TopicPrefix, cfg.MQTT.BroadcastTopic, log),
		))
		checker.Optional("mqtt", health.Connected(mq.IsConnected))
	}
	fanoutOpts = append(fanoutOpts, realtime.WithFanoutLogger(log))
	svcOpts = append(svcOpts, service.WithRealtime(realtime.NewFanout(hub, fanoutOpts...)))

	callService := service.New(st.calls, idService, issuer, jwtService, service.Config{
		MaxDuration:   cfg.Calls.MaxDuration,
		RingTimeout:   cfg.Calls.RingTimeout,
		SweepInterval: cfg.Calls.SweepInterval,
		CredentialTTL: cfg.RTC.CredentialTTL,
		WebhookURL:    strings.TrimRight(cfg.PublicURL, "/") + webhookPath,
		MaskedBudget:  cfg.Masked.Budget,
	}, svcOpts...)

	// Rate limiting
	memBuckets := bucket.NewInMemoryBucketStore()
	var buckets rlmw.BucketStore = memBuckets
	limiterOpts := []rlmw.Option{rlmw.WithDisabled(cfg.RateLimit.Disabled)}
	if rdb != nil {
		buckets = bucket.NewRedisBucketStore(rdb)
		limiterOpts = append(limiterOpts, rlmw.WithFallback(memBuckets))
	}
	limiter := rlmw.New(buckets, rlmodels.PoliciesFromConfig(cfg.RateLimit), log, limiterOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.LatencyMiddleware(httpMetrics))

	r.Get("/health", checker.ServeHTTP)
	r.Handle("/metrics", metrics.Handler())
	r.Handle("/ws", realtime.NewServer(hub, jwtService, st.calls,
		realtime.WithServerLogger(log),
		realtime.WithAllowedOrigins(cfg.Realtime.AllowedOrigins),
	))
	idhandler.New(idService, log).Register(r)
	callhandler.New(callService, jwtService, log,
		callhandler.WithRateLimiter(limiter),
		callhandler.WithWebhookSecret(cfg.Masked.WebhookSecret),
	).Register(r)

	srv := httpserver.New(cfg.Addr, r)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting qrcall", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		callService.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweepBuckets(gctx, memBuckets)
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil {
				log.Error("realtime relay stopped, events stay instance local", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func sweepBuckets(ctx context.Context, store *bucket.InMemoryBucketStore) {
	ticker := time.NewTicker(bucketSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}
