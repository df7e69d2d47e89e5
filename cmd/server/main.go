// Server runs the card game account API over HTTP and a gRPC health endpoint.
// Without DATABASE_URL it runs on in-memory storage; without REDIS_ADDR the revocation
// tracker is local to the process.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	accountrepo "github.com/CCodeCommunity/CardGameBackend/internal/account/repository"
	accountservice "github.com/CCodeCommunity/CardGameBackend/internal/account/service"
	"github.com/CCodeCommunity/CardGameBackend/internal/accountstate"
	"github.com/CCodeCommunity/CardGameBackend/internal/audit"
	auditrepo "github.com/CCodeCommunity/CardGameBackend/internal/audit/repository"
	"github.com/CCodeCommunity/CardGameBackend/internal/config"
	"github.com/CCodeCommunity/CardGameBackend/internal/db"
	healthhandler "github.com/CCodeCommunity/CardGameBackend/internal/health/handler"
	identityservice "github.com/CCodeCommunity/CardGameBackend/internal/identity/service"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/rbac"
	"github.com/CCodeCommunity/CardGameBackend/internal/revocation"
	"github.com/CCodeCommunity/CardGameBackend/internal/security"
	"github.com/CCodeCommunity/CardGameBackend/internal/server"
	"github.com/CCodeCommunity/CardGameBackend/internal/server/middleware"
	sessionrepo "github.com/CCodeCommunity/CardGameBackend/internal/session/repository"
	"github.com/CCodeCommunity/CardGameBackend/internal/storage/memory"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry"
	telemetryotel "github.com/CCodeCommunity/CardGameBackend/internal/telemetry/otel"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry/producer"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

// storage groups the repositories chosen at startup.
type storage struct {
	accounts accountrepo.Repository
	sessions identityservice.SessionRepo
	audit    auditrepo.Repository
	conn     *sql.DB
}

func openStorage(dsn string) (*storage, error) {
	if dsn == "" {
		return &storage{
			accounts: memory.NewAccountRepository(),
			sessions: memory.NewSessionRepository(),
			audit:    memory.NewAuditRepository(),
		}, nil
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &storage{
		accounts: accountrepo.NewPostgresRepository(conn),
		sessions: sessionrepo.NewPostgresRepository(conn),
		audit:    auditrepo.NewPostgresRepository(conn),
		conn:     conn,
	}, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTELServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	log, err := logging.New(os.Stdout, logging.Options{
		Level:          cfg.LogLevel,
		Format:         cfg.LogFormat,
		ServiceName:    cfg.OTELServiceName,
		LoggerProvider: providers.LoggerProvider,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	store, err := openStorage(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if store.conn != nil {
		defer store.conn.Close()
	} else {
		log.Warn(ctx, "DATABASE_URL not set; using in-memory storage")
	}

	var checks []healthhandler.Check
	if store.conn != nil {
		checks = append(checks, healthhandler.Check{Name: "database", Check: store.conn.PingContext})
	}

	var tracker revocation.Tracker
	var memTracker *revocation.MemoryTracker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		rt := revocation.NewRedisTracker(rdb, cfg.RevocationGraceDuration(), cfg.AccessTTL())
		if err := rt.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		checks = append(checks, healthhandler.Check{Name: "redis", Check: rt.Ping})
		tracker = rt
	} else {
		memTracker = revocation.NewMemoryTracker(cfg.RevocationGraceDuration(), cfg.AccessTTL())
		tracker = memTracker
	}

	tokens, err := security.NewTokenProviderFromConfig(security.SigningConfig{
		Secret:     cfg.JWTSecret,
		PrivateKey: cfg.JWTPrivateKey,
		PublicKey:  cfg.JWTPublicKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL(),
	})
	if err != nil {
		return fmt.Errorf("token provider: %w", err)
	}
	hasher := security.NewHasher(security.Argon2Params{
		Memory:      cfg.Argon2MemoryKiB,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	})
	gate := accountstate.NewGate(store.accounts, accountstate.WithTTL(cfg.StateCacheTTL()))

	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var kafkaProducer producer.Producer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer = producer.NewKafkaProducer(brokers, cfg.SecurityEventsTopic)
		emitters = append(emitters, kafkaProducer)
	}
	events := telemetry.Multi(emitters...)

	metrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	auditLogger := audit.NewLogger(store.audit, middleware.ClientIPFromContext, log)

	auth := identityservice.NewAuthService(store.accounts, store.sessions, tracker, gate, hasher, tokens,
		identityservice.WithAuditLogger(auditLogger),
		identityservice.WithEventEmitter(events),
		identityservice.WithMetrics(metrics),
		identityservice.WithLogger(log.With("component", "auth")),
	)
	accounts := accountservice.NewAccountService(store.accounts, hasher, gate, tracker,
		accountservice.WithAuditLogger(auditLogger),
		accountservice.WithEventEmitter(events),
		accountservice.WithLogger(log.With("component", "accounts")),
	)

	policies, err := rbac.NewEngine(ctx)
	if err != nil {
		return fmt.Errorf("policy engine: %w", err)
	}
	checks = append(checks, healthhandler.Check{Name: "policy", Check: policies.HealthCheck})
	healthHandler := healthhandler.NewHandler(log, checks...)

	router := server.NewRouter(server.Deps{
		Auth:      auth,
		Accounts:  accounts,
		Policies:  policies,
		AuditLogs: store.audit,
		Audit:     auditLogger,
		Health:    healthHandler,
		Log:       log,
	})
	httpServer := server.NewHTTPServer(cfg.HTTPAddr, router)

	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if grpcLis != nil {
		hs := health.NewServer()
		grpcServer := server.NewGRPCServer(hs)
		g.Go(func() error {
			log.Info(gctx, "gRPC health server listening", "addr", cfg.GRPCAddr)
			return grpcServer.Serve(grpcLis)
		})
		g.Go(func() error {
			healthHandler.Watch(gctx, hs, healthCheckInterval)
			grpcServer.GracefulStop()
			return nil
		})
	}

	if memTracker != nil {
		g.Go(func() error {
			memTracker.Run(gctx, cfg.PruneInterval())
			return nil
		})
	}

	err = g.Wait()
	log.Info(context.Background(), "servers stopped; draining telemetry")

	// Let in-flight async emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if cerr := kafkaProducer.Close(); cerr != nil {
			log.Warn(context.Background(), "kafka producer close failed", "error", cerr)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := providers.Shutdown(shutdownCtx); serr != nil {
		log.Warn(context.Background(), "otel shutdown failed", "error", serr)
	}
	return err
}
