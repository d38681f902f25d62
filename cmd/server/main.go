package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/audit"
	auditrepo "vehicle-marketplace/backend/internal/audit/repository"
	"vehicle-marketplace/backend/internal/config"
	"vehicle-marketplace/backend/internal/db"
	"vehicle-marketplace/backend/internal/db/store"
	healthhandler "vehicle-marketplace/backend/internal/health/handler"
	identityservice "vehicle-marketplace/backend/internal/identity/service"
	"vehicle-marketplace/backend/internal/logging"
	"vehicle-marketplace/backend/internal/notify"
	"vehicle-marketplace/backend/internal/ratelimit"
	"vehicle-marketplace/backend/internal/security"
	"vehicle-marketplace/backend/internal/server"
	"vehicle-marketplace/backend/internal/server/interceptors"
	"vehicle-marketplace/backend/internal/telemetry"
	telemetryotel "vehicle-marketplace/backend/internal/telemetry/otel"
	"vehicle-marketplace/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.AuthEnabled() {
		logger.Fatal("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required")
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		logger.Fatal("load signing keys", zap.Error(err))
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience)
	hasher := security.NewHasher(cfg.BcryptCost)

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()
	st := store.NewPostgres(conn)

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP, logger)

	brokers := cfg.KafkaBrokersList()
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if kn := notify.NewKafkaNotifier(brokers, cfg.NotificationsKafkaTopic); kn != nil {
		defer kn.Close()
		notifier = kn
		logger.Info("notifications enabled", zap.String("topic", cfg.NotificationsKafkaTopic))
	}

	pingers := []healthhandler.Pinger{conn}
	var limiter interceptors.Limiter
	if cfg.RedisAddr != "" {
		rl, rdb := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, "ratelimit",
			cfg.RateLimitMax, cfg.RateLimitWindow(), cfg.RateLimitBlock())
		defer rdb.Close()
		limiter = rl
		pingers = append(pingers, healthhandler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		logger.Info("rate limiting enabled", zap.String("redis", cfg.RedisAddr), zap.Int("max", cfg.RateLimitMax))
	}

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, cfg.ServiceName, cfg.OTelInsecure)
	if err != nil {
		logger.Fatal("otel providers", zap.Error(err))
	}
	providers.SetGlobal()
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic, logger); kp != nil {
		defer kp.Close()
		emitters = append(emitters, kp)
	}

	authSvc := identityservice.NewAuthService(st, hasher, tokens, auditLogger, logger,
		cfg.AccessTTL(), cfg.RefreshTTL(), cfg.SessionCap)
	credSvc := identityservice.NewCredentialService(st, hasher, notifier, auditLogger, logger,
		cfg.ResetTokenTTL(), cfg.EmailVerificationTTL(), cfg.PhoneCodeTTL())

	s := server.NewServer(server.Deps{
		Auth:              authSvc,
		Credentials:       credSvc,
		Sessions:          authSvc,
		HealthPingers:     pingers,
		Tokens:            tokens,
		Audit:             auditLogger,
		Limiter:           limiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Telemetry:         telemetry.Fanout(emitters...),
		Log:               logger,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	defer lis.Close()

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := s.Serve(lis); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gRPC server")
	s.GracefulStop()
	// Let in-flight telemetry emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
	logger.Info("gRPC server stopped")
}
