package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"academic-service/internal/academic"
	"academic-service/internal/auth"
	"academic-service/internal/commandlog"
	"academic-service/internal/config"
	"academic-service/internal/db"
	"academic-service/internal/health"
	"academic-service/internal/middleware"
	"academic-service/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Models owned by this service, in creation order.
var models = []any{
	(*auth.User)(nil),
	(*academic.AcademicYear)(nil),
}

type App struct {
	config       *config.Config
	router       chi.Router
	server       *http.Server
	grpcServer   *grpc.Server
	healthServer *grpchealth.Server
	database     *bun.DB
	publisher    commandlog.Publisher
	telemetry    *telemetry.Telemetry
	authService  *auth.Service
	logger       *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing application", "env", cfg.Env)

	tel, err := telemetry.Init(ctx, cfg.Telemetry, ServiceName, Version, cfg.Env, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := tel.Metrics.Database.RegisterDB(database.DB, tel.Meter(ServiceName)); err != nil {
		logger.Warn("failed to register db pool metrics", "error", err)
	}

	if err := db.RunMigrations(ctx, database, models, academic.Indexes()...); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	publisher, err := commandlog.New(cfg.CommandLog, logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize command log: %w", err)
	}
	publisher = commandlog.Instrument(publisher, cfg.CommandLog.Sink, commandLogDestination(cfg.CommandLog), tel.Metrics.Messaging)

	app := &App{
		config:    cfg,
		router:    chi.NewRouter(),
		database:  database,
		publisher: publisher,
		telemetry: tel,
		logger:    logger,
	}

	app.router.Use(chimw.RequestID)
	app.router.Use(chimw.Recoverer)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.router.Use(middleware.MaxBodyBytes(cfg.Server.MaxBodyBytes))

	// Health endpoints (no auth required)
	health.NewHandler(database, logger).RegisterRoutes(app.router)

	jwtManager := auth.NewJWTManager(cfg.Auth)
	authRepo := auth.NewRepository(database, tel.Metrics)
	app.authService = auth.NewService(authRepo, jwtManager)
	auth.NewHandler(app.authService, logger, cfg.Env != "local").RegisterRoutes(app.router)

	academicRepo := academic.NewRepository(database, tel.Metrics)
	endDatePolicy := academic.EndDateAsSupplied
	if cfg.Academic.LegacyEndDate {
		endDatePolicy = academic.EndDateFromStart
	}
	academicHandler := academic.NewHandler(
		academic.NewReadService(academicRepo),
		academic.NewWriteService(academicRepo, publisher, tel.Metrics, logger, academic.WriteOptions{
			EndDatePolicy: endDatePolicy,
		}),
		logger,
		tel.Metrics,
	)

	app.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtManager, logger))
		academicHandler.RegisterRoutes(r)
	})

	app.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	app.healthServer = grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(app.grpcServer, app.healthServer)
	app.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	app.healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("application initialized successfully")

	return app, nil
}

// Handler exposes the HTTP router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Users exposes the user service for seeding accounts.
func (a *App) Users() *auth.Service {
	return a.authService
}

// Run serves HTTP and gRPC until Shutdown is called.
func (a *App) Run() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.config.Grpc.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}

	go func() {
		a.logger.Info("gRPC server starting", "port", a.config.Grpc.Port)
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server error", "error", err)
		}
	}()

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.healthServer.Shutdown()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	a.grpcServer.GracefulStop()

	if err := a.publisher.Close(); err != nil {
		a.logger.Error("command log close error", "error", err)
	}
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		a.logger.Error("telemetry shutdown error", "error", err)
	}
	db.Close(a.database)

	return errors.Join(errs...)
}

func commandLogDestination(cfg config.CommandLogConfig) string {
	if cfg.Sink == commandlog.SinkKafka {
		return cfg.Kafka.Topic
	}
	return cfg.NATS.Subject
}
