package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finmark/config"
	"finmark/internal/api"
	"finmark/internal/broker"
	"finmark/internal/jwtutil"
	"finmark/internal/redisclient"
	"finmark/internal/service"
	"finmark/internal/store"
	"finmark/internal/util"
	"finmark/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:generate swag init -d ../../ -g cmd/server/main.go -o ../../docs --parseInternal

// @title FinMark API
// @version 1.0
// @description Accounts, catalog and order management.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	app := &cli.App{
		Name:  "finmark",
		Usage: "FinMark accounts, catalog and order API",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and background workers",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the database schema",
				Action: func(c *cli.Context) error {
					return migrate(c.Context, cfg)
				},
			},
			{
				Name:  "seed-admin",
				Usage: "create an administrator account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, EnvVars: []string{"ADMIN_EMAIL"}},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
					&cli.StringFlag{Name: "first-name", Value: "System"},
					&cli.StringFlag{Name: "last-name", Value: "Admin"},
				},
				Action: func(c *cli.Context) error {
					return seedAdmin(c.Context, cfg, &service.RegisterRequest{
						Email:     c.String("email"),
						Password:  c.String("password"),
						FirstName: c.String("first-name"),
						LastName:  c.String("last-name"),
					})
				},
			},
		},
	}
	// no subcommand means serve
	app.Action = app.Commands[0].Action

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		util.GetLogger().Error("Command failed", zap.Error(err))
		util.SyncLogger()
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (service.Repository, func(), error) {
	if cfg.Database.Driver == "memory" {
		util.GetLogger().Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := store.NewStore(cfg.Database.URL, store.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, func() { db.Close() }, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	db, err := store.NewStore(cfg.Database.URL, store.Options{MaxOpenConns: 1})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	util.GetLogger().Info("Database schema applied")
	return nil
}

func seedAdmin(ctx context.Context, cfg *config.Config, req *service.RegisterRequest) error {
	db, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens := jwtutil.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(db, db, tokens, service.AuthOptions{BcryptCost: cfg.Auth.BcryptCost})
	_, err = authService.CreateAdmin(ctx, req)
	return err
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := util.GetLogger()
	logger.Info("Starting FinMark API", zap.String("env", cfg.Server.Env))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("finmark-api", cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if pg, ok := db.(*store.Store); ok && cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
	}
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	checks := []api.ReadinessCheck{{Name: "database", Ping: db.Ping}}

	var locker service.Locker
	var limiter api.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		locker = redisClient
		checks = append(checks, api.ReadinessCheck{Name: "redis", Ping: redisClient.Ping})
		if cfg.RateLimit.Enabled {
			limiter = api.NewSharedLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		}
	}
	if limiter == nil && cfg.RateLimit.Enabled {
		limiter = api.NewLocalLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	var orderProducer, stockProducer *broker.Producer
	if cfg.Kafka.Enabled {
		orderProducer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer orderProducer.Close()
		stockProducer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock)
		defer stockProducer.Close()
		logger.Info("Kafka producers initialized")
	}
	eventPublisher := broker.NewEventPublisher(orderProducer, stockProducer)

	tokens := jwtutil.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(db, db, tokens, service.AuthOptions{
		BcryptCost:          cfg.Auth.BcryptCost,
		AllowRoleOnRegister: cfg.Auth.AllowRoleOnRegister,
	})
	productService := service.NewProductService(db, db)
	orderService := service.NewOrderService(db, locker, eventPublisher, service.OrderOptions{
		EstimatedDelivery: time.Duration(cfg.Business.EstimatedDeliveryDays) * 24 * time.Hour,
		LockTTL:           cfg.Business.IdempotencyLockTTL,
	})
	userService := service.NewUserService(db, db, cfg.Business.MaxShippingAddresses)
	dashboardService := service.NewDashboardService(db)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(authService, productService, orderService, userService, dashboardService, api.Options{
		Limiter: limiter,
		Checks:  checks,
		Pagination: api.PageLimits{
			Default: cfg.Business.DefaultPageSize,
			Max:     cfg.Business.MaxPageSize,
		},
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err := handler.SetupRoutes(router); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		inventoryWorker := worker.NewInventoryWorker(consumer, service.NewInventoryAlerts(db, eventPublisher))
		g.Go(func() error {
			return inventoryWorker.Start(gctx)
		})
		defer inventoryWorker.Stop()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}
