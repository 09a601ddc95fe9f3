package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/01moynul/storefront-go/internal/auth"
	"github.com/01moynul/storefront-go/internal/cart"
	"github.com/01moynul/storefront-go/internal/catalog"
	"github.com/01moynul/storefront-go/internal/config"
	"github.com/01moynul/storefront-go/internal/database"
	"github.com/01moynul/storefront-go/internal/functions"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/handlers"
	"github.com/01moynul/storefront-go/internal/identity"
	"github.com/01moynul/storefront-go/internal/logging"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/01moynul/storefront-go/internal/notification"
	"github.com/01moynul/storefront-go/internal/order"
	"github.com/01moynul/storefront-go/internal/payment"
	"github.com/01moynul/storefront-go/internal/routes"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 0. --- Load Configuration (.env + environment) ---
	cfg, dotenv, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "json")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if !dotenv {
		logger.Warn().Msg("could not find or load .env file, relying on system environment variables")
	}
	if cfg.Environment.Name == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. --- Data Gateway ---
	gw, db, err := openGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open data gateway")
	}
	if db != nil {
		defer db.Close()
	}

	// 2. --- Credential Store ---
	var store identity.CredentialStore = identity.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		store = identity.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Redis.CredentialTTL)
	}

	// 3. --- Services ---
	decoder := auth.NewDecoder(cfg.Auth.JWTSecret)
	if !decoder.Verifies() {
		logger.Warn().Msg("AUTH_JWT_SECRET is not set, session credentials are decoded without signature checks")
	}
	resolver := identity.NewResolver(gw, decoder, logger)
	sessions := identity.NewManager(resolver, store, logger)
	broker := identity.NewBroker()

	client := functions.NewClient(cfg.Backend.FunctionsURL, cfg.Backend.AnonKey, cfg.Backend.Timeout, logger)
	notifier := functions.NewNotifier(client, cfg.Backend.EmailFunction, cfg.Backend.PushFunction)

	carts := cart.NewManager(gw, logger)
	orders := order.NewOrchestrator(gw, carts, notifier, logger,
		order.WithTrackingAttempts(cfg.Orders.TrackingAttempts),
		order.WithEmailTimeout(cfg.Orders.EmailTimeout),
	)

	app := &handlers.Handlers{
		Catalog:       catalog.NewReader(gw),
		Cart:          carts,
		Orders:        orders,
		Payment:       payment.NewBridge(client, cfg.Backend.PaymentFunction, carts, orders, logger),
		Notifications: notification.NewReader(gw, logger),
		Broker:        broker,
		WebhookSecret: cfg.Auth.WebhookSecret,
		Logger:        logger,
	}

	// 4. --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		AllowedOrigin: cfg.HTTP.AllowedOrigin,
		Resolver:      resolver,
		Sessions:      sessions,
	})
	srv := &http.Server{Addr: cfg.Addr(), Handler: router}

	// 5. --- Run Server & Background Workers ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("starting storefront API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	sub := broker.Subscribe(16)
	g.Go(func() error {
		return sessions.Run(gctx, sub)
	})
	g.Go(func() error {
		return order.NewReconciler(gw, logger).Run(gctx, cfg.Orders.ReconcileInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
	orders.Wait()
	logger.Info().Msg("server stopped")
}

// openGateway returns the data gateway for the configured driver. db is nil
// for the in-memory store.
func openGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (gateway.Gateway, *sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("using the in-memory store, data is lost on exit")
		return newMemoryGateway(), nil, nil
	}

	db, err := database.OpenDBWithDSN(ctx, cfg.Database.DSN, database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info().Msg("schema migrated")
	}
	return gateway.NewSQLGateway(db), db, nil
}

// newMemoryGateway mirrors the unique keys of schema.sql.
func newMemoryGateway() *gateway.MemoryGateway {
	return gateway.NewMemoryGateway().
		Unique(models.TableUsers, "email").
		Unique(models.TableCart, "user_id", "product_id").
		Unique(models.TableOrders, "tracking_number")
}
