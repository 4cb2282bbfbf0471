package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/dock-slot-reservation/internal/calendar"
	"github.com/iliyamo/dock-slot-reservation/internal/clock"
	"github.com/iliyamo/dock-slot-reservation/internal/config"
	"github.com/iliyamo/dock-slot-reservation/internal/database"
	"github.com/iliyamo/dock-slot-reservation/internal/handler"
	"github.com/iliyamo/dock-slot-reservation/internal/middleware"
	"github.com/iliyamo/dock-slot-reservation/internal/model"
	"github.com/iliyamo/dock-slot-reservation/internal/queue"
	"github.com/iliyamo/dock-slot-reservation/internal/repository"
	"github.com/iliyamo/dock-slot-reservation/internal/router"
	"github.com/iliyamo/dock-slot-reservation/internal/service"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer db.Close()

			if migrateUp || cfg.AutoMigrate {
				if err := database.Migrate(ctx, db); err != nil {
					return err
				}
			}

			rdb := config.NewRedisClient(config.LoadRedisConfig())
			if rdb == nil {
				log.Printf("redis: unavailable; caching disabled, rate limiting in-process")
			} else {
				defer rdb.Close()
			}

			cacheCfg := config.LoadCacheConfig()
			gen := middleware.NewCacheGeneration(cacheCfg, rdb)
			resolver, err := buildResolver(cfg, db, gen)
			if err != nil {
				return err
			}
			defer resolver.Drain()

			e := newEcho(cfg, db, resolver, rdb, cacheCfg, gen)
			addr := ":" + cfg.Port
			log.Printf("listening on %s (env=%s)", addr, cfg.Env)

			errCh := make(chan error, 1)
			go func() { errCh <- e.Start(addr) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			log.Printf("shutting down")
			return e.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply migrations before serving")
	return cmd
}

func slotCatalog(cfg config.Config) (model.SlotCatalog, error) {
	if len(cfg.SlotLabels) == 0 {
		return model.DefaultSlotCatalog(), nil
	}
	cat := model.NewSlotCatalog(cfg.SlotLabels)
	if cat.Len() == 0 {
		return cat, errors.New("SLOT_CATALOG has no usable labels")
	}
	return cat, nil
}

func buildResolver(cfg config.Config, db *sql.DB, gen *middleware.CacheGeneration) (*service.Resolver, error) {
	catalog, err := slotCatalog(cfg)
	if err != nil {
		return nil, err
	}
	clk := clock.NewSystem()
	opts := []service.ResolverOption{
		service.WithClock(clk),
		service.WithPolicy(calendar.Policy{Clock: clk, HorizonDays: cfg.HorizonDays}),
		service.WithDirectory(repository.NewUserRepo(db)),
	}
	if gen != nil {
		opts = append(opts, service.WithInvalidator(gen))
	}
	if qcfg := config.LoadQueueConfig(); qcfg.Enabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(qcfg.URL)))
	}
	return service.NewResolver(
		catalog,
		repository.NewReservationRepo(db),
		repository.NewClosureRepo(db),
		repository.NewSlotLocker(db),
		opts...,
	), nil
}

func newEcho(cfg config.Config, db *sql.DB, resolver *service.Resolver, rdb *redis.Client, cacheCfg config.CacheConfig, gen *middleware.CacheGeneration) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	clk := clock.NewSystem()
	router.Register(e, router.Deps{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		Public:    handler.NewPublicHandler(resolver, clk),
		Client:    handler.NewClientHandler(resolver),
		Admin:     handler.NewAdminHandler(resolver, clk),
		Operator:  handler.NewOperatorHandler(resolver),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(cacheCfg, gen),
	})
	return e
}
