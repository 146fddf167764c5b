package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/attarstore/internal/adapters/httpserver"
	"github.com/phenrril/attarstore/internal/adapters/repo/memory"
	pgrepo "github.com/phenrril/attarstore/internal/adapters/repo/postgres"
	redisrepo "github.com/phenrril/attarstore/internal/adapters/repo/redis"
	"github.com/phenrril/attarstore/internal/adapters/sheet"
	"github.com/phenrril/attarstore/internal/adapters/storeapi"
	"github.com/phenrril/attarstore/internal/config"
	"github.com/phenrril/attarstore/internal/domain"
	"github.com/phenrril/attarstore/internal/usecase"
)

type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *goredis.Client
	Products   domain.ProductAPI
	Normalizer usecase.Normalizer
	Carts      domain.CartPersistence
	CartRepo   *pgrepo.CartRepo
	Sessions   *usecase.Sessions
	// nil when no store backend is configured
	BulkEmail *usecase.BulkEmailUC
}

func NewApp(cfg *config.Config) (*App, error) {
	a := &App{
		Config:     cfg,
		Normalizer: usecase.Normalizer{CurrencySymbol: cfg.CurrencySymbol, Placeholder: cfg.Placeholder},
	}

	if cfg.StoreAPIURL != "" {
		api := storeapi.NewClient(cfg.StoreAPIURL, cfg.StoreAPIToken, cfg.HTTPTimeout)
		a.Products = api
		a.BulkEmail = &usecase.BulkEmailUC{Emails: api}
	} else {
		// bulk e-mail lives on the store backend; a sheet catalog has none
		a.Products = &sheet.Source{Path: cfg.CatalogSheet}
		log.Info().Str("sheet", cfg.CatalogSheet).Msg("catalog served from spreadsheet, bulk email disabled")
	}

	switch cfg.CartStore {
	case "postgres", "sqlite":
		db, err := openDB(cfg)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.CartRepo = pgrepo.NewCartRepo(db)
		a.Carts = a.CartRepo
	case "redis":
		a.Redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		a.Carts = redisrepo.NewCartRepo(a.Redis, cfg.CartTTL)
	default:
		a.Carts = memory.NewCartRepo()
	}
	a.Sessions = usecase.NewSessions(a.Carts)
	return a, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	var (
		db  *gorm.DB
		err error
	)
	if cfg.CartStore == "sqlite" {
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
	} else {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), gcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.CartStore, err)
	}
	return db, nil
}

// Migrate prepares the cart table for the sql stores and checks redis.
func (a *App) Migrate(ctx context.Context) error {
	if a.CartRepo != nil {
		if err := a.CartRepo.Migrate(); err != nil {
			return fmt.Errorf("migrate carts: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	return nil
}

// ErrNoEmailBackend is returned by the e-mail commands in sheet mode.
var ErrNoEmailBackend = errors.New("bulk email needs STORE_API_URL")

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(httpserver.Deps{
		Products:   a.Products,
		Normalizer: a.Normalizer,
		Sessions:   a.Sessions,
		BulkEmail:  a.BulkEmail,
		SessionKey: []byte(a.Config.SessionKey),
		AdminKey:   a.Config.AdminAPIKey,
		Secure:     a.Config.IsProduction(),
	})
}

// Close flushes open carts before releasing the stores.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Sessions.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
