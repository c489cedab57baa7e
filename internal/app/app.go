package rewards

import (
	"context"
	"time"
	_ "time/tzdata"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	db "github.com/glkeru/loyalty/rewards/internal/db"
	rabbit "github.com/glkeru/loyalty/rewards/internal/external/rabbitmq"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"go.uber.org/zap"
)

// Общая сборка зависимостей для всех процессов движка
type App struct {
	Logger   *zap.Logger
	Storage  interf.RewardsStorage
	Cache    interf.CacheStorage
	Usage    interf.PromoUsage
	Guard    interf.NotifyGuard
	Notifier interf.Notifier
	Catalog  models.Catalog
	Streak   services.StreakConfig
	Service  *services.RewardsService

	closers []func()
}

// Хранилище: Postgres, либо память при REWARDS_STORE=memory.
// Каталог: MongoDB при ENGINE_MONGO, иначе YAML из CATALOG_FILE.
// Redis и RabbitMQ необязательны
func New(ctx context.Context, logger *zap.Logger) (*App, error) {
	app := &App{Logger: logger}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	logger := a.Logger

	// config
	loc, err := config.Location("STREAK_TIMEZONE")
	if err != nil {
		return err
	}
	a.Streak = services.DefaultStreakConfig()
	a.Streak.Location = loc
	a.Streak.RiskAfter = config.Duration("STREAK_RISK_AFTER", a.Streak.RiskAfter)

	// database
	if err = a.openStorage(ctx); err != nil {
		return err
	}

	// cache
	redis, err := db.NewCacheService(ctx)
	if err != nil {
		logger.Warn("redis is not available, using in-memory counters", zap.Error(err))
		counters := db.NewMemoryCounters()
		a.Usage, a.Guard = counters, counters
	} else {
		a.Cache, a.Usage, a.Guard = redis, redis, redis
		a.closers = append(a.closers, func() { _ = redis.Close() })
	}

	// catalog
	a.Catalog, err = a.loadCatalog(ctx)
	if err != nil {
		return err
	}

	// notifications
	if config.String("RABBIT_URL", "") != "" {
		notifier, nerr := rabbit.NewRabbitNotifier()
		if nerr != nil {
			return nerr
		}
		a.Notifier = notifier
		a.closers = append(a.closers, notifier.Close)
	} else {
		a.Notifier = services.NewLogNotifier(logger)
	}

	// services
	a.Service, err = services.NewRewardsService(logger, a.Storage, a.Cache, a.Catalog, a.Usage, a.Notifier,
		services.WithStreakConfig(a.Streak))
	return err
}

func (a *App) openStorage(ctx context.Context) error {
	if config.String("REWARDS_STORE", "postgres") == "memory" {
		a.Logger.Warn("using in-memory storage")
		a.Storage = db.NewMemoryStorage()
		return nil
	}
	pg, err := db.NewRewardsDB(ctx, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pg.Close)
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	a.Storage = pg
	return nil
}

func (a *App) loadCatalog(ctx context.Context) (models.Catalog, error) {
	var store interf.CatalogStorage
	if config.String("ENGINE_MONGO", "") != "" {
		mgo, err := db.NewCatalogDB()
		if err != nil {
			return models.Catalog{}, err
		}
		a.closers = append(a.closers, func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mgo.Close(cctx)
		})
		store = mgo
	} else {
		file, err := db.NewCatalogFile(config.String("CATALOG_FILE", "configs/catalog.yaml"))
		if err != nil {
			return models.Catalog{}, err
		}
		store = file
	}
	return services.LoadCatalog(ctx, store)
}

// Сервис обхода стриков с теми же хранилищем и уведомлениями
func (a *App) SweepService(workers int) *services.SweepService {
	return services.NewSweepService(a.Logger, a.Storage, a.Streak, a.Notifier, a.Guard, workers)
}

// Закрытие соединений в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
