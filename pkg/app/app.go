// Package app assembles the services behind the HTTP gateway and gRPC server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/assistant"
	"github.com/evansochadeka/BenFarm/pkg/auth"
	"github.com/evansochadeka/BenFarm/pkg/cart"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/chat"
	"github.com/evansochadeka/BenFarm/pkg/checkout"
	"github.com/evansochadeka/BenFarm/pkg/community"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/database"
	"github.com/evansochadeka/BenFarm/pkg/directory"
	"github.com/evansochadeka/BenFarm/pkg/events"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/messaging"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/orders"
	"github.com/evansochadeka/BenFarm/pkg/pos"
	"github.com/evansochadeka/BenFarm/pkg/repository"
	"github.com/evansochadeka/BenFarm/pkg/reviews"
	"github.com/evansochadeka/BenFarm/pkg/weather"
)

// App holds every service. Handlers and the gRPC server read its fields.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Metrics *metrics.Metrics

	Tokens     *auth.TokenManager
	Auth       *auth.Service
	Notifier   *notify.Notifier
	Dispatcher *notify.Dispatcher
	Ledger     *ledger.Ledger
	Catalog    *catalog.Service
	Cart       *cart.Service
	Checkout   *checkout.Service
	Orders     *orders.Service
	POS        *pos.Service
	Community  *community.Service
	Messaging  *messaging.Service
	Chat       *chat.Hub
	Assistant  *assistant.Service
	Weather    *weather.Service
	Reviews    *reviews.Service
	Directory  *directory.Service

	redis  *repository.RedisRepository
	mongo  *repository.MongoRepository
	events events.Publisher

	ownDB  bool
	cancel context.CancelFunc
	done   chan struct{}
}

type options struct {
	db      *gorm.DB
	redis   *redis.Client
	text    assistant.TextGenerationClient
	weather weather.WeatherClient
}

type Option func(*options)

// WithDB uses db instead of opening database.url. The caller keeps ownership.
func WithDB(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithRedis uses client instead of dialing redis.addr.
func WithRedis(client *redis.Client) Option {
	return func(o *options) { o.redis = client }
}

func WithTextClient(c assistant.TextGenerationClient) Option {
	return func(o *options) { o.text = c }
}

func WithWeatherClient(c weather.WeatherClient) Option {
	return func(o *options) { o.weather = c }
}

// New connects the configured backends and builds the services. Redis, MongoDB
// and Kafka are optional; each falls back to an in-process implementation.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rates, err := cfg.Checkout.Rates()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(), done: make(chan struct{})}

	a.DB = o.db
	if a.DB == nil {
		a.DB, err = database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.ownDB = true
	}

	a.connectRedis(ctx, o.redis)
	audit := a.connectMongo(ctx)
	a.events = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		a.events = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("Kafka publisher configured", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	a.Tokens = auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.TokenTTL)
	var userCache auth.Cache
	var carts cart.Store = cart.NewMemoryStore()
	var weatherCache weather.Cache
	if a.redis != nil {
		userCache = a.redis
		weatherCache = a.redis
		carts = cart.NewRedisStore(a.redis.Client(), cfg.Redis.CartTTL)
	}
	a.Auth = auth.NewService(a.DB, a.Tokens, userCache, logger)

	a.Notifier = notify.NewNotifier(a.DB, logger)
	a.Dispatcher, err = notify.NewDispatcher(a.Notifier, logger)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("failed to start notification dispatcher: %w", err)
	}

	a.Ledger = ledger.New(a.DB, logger)
	a.Catalog = catalog.NewService(a.DB, a.Ledger, logger)
	a.Cart = cart.NewService(a.DB, carts)
	a.Checkout = checkout.NewService(checkout.Deps{
		DB:      a.DB,
		Carts:   carts,
		Ledger:  a.Ledger,
		Sender:  a.Dispatcher,
		Events:  a.events,
		Metrics: a.Metrics,
		Rates:   rates,
		Logger:  logger,
	})
	a.Orders = orders.NewService(a.DB, a.Dispatcher, a.events, audit, logger)
	a.POS = pos.NewService(a.DB, a.Ledger, a.Dispatcher, a.events, a.Metrics, logger)
	a.Community = community.NewService(a.DB, a.Dispatcher, cfg.Community, logger)
	a.Messaging = messaging.NewService(a.DB, a.Dispatcher, logger)
	a.Reviews = reviews.NewService(a.DB, a.Dispatcher, logger)
	a.Directory = directory.NewService(a.DB, a.Reviews)
	a.Chat = chat.NewHub(a.DB, a.Metrics, cfg.Gateway.AllowOrigins, logger)

	text := o.text
	if text == nil {
		text = assistant.NewCohereClient(cfg.Assistant, logger)
	}
	a.Assistant = assistant.NewService(text, a.DB, a.Dispatcher, a.Metrics, cfg.Assistant, logger)

	wc := o.weather
	if wc == nil {
		wc = weather.NewOpenWeatherClient(cfg.Weather)
	}
	a.Weather = weather.NewService(wc, weatherCache, a.Metrics, cfg.Weather, logger)

	if _, err := a.Auth.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminFullName); err != nil {
		a.release()
		return nil, fmt.Errorf("failed to seed admin: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		defer close(a.done)
		a.Chat.Run(runCtx)
	}()

	return a, nil
}

func (a *App) connectRedis(ctx context.Context, client *redis.Client) {
	switch {
	case client != nil:
		a.redis = repository.NewRedisRepositoryFromClient(client)
	case a.Config.Redis.Addr != "":
		a.redis = repository.NewRedisRepository(&a.Config.Redis)
	default:
		a.Logger.Info("Redis not configured, using in-memory carts")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.redis.Ping(pctx); err != nil {
		a.Logger.Warn("Redis connection failed, using in-memory carts", zap.Error(err))
		_ = a.redis.Close()
		a.redis = nil
		return
	}
	a.Logger.Info("Redis connected successfully")
}

func (a *App) connectMongo(ctx context.Context) repository.Auditor {
	if a.Config.MongoDB.URI == "" {
		return repository.NewMemoryAuditor()
	}
	mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	m, err := repository.NewMongoRepository(mctx, &a.Config.MongoDB)
	if err == nil {
		err = m.Ping(mctx)
	}
	if err != nil {
		a.Logger.Warn("MongoDB connection failed, audit log kept in memory", zap.Error(err))
		if m != nil {
			_ = m.Close(context.Background())
		}
		return repository.NewMemoryAuditor()
	}
	a.mongo = m
	a.Logger.Info("MongoDB connected successfully")
	return m
}

// Close drains background work and releases connections.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Stop(5 * time.Second)
	}
	return a.release()
}

func (a *App) release() error {
	var errs []error
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events close error: %w", err))
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("mongo close error: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if a.ownDB && a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users          map[string]int64 `json:"users"`
	Orders         *orders.Summary  `json:"orders,omitempty"`
	Posts          int64            `json:"posts"`
	DiseaseReports int64            `json:"disease_reports"`
	Reviews        int64            `json:"reviews"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Stats collects counts for the admin dashboard. Failed sections are reported
// as warnings instead of failing the whole page.
func (a *App) Stats(ctx context.Context) *Stats {
	s := &Stats{Users: map[string]int64{}}
	if byRole, err := a.Auth.CountByRole(ctx); err != nil {
		s.Warnings = append(s.Warnings, "users unavailable")
		a.Logger.Warn("Failed to count users", zap.Error(err))
	} else {
		for role, n := range byRole {
			s.Users[string(role)] = n
		}
	}
	if sum, err := a.Orders.Summarize(ctx); err != nil {
		s.Warnings = append(s.Warnings, "orders unavailable")
		a.Logger.Warn("Failed to summarize orders", zap.Error(err))
	} else {
		s.Orders = sum
	}
	if n, err := a.Community.Count(ctx); err != nil {
		s.Warnings = append(s.Warnings, "posts unavailable")
	} else {
		s.Posts = n
	}
	if n, err := a.Assistant.CountReports(ctx); err != nil {
		s.Warnings = append(s.Warnings, "disease reports unavailable")
	} else {
		s.DiseaseReports = n
	}
	if n, err := a.Reviews.Count(ctx); err != nil {
		s.Warnings = append(s.Warnings, "reviews unavailable")
	} else {
		s.Reviews = n
	}
	return s
}
