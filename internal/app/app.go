// Package app assembles the delivery pipeline from configuration. Both the
// API server and the standalone receipt worker start from Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/campaign-delivery/internal/cache"
	"github.com/unclebandit/campaign-delivery/internal/config"
	"github.com/unclebandit/campaign-delivery/internal/controller"
	"github.com/unclebandit/campaign-delivery/internal/db"
	"github.com/unclebandit/campaign-delivery/internal/handler"
	"github.com/unclebandit/campaign-delivery/internal/logger"
	"github.com/unclebandit/campaign-delivery/internal/queue"
	"github.com/unclebandit/campaign-delivery/internal/receipts"
	"github.com/unclebandit/campaign-delivery/internal/repository"
	"github.com/unclebandit/campaign-delivery/internal/service"
	"github.com/unclebandit/campaign-delivery/internal/vendor"
)

// Repositories is the storage backend, Postgres or in-memory.
type Repositories struct {
	Customers    repository.CustomerRepositoryInterface
	Orders       repository.OrderRepositoryInterface
	SegmentRules repository.SegmentRuleRepositoryInterface
	Campaigns    repository.CampaignRepositoryInterface
	Logs         repository.CommunicationLogRepositoryInterface
}

func PostgresRepositories(conn *sqlx.DB) Repositories {
	return Repositories{
		Customers:    &repository.CustomerRepository{DB: conn},
		Orders:       &repository.OrderRepository{DB: conn},
		SegmentRules: &repository.SegmentRuleRepository{DB: conn},
		Campaigns:    &repository.CampaignRepository{DB: conn},
		Logs:         &repository.CommunicationLogRepository{DB: conn},
	}
}

func MemoryRepositories(store *repository.MemoryStore) Repositories {
	return Repositories{
		Customers:    store.Customers(),
		Orders:       store.Orders(),
		SegmentRules: store.SegmentRules(),
		Campaigns:    store.Campaigns(),
		Logs:         store.Logs(),
	}
}

type App struct {
	Config *config.Config
	Log    logrus.FieldLogger

	DB     *sqlx.DB
	Redis  *redis.Client
	Broker *receipts.Broker

	Repos     Repositories
	Queue     *queue.DeliveryQueue
	Ingress   *receipts.Ingress
	Sender    vendor.Sender
	Simulator *vendor.Simulator
	Consumer  *receipts.Consumer

	Campaigns *service.CampaignService
	Segments  *service.SegmentService
	Customers *service.CustomerService
	Orders    *service.OrderService
	Logs      *service.LogService
}

// Build connects the configured backends and wires the services. Without
// DATABASE_URL it runs on the in-memory store; without REDIS_ADDR caching
// and receipt dedup are off; without RABBITMQ_URL simulator receipts go
// straight to the ingress.
func Build(cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	if err := a.connect(); err != nil {
		a.closeBackends()
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.closeBackends()
		return nil, err
	}
	return a, nil
}

func (a *App) connect() error {
	cfg := a.Config
	if cfg.DatabaseURL != "" {
		conn, err := db.Init(cfg.DatabaseURL, logger.Component(a.Log, "db"))
		if err != nil {
			return err
		}
		a.DB = conn
		a.Repos = PostgresRepositories(conn)
	} else {
		a.Log.Warn("DATABASE_URL not set, using in-memory storage")
		a.Repos = MemoryRepositories(repository.NewMemoryStore())
	}

	if cfg.RedisAddr != "" {
		client, err := cache.Connect(cfg.RedisAddr)
		if err != nil {
			return err
		}
		a.Redis = client
	}

	if cfg.RabbitMQURL != "" {
		broker, err := receipts.Dial(cfg.RabbitMQURL, cfg.ReceiptQueue)
		if err != nil {
			return err
		}
		a.Broker = broker
	}
	return nil
}

func (a *App) wire() error {
	cfg := a.Config

	a.Segments = &service.SegmentService{SegmentRepo: a.Repos.SegmentRules, CustomerRepo: a.Repos.Customers}
	a.Customers = &service.CustomerService{CustomerRepo: a.Repos.Customers}
	a.Orders = &service.OrderService{OrderRepo: a.Repos.Orders, CustomerRepo: a.Repos.Customers}
	a.Logs = &service.LogService{LogRepo: a.Repos.Logs, CampaignRepo: a.Repos.Campaigns, CustomerRepo: a.Repos.Customers}
	a.Campaigns = &service.CampaignService{
		CampaignRepo: a.Repos.Campaigns,
		LogRepo:      a.Repos.Logs,
		SegmentRepo:  a.Repos.SegmentRules,
		CustomerRepo: a.Repos.Customers,
		Segments:     a.Segments,
		Log:          logger.Component(a.Log, "campaigns"),
	}
	if a.Redis != nil {
		a.Campaigns.Cache = cache.New(a.Redis, cfg.CacheTTL)
	}

	a.Queue = queue.New(a.Repos.Logs, a.Campaigns, logger.Component(a.Log, "delivery-queue"), queue.Options{
		BatchSize:     cfg.QueueBatchSize,
		BatchInterval: cfg.QueueBatchInterval,
		ApplyTimeout:  cfg.QueueApplyTimeout,
	})

	var dedup receipts.Deduplicator
	if a.Redis != nil {
		dedup = cache.NewDeduplicator(a.Redis, cfg.DedupTTL)
	}
	a.Ingress = receipts.NewIngress(a.Repos.Logs, a.Queue, dedup, logger.Component(a.Log, "receipts"))

	sender, err := a.newSender()
	if err != nil {
		return err
	}
	a.Sender = sender
	a.Campaigns.Dispatcher = service.NewDispatcher(a.Repos.Logs, sender, cfg.SendConcurrency, logger.Component(a.Log, "dispatch"))

	if a.Broker != nil {
		a.Consumer = receipts.NewConsumer(a.Broker, a.Ingress, logger.Component(a.Log, "receipt-consumer"))
	}
	return nil
}

func (a *App) newSender() (vendor.Sender, error) {
	v := a.Config.Vendor
	switch v.Mode {
	case config.VendorModeTwilio:
		return vendor.NewTwilioSender(vendor.TwilioConfig{
			AccountSID:        v.TwilioAccountSID,
			AuthToken:         v.TwilioAuthToken,
			FromNumber:        v.TwilioFromNumber,
			StatusCallbackURL: v.TwilioStatusCallbackURL,
		}, logger.Component(a.Log, "twilio")), nil
	default:
		var sink vendor.ReceiptSink = &receipts.DirectSink{Ingress: a.Ingress}
		if a.Broker != nil {
			sink = receipts.NewPublisher(a.Broker)
		}
		sim, err := vendor.NewSimulator(vendor.SimulatorConfig{
			AcceptFailureRate:   v.AcceptFailureRate,
			DeliveryFailureRate: v.DeliveryFailureRate,
			SendLatency:         v.SendLatency,
			DeliveryDelay:       v.DeliveryDelay,
			NodeID:              v.NodeID,
		}, sink, logger.Component(a.Log, "simulator"))
		if err != nil {
			return nil, err
		}
		a.Simulator = sim
		return sim, nil
	}
}

// Router builds the HTTP API.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.AccessLog(logger.Component(a.Log, "http")))
	r.Use(middleware.Recoverer)

	health := &handler.HealthHandler{Checks: map[string]handler.Pinger{}}
	if a.DB != nil {
		health.Checks["database"] = a.DB
	}
	if a.Redis != nil {
		health.Checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	r.Get("/health", health.Health)

	receiptHandler := &handler.ReceiptHandler{
		Ingress: a.Ingress,
		Queue:   a.Queue,
		Log:     logger.Component(a.Log, "receipts"),
	}
	if a.Config.Vendor.Mode == config.VendorModeTwilio {
		receiptHandler.TwilioAuthToken = a.Config.Vendor.TwilioAuthToken
		receiptHandler.TwilioCallbackURL = a.Config.Vendor.TwilioStatusCallbackURL
	}

	controllers := &controller.Controllers{
		Campaigns: &controller.CampaignController{CampaignService: a.Campaigns, LogService: a.Logs},
		Customers: &controller.CustomerController{CustomerService: a.Customers, LogService: a.Logs, OrderService: a.Orders},
		Orders:    &controller.OrderController{OrderService: a.Orders},
		Segments:  &controller.SegmentController{SegmentService: a.Segments},
		Logs:      &controller.LogController{LogService: a.Logs},
	}
	r.Route("/api", func(r chi.Router) {
		r.Route("/delivery-receipts", receiptHandler.Routes)
		controllers.Mount(r)
	})
	return r
}

// Shutdown stops new receipts at the source, flushes the delivery queue and
// releases the backends.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Simulator != nil {
		a.Simulator.Close()
	}
	var errs []error
	if err := a.Queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush delivery queue: %w", err))
	}
	errs = append(errs, a.closeBackends())
	return errors.Join(errs...)
}

func (a *App) closeBackends() error {
	var errs []error
	if a.Broker != nil {
		errs = append(errs, a.Broker.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
