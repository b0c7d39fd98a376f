package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/order-backend/internal/cfg"
	v1Grpc "github.com/DRSN-tech/order-backend/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/order-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/order-backend/internal/infrastructure/kafka"
	"github.com/DRSN-tech/order-backend/internal/repository/memory"
	"github.com/DRSN-tech/order-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/order-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/order-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/order-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/clients"
	"github.com/DRSN-tech/order-backend/pkg/closer"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/DRSN-tech/order-backend/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	startupTimeout    = 10 * time.Second
	memoryCacheTTL    = time.Minute
	kafkaTopicTimeout = 10 * time.Second
)

// App собирает зависимости сервиса и управляет его жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer
	worker  *kafka.OutboxWorker
}

// storage — набор репозиториев выбранного драйвера.
type storage struct {
	txManager usecase.TxManager
	catalog   usecase.CatalogRepository
	ledger    usecase.StockLedger
	products  usecase.ProductRepository
	orders    usecase.OrderRepository
	limits    usecase.UserLimitsRepository
	outbox    usecase.OutboxRepository
	cache     usecase.CacheRepository
	health    v1Http.HealthFunc
	notifyDSN string
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	st, err := a.initStorage(ctx)
	if err != nil {
		a.closeOnError()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	productUC := usecase.NewProductUC(st.txManager, st.products, st.ledger, st.cache, log, cfg.Order)
	orderUC := usecase.NewOrderUC(st.txManager, st.catalog, st.ledger, st.orders, st.outbox, st.cache, log, cfg.Order)
	limitsUC := usecase.NewLimitsUC(st.limits, log)

	if cfg.Kafka.Enabled {
		if err := a.initOutboxRelay(st); err != nil {
			a.closeOnError()
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	} else {
		log.Warnf("kafka is disabled: order events stay in the outbox")
	}

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log, cfg.Http.RequestTimeout)
	router.Init(orderUC, productUC, limitsUC, st.health)
	a.httpSrv = v1Http.NewServer(r, cfg.Http)
	a.closer.Add("http server", a.httpSrv.Stop)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, log)
	a.grpcSrv.RegisterServices(productUC)
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	return a, nil
}

func (a *App) initStorage(ctx context.Context) (*storage, error) {
	switch a.cfg.Store.Driver {
	case config.StoreDriverMemory:
		return a.initMemoryStorage(), nil
	case config.StoreDriverPostgres:
		return a.initPostgresStorage(ctx)
	default:
		return nil, e.Wrap(a.cfg.Store.Driver, e.ErrUnknownStoreDriver)
	}
}

func (a *App) initMemoryStorage() *storage {
	a.logger.Warnf("using in-memory store: data is lost on restart")

	store := memory.NewStore()
	products := memory.NewProductRepo(store)

	st := &storage{
		txManager: memory.NewTxManager(store),
		catalog:   products,
		ledger:    products,
		products:  products,
		orders:    memory.NewOrderRepo(store),
		limits:    memory.NewUserLimitsRepo(store),
		outbox:    memory.NewOutboxEventRepo(store),
	}
	if a.cfg.Store.CacheEnabled {
		st.cache = memory.NewCacheRepo(memoryCacheTTL)
	}

	return st
}

func (a *App) initPostgresStorage(ctx context.Context) (*storage, error) {
	db, err := initPGDB(ctx, a.logger, a.cfg)
	if err != nil {
		return nil, err
	}
	a.closer.AddSimple("postgres", db.Close)

	products := pgdb.NewProductRepo(db.Pool, pgdbConv.NewProductConverterImpl())

	st := &storage{
		txManager: pgdb.NewTxManager(db.Pool),
		catalog:   products,
		ledger:    products,
		products:  products,
		orders:    pgdb.NewOrderRepo(db.Pool, pgdbConv.NewOrderConverterImpl()),
		limits:    pgdb.NewUserLimitsRepo(db.Pool, pgdbConv.NewUserLimitsConverterImpl()),
		outbox:    pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.NewOutboxEventConverterImpl()),
		health:    db.Ping,
		notifyDSN: db.Dsn,
	}

	if a.cfg.Store.CacheEnabled {
		redisClient := clients.NewRedisClient(a.cfg.Redis)
		if err := redisClient.Ping(ctx); err != nil {
			_ = redisClient.Close(ctx)
			a.logger.Errorf(err, "failed to connect to redis")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.Add("redis", redisClient.Close)
		st.cache = redis.NewCacheRepo(redisClient, redisConv.NewProductInfoConverterImpl(), a.cfg.Redis, a.logger)
	}

	return st, nil
}

func (a *App) initOutboxRelay(st *storage) error {
	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	a.closer.Add("kafka producer", producer.Close)

	if err := producer.EnsureTopic(kafkaTopicTimeout); err != nil {
		a.logger.Errorf(err, "failed to ensure kafka topic %s", a.cfg.Kafka.Topic)
		return e.Wrap(whereami.WhereAmI(), err)
	}

	var channel string
	if st.notifyDSN != "" {
		channel = pgdb.OutboxNotifyChannel
	}

	a.worker = kafka.NewOutboxWorker(st.outbox, a.logger, producer, a.cfg.Outbox, channel, st.notifyDSN)
	a.closer.Add("outbox worker", a.worker.Stop)

	return nil
}

// Run запускает серверы и блокируется до сигнала остановки или падения одного из них.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.worker != nil {
		a.worker.Start(ctx)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			a.logger.Errorf(err, "HTTP server failed")
			return e.Wrap("http server", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			a.logger.Errorf(err, "gRPC server failed")
			return e.Wrap("grpc server", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		if ctx.Err() != nil {
			a.logger.Infof("Received shutdown signal, stopping gracefully...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.closer.Close(shutdownCtx); err != nil {
			a.logger.Errorf(err, "shutdown finished with errors")
			return err
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Infof("Application shutdown complete")
	return nil
}

func (a *App) closeOnError() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "failed to release resources")
	}
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger, postgres.DefaultMigrationsURL); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
