package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	v1Grpc "github.com/DRSN-tech/embedding-pipeline/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/embedding-pipeline/internal/delivery/v1/http"
	"github.com/DRSN-tech/embedding-pipeline/internal/infrastructure/embedcache"
	"github.com/DRSN-tech/embedding-pipeline/internal/infrastructure/imagecheck"
	"github.com/DRSN-tech/embedding-pipeline/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/embedding-pipeline/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/embedding-pipeline/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/embedding-pipeline/internal/infrastructure/sink"
	s3Repo "github.com/DRSN-tech/embedding-pipeline/internal/repository/minio"
	"github.com/DRSN-tech/embedding-pipeline/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/embedding-pipeline/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/embedding-pipeline/internal/repository/qdrant"
	"github.com/DRSN-tech/embedding-pipeline/internal/repository/redis"
	redisConv "github.com/DRSN-tech/embedding-pipeline/internal/repository/redis/converter"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/closer"
	"github.com/DRSN-tech/embedding-pipeline/pkg/clients"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/DRSN-tech/embedding-pipeline/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	cleanupTimeout  = 5 * time.Second
)

// App — собранное приложение: HTTP-сервер поверх пайплайна и все внешние зависимости.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	httpSrv     *v1Http.Server
	grpcSrv     *v1Grpc.GRPCServer
	imagesInfra *minioInfra.MinioInfrastructure // nil — архив отключён

	// shutdownCtx отменяется при остановке, фоновые очистки S3 переходят на свой таймаут
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewApp инициализирует клиентов и собирает зависимости. Опциональные компоненты подключаются,
// только если для них есть конфигурация.
func NewApp(cfg *config.Config, logger logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(0),
	}
	a.shutdownCtx, a.shutdownCancel = context.WithCancel(context.Background())

	if err := a.init(); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := a.closer.Close(closeCtx); closeErr != nil {
			logger.Warnf("cleanup after failed init: %v", closeErr)
		}
		a.shutdownCancel()
		return nil, err
	}

	return a, nil
}

func (a *App) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	// Векторное хранилище
	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Client.Close() })

	embRepo := qdrantRepo.NewEmbeddingRepo(qdrantClient)
	vectorSink := sink.NewVectorSink(embRepo, a.logger)

	// ML-сервис
	conn, err := grpc.NewClient(
		a.cfg.Ml.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()), // явное указание gRPC-клиенту использовать НЕзащищённое соединение (без TLS).
	)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize grpc client")
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("ml-service", func(context.Context) error { return conn.Close() })

	var embedder usecase.Embedder = ml_service.NewMLService(conn, a.logger)

	if a.cfg.Redis != nil {
		redisClient := clients.NewRedisClient(a.cfg.Redis)
		if err := redisClient.Ping(ctx); err != nil {
			a.logger.Errorf(err, "failed to connect to redis")
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })

		cacheRepo := redis.NewCacheRepo(redisClient, redisConv.NewEmbeddingConverterImpl(), a.cfg.Redis, a.logger)
		embedder = embedcache.NewCachedEmbedder(embedder, cacheRepo, a.logger)
	}

	// Архив исходников
	var imagesInfra usecase.ImagesInfra
	if a.cfg.Minio != nil {
		minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
		if err != nil {
			a.logger.Errorf(err, "failed to initialize minio client")
			return e.Wrap(whereami.WhereAmI(), err)
		}
		if err := clients.EnsureBucket(ctx, minioClient, a.cfg.Minio.BucketName); err != nil {
			a.logger.Errorf(err, "failed to initialize MinIO bucket")
			return e.Wrap(whereami.WhereAmI(), err)
		}

		imageRepo := s3Repo.NewImageRepo(minioClient, a.cfg.Minio)
		a.imagesInfra = minioInfra.NewMinioInfrastructure(imageRepo, a.cfg.Minio, a.logger, a.shutdownCtx)
		imagesInfra = a.imagesInfra
	}

	// Получатели сводок
	var (
		reporters []usecase.RunReporter
		journal   usecase.RunJournalUC
		producer  *kafka.Producer
	)

	if a.cfg.Kafka != nil {
		producer = kafka.NewProducer(a.logger, a.cfg.Kafka)
		if err := producer.EnsureTopic(initTimeout); err != nil {
			a.logger.Errorf(err, "failed to ensure kafka topic")
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.Add("kafka", func(context.Context) error { return producer.Close() })
	}

	if a.cfg.Db != nil {
		db, err := initPGDB(ctx, a.logger, a.cfg)
		if err != nil {
			return err
		}
		a.closer.AddQuiet("postgres", db.Close)

		runRepo := pgdb.NewRunRepo(db.Pool, pgdbConv.NewRunConverterImpl())
		runJournal := usecase.NewRunJournal(runRepo, db.Pool, a.logger)

		// С журналом события уходят в Kafka через outbox, в одной транзакции с записью о запуске
		if producer != nil {
			outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.NewOutboxEventConverterImpl())
			runJournal.WithOutbox(outboxRepo, producer)

			worker := kafka.NewOutboxWorker(outboxRepo, a.logger, producer, postgres.DSN(a.cfg.Db))
			worker.Start(a.shutdownCtx)
			a.closer.AddQuiet("outbox-worker", worker.Stop)
		}

		reporters = append(reporters, runJournal)
		journal = runJournal
	} else if producer != nil {
		reporters = append(reporters, producer)
	}

	pipelineUC := usecase.NewPipelineUC(
		usecase.NewProducer(embedder, a.cfg.Pipeline, a.logger),
		usecase.NewDeliverer(vectorSink, a.cfg.Pipeline, a.logger),
		a.cfg.Pipeline,
		imagecheck.NewValidator(a.cfg.Validation),
		imagesInfra,
		a.logger,
		reporters...,
	)

	r := chi.NewRouter()
	v1Http.NewRouter(r, a.logger).Init(a.shutdownCtx, pipelineUC, journal, a.cfg.Validation)
	a.httpSrv = v1Http.NewServer(r, a.cfg.Http)

	a.grpcSrv = v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	a.grpcSrv.RegisterServices(journal)

	return nil
}

// Run запускает HTTP- и gRPC-серверы и блокируется до сигнала остановки или фатальной ошибки сервера.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on %s", a.httpSrv.Addr())
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.stop()

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func (a *App) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if err := a.grpcSrv.Stop(shutdownCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			a.logger.Errorf(err, "gRPC server shutdown error")
		} else {
			a.logger.Warnf("gRPC server shutdown timeout")
		}
	}

	a.shutdownCancel()
	a.waitForCleanup()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("%v", err)
	}
}

func (a *App) waitForCleanup() {
	if a.imagesInfra == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := a.imagesInfra.WaitForCleanup(ctx); err != nil {
		a.logger.Warnf("MinIO cleanup did not finish before shutdown, some objects may remain: %v", err)
		return
	}

	a.logger.Infof("MinIO cleanup completed")
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger, postgres.DefaultMigrationsURL); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(ctx); err != nil {
		logger.Errorf(err, "failed to ping database")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
