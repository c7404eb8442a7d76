package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/config"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/delivery/httpd"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/middleware"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/repository"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/service"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/service/scoring"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker/queue"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/pkg/kafka"
)

type App struct {
	server           *http.Server
	logger           zerolog.Logger
	config           *config.Config
	db               *sql.DB
	workerPool       *worker.WorkerPool
	evaluationWorker worker.EvaluationWorker
	sweeper          *worker.FailedSweeper
	rabbitMQRepo     repository.RabbitMQRepository
	events           queue.EventPublisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New собирает зависимости. consumeOnly поднимает только потребителя очереди без HTTP.
func New(cfg *config.Config, log zerolog.Logger, db *sql.DB, consumeOnly bool) (*App, error) {
	if consumeOnly && cfg.Evaluation.DispatchMode != config.DispatchModeRabbitMQ {
		return nil, errors.New("worker mode requires evaluation.dispatch_mode=rabbitmq")
	}

	a := &App{
		logger: log,
		config: cfg,
		db:     db,
	}

	if needsRabbitMQ(cfg) {
		rabbitMQRepo, err := repository.NewRabbitMQRepository(cfg.RabbitMQ.URL, log)
		if err != nil {
			return nil, err
		}
		a.rabbitMQRepo = rabbitMQRepo

		if err := rabbitMQRepo.SetupQueue(cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName, cfg.RabbitMQ.RoutingKey); err != nil {
			a.closeBrokers()
			return nil, err
		}
	}

	events, err := a.newEventPublisher()
	if err != nil {
		a.closeBrokers()
		return nil, err
	}
	a.events = events

	var storage repository.AttachmentStorage
	if cfg.Storage.Enabled {
		storage, err = repository.NewMinIOAttachmentStorage(repository.MinIOStorageConfig{
			Endpoint:       cfg.Storage.Endpoint,
			AccessKey:      cfg.Storage.AccessKey,
			SecretKey:      cfg.Storage.SecretKey,
			Bucket:         cfg.Storage.Bucket,
			Region:         cfg.Storage.Region,
			UseSSL:         cfg.Storage.UseSSL,
			PublicURL:      cfg.Storage.PublicURL,
			ConnectTimeout: cfg.Storage.ConnectTimeout,
		}, log)
		if err != nil {
			a.closeBrokers()
			return nil, err
		}
	}

	submissionRepo := repository.NewSubmissionRepository(db, log)
	feedbackRepo := repository.NewFeedbackRepository(db, log)
	assignmentRepo := repository.NewAssignmentRepository(db, log)
	transactor := repository.NewTransactor(db, log)
	postgres := repository.NewPostgresRepository(db, log)

	engine := newEngine(cfg.Scoring)

	evaluationService := service.NewEvaluationService(
		submissionRepo,
		feedbackRepo,
		transactor,
		engine,
		events,
		service.RetryPolicy{
			MaxRetries:      cfg.Evaluation.MaxRetries,
			InitialInterval: cfg.Evaluation.RetryInitialInterval,
			MaxInterval:     cfg.Evaluation.RetryMaxInterval,
		},
		log,
	)

	a.workerPool = worker.NewWorkerPool(
		cfg.Evaluation.MaxWorkers,
		cfg.Evaluation.QueueSize,
		cfg.Evaluation.EnqueueTimeout,
		log,
	)

	var dispatcher worker.Dispatcher
	switch cfg.Evaluation.DispatchMode {
	case config.DispatchModeRabbitMQ:
		dispatcher = worker.NewQueueDispatcher(
			queue.NewRabbitMQPublisher(a.rabbitMQRepo.Channel(), log),
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.RoutingKey,
			log,
		)
		if consumeOnly || cfg.Evaluation.Consume {
			consumer := queue.NewRabbitMQConsumer(
				a.rabbitMQRepo.Channel(),
				cfg.RabbitMQ.QueueName,
				cfg.RabbitMQ.ConsumerTag,
				cfg.RabbitMQ.PrefetchCount,
				log,
			)
			a.evaluationWorker = worker.NewEvaluationWorker(a.workerPool, consumer, evaluationService, cfg.Evaluation.Timeout, log)
		}
	default:
		dispatcher = worker.NewLocalDispatcher(a.workerPool, evaluationService, cfg.Evaluation.Timeout, log)
	}

	validate := validator.New()

	submissionService := service.NewSubmissionService(
		submissionRepo,
		feedbackRepo,
		assignmentRepo,
		storage,
		dispatcher,
		validate,
		log,
	)
	assignmentService := service.NewAssignmentService(assignmentRepo, validate, log)

	a.sweeper = worker.NewFailedSweeper(
		submissionService,
		cfg.Evaluation.SweepInterval,
		cfg.Evaluation.SweepBatch,
		log,
	)

	if consumeOnly {
		return a, nil
	}

	handler := httpd.NewHandler(
		submissionService,
		assignmentService,
		postgres,
		a.workerPool,
		cfg.Storage.MaxUploadSize,
		log,
	)

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      newRouter(cfg, log, handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func newRouter(cfg *config.Config, log zerolog.Logger, handler *httpd.Handler) chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	router.Use(middleware.NewCORS(cfg.CORS))

	handler.RegisterRoutes(router)

	return router
}

func newEngine(cfg config.ScoringConfig) *scoring.Engine {
	if cfg.PlagiarismMethod == config.PlagiarismMethodSimilarity {
		return scoring.NewEngine(scoring.NewSimilarityRiskEstimator())
	}
	return scoring.NewEngine(scoring.NewTieredRiskEstimator(scoring.NewRandomSource(cfg.Seed)))
}

func needsRabbitMQ(cfg *config.Config) bool {
	return cfg.Evaluation.DispatchMode == config.DispatchModeRabbitMQ ||
		cfg.Notifications.Driver == config.NotificationsRabbitMQ
}

func (a *App) newEventPublisher() (queue.EventPublisher, error) {
	switch a.config.Notifications.Driver {
	case config.NotificationsRabbitMQ:
		publisher := queue.NewRabbitMQPublisher(a.rabbitMQRepo.Channel(), a.logger)
		return queue.NewRabbitMQEventPublisher(
			publisher,
			a.config.RabbitMQ.Exchange,
			a.config.RabbitMQ.CompletedRoutingKey,
			a.logger,
		), nil
	case config.NotificationsKafka:
		producer, err := kafka.NewProducer(kafka.Config{Brokers: a.config.Kafka.Brokers})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		return queue.NewKafkaEventPublisher(producer, a.config.Notifications.Topic, a.logger), nil
	default:
		return queue.NewNoopEventPublisher(), nil
	}
}

// Start запускает пул, потребителя очереди и sweeper. HTTP поднимается отдельно через Run.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	if a.evaluationWorker != nil {
		if err := a.evaluationWorker.Start(ctx); err != nil {
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sweeper.Start(ctx)
	}()

	return nil
}

func (a *App) Run() error {
	if a.server == nil {
		return errors.New("http server is not configured")
	}

	a.logger.Info().Msgf("Starting evaluation service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down evaluation service...")

	var shutdownErr error

	// Сначала перестаём принимать запросы, затем дожидаемся уже принятых оценок.
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.evaluationWorker != nil {
		if err := a.evaluationWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop evaluation worker")
		}
	}

	if err := a.workerPool.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close event publisher")
		}
	}

	a.closeBrokers()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	return shutdownErr
}

func (a *App) closeBrokers() {
	if a.rabbitMQRepo != nil {
		if err := a.rabbitMQRepo.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
		a.rabbitMQRepo = nil
	}
}
