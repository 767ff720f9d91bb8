package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chatapp "campusfind/internal/app/handlers/chat"
	itemapp "campusfind/internal/app/handlers/items"
	appoutbox "campusfind/internal/app/outbox"
	authsvc "campusfind/internal/app/services/auth"
	"campusfind/internal/app/uow"
	domainauth "campusfind/internal/domain/auth"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
	domainuser "campusfind/internal/domain/user"
	"campusfind/internal/infra/ai"
	"campusfind/internal/infra/broker/kafka"
	"campusfind/internal/infra/config"
	mongostore "campusfind/internal/infra/db/mongo"
	ginserver "campusfind/internal/infra/http/gin"
	"campusfind/internal/infra/obs"
	infraoutbox "campusfind/internal/infra/outbox"
	"campusfind/internal/infra/security"
	"campusfind/internal/infra/storage/memory"
	"campusfind/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	for _, worker := range app.workers {
		go func(run func(context.Context) error) {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "error", err)
			}
		}(worker)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	workers  []func(context.Context) error
	closers  []func() error
	ready    func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{ready: func() error { return nil }}

	var (
		factory  uow.Factory
		box      appoutbox.Outbox
		users    domainuser.Repository
		sessions domainauth.SessionStore
		itemSets domainitems.Watcher
		threads  domainchat.Watcher
	)

	switch cfg.StorageMode {
	case "mongo":
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Close(closeCtx)
		})
		itemsRepo := mongostore.NewItemRepository(client.DB)
		threadsRepo := mongostore.NewThreadRepository(client.DB)
		usersRepo := mongostore.NewUserRepository(client.DB)
		factory = mongostore.Factory{
			DB:          client.DB,
			ItemsRepo:   itemsRepo,
			ThreadsRepo: threadsRepo,
			UsersRepo:   usersRepo,
		}
		users = usersRepo
		sessions = mongostore.NewSessionStore(client.DB)
		watchers := &mongostore.Watchers{Items: itemsRepo, Threads: threadsRepo, DB: client.DB, Logger: logger}
		itemSets = watchers
		threads = watchers

		outboxStore := infraoutbox.NewStore(client.DB)
		box = outboxStore
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return nil, err
			}
			app.closers = append(app.closers, producer.Close)
			worker := &infraoutbox.Worker{
				Store:       outboxStore,
				Producer:    producer,
				Logger:      logger,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
			}
			app.workers = append(app.workers, worker.Run)

			consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "campusfind", nil, &kafka.EventsHandler{Logger: logger})
			if err != nil {
				return nil, err
			}
			consumer.Logger = logger
			app.closers = append(app.closers, consumer.Close)
			topics := []string{
				cfg.KafkaTopicPrefix + "items.events.v1",
				cfg.KafkaTopicPrefix + "chat.events.v1",
			}
			app.workers = append(app.workers, func(ctx context.Context) error {
				return consumer.Run(ctx, topics)
			})
		}

	default:
		store := memory.NewStore()
		userRepo := memory.NewUserRepository()
		factory = memory.Factory{Store: store, Users: userRepo}
		box = memory.NewOutbox()
		users = userRepo
		sessions = memory.NewSessionStore()
		itemSets = store
		threads = store
	}

	authService := &authsvc.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	var uploader s3.Uploader = s3.NoopUploader{}
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
		if err != nil {
			logger.Warn("photo uploads disabled", "error", err)
		} else {
			uploader = client
		}
	}

	var aiHandler ginserver.AIHTTP
	if cfg.VertexProject != "" {
		suggester, err := ai.NewSuggester(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel, logger)
		if err != nil {
			logger.Warn("ai suggestions disabled", "error", err)
		} else {
			app.closers = append(app.closers, suggester.Close)
			aiHandler = ginserver.AIHandler{Suggester: suggester, Logger: logger}
		}
	}

	app.handlers = ginserver.Handlers{
		Auth: ginserver.AuthHandler{Service: authService, Logger: logger},
		Items: ginserver.ItemHandler{
			Post:    &itemapp.PostItemHandler{UoWFactory: factory, Outbox: box},
			GetOne:  &itemapp.GetItemHandler{UoWFactory: factory},
			ListAll: &itemapp.ListItemsHandler{UoWFactory: factory},
			Resolv:  &itemapp.ResolveItemHandler{UoWFactory: factory, Outbox: box},
			Logger:  logger,
		},
		Chat: ginserver.ChatHandler{
			Sender: &chatapp.SendMessageHandler{UoWFactory: factory, Outbox: box},
			Lister: &chatapp.ListMessagesHandler{UoWFactory: factory},
			Logger: logger,
		},
		Inbox:          ginserver.NewInboxHandler(itemSets, threads, logger),
		AI:             aiHandler,
		Photos:         ginserver.PhotoHandler{Uploader: uploader, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
	}
	return app, nil
}

func (a *application) close(logger *slog.Logger) {
	for _, close := range a.closers {
		if err := close(); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}
}
