package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mybizz/mybizz/app/controllers"
	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/billing"
	"github.com/mybizz/mybizz/internal/pkg/cache"
	"github.com/mybizz/mybizz/internal/pkg/database"
	"github.com/mybizz/mybizz/internal/pkg/env"
	"github.com/mybizz/mybizz/internal/pkg/health"
	"github.com/mybizz/mybizz/internal/pkg/hub"
	"github.com/mybizz/mybizz/internal/pkg/jobqueue"
	"github.com/mybizz/mybizz/internal/pkg/payloadarchive"
	"github.com/mybizz/mybizz/internal/pkg/retry"
	"github.com/mybizz/mybizz/internal/pkg/router"
	"github.com/mybizz/mybizz/internal/pkg/session"
	"github.com/mybizz/mybizz/internal/pkg/vault"
)

func main() {
	app, manager := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[Server] Listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Server] Shutting down...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Errorf("[Server] Shutdown failed: %v", err)
	}
	manager.Stop()
	if err := cache.Close(); err != nil {
		log.Warnf("[Server] Closing Redis failed: %v", err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	secrets := newSecretsProvider(repos.Vault)
	dispatcher := billing.NewServiceFromDB(database.GetDB())
	hubClient := hub.NewClient(secrets, env.GetEnvSeconds("HUB_TIMEOUT_SECONDS", hub.DefaultTimeout))

	queue := jobqueue.NewQueue(env.GetEnvInt("JOBQUEUE_WORKERS", 3))
	queue.RegisterHandler(jobqueue.JobTypeForwardToHub, jobqueue.ForwardHandler(hub.NewForwarder(hubClient, repos.WebhookLog)))

	var archiveQueue payloadarchive.Enqueuer
	var archiveLoader retry.ArchiveLoader
	if archiver := newArchiver(repos.WebhookLog); archiver != nil {
		queue.RegisterHandler(jobqueue.JobTypeArchivePayload, jobqueue.ArchiveHandler(archiver))
		archiveQueue = queue
		archiveLoader = archiver
	}

	schedule := jobqueue.NewRetrySchedule(cache.GetClient())
	coordinator := retry.NewCoordinator(
		repos.WebhookLog,
		dispatcher,
		hubClient,
		schedule,
		retry.Options{
			MaxRetries: env.GetEnvInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxRetries),
			Archive:    archiveLoader,
			Forwards:   queue,
		},
	)

	manager := jobqueue.NewManager(queue, coordinator, jobqueue.SweepIntervalFromEnv())
	jobqueue.InitManager(manager)
	manager.Start()

	sessions := session.NewSessionStore()

	checker := health.NewChecker(0)
	checker.Add("database", health.DatabaseCheck(database.GetDB()))
	checker.Add("redis", health.RedisCheck(cache.GetClient()))

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./docs/openapi.yml"),
		Path:     "api",
	}))

	router.InstallRouter(app, router.Dependencies{
		Webhook: controllers.NewPaddleWebhookController(
			billing.NewVerifier(secrets),
			repos.WebhookLog,
			dispatcher,
			queue,
			archiveQueue,
			coordinator,
		),
		Admin:    controllers.NewAdminWebhookController(coordinator),
		Queue:    controllers.NewAdminQueueController(queue, schedule),
		Auth:     controllers.NewAuthController(repos.User, sessions),
		Users:    repos.User,
		Sessions: sessions,
		Health:   checker,
	})

	return app, manager
}

// newSecretsProvider resolves tenant secrets from the encrypted store first
// and the environment second.
func newSecretsProvider(repo repository.VaultRepository) vault.Provider {
	masterKey := env.GetEnv("VAULT_MASTER_KEY", "")
	if masterKey == "" {
		log.Warn("[Vault] VAULT_MASTER_KEY not set, reading secrets from the environment only")
		return vault.NewEnvProvider()
	}
	store, err := vault.NewStore(repo, masterKey)
	if err != nil {
		log.Fatalf("[Vault] Invalid VAULT_MASTER_KEY: %v", err)
	}
	return vault.Chain{store, vault.NewEnvProvider()}
}

// newArchiver returns nil when the S3 archive is disabled or unusable.
func newArchiver(logs repository.WebhookLogRepository) *payloadarchive.Archiver {
	cfg, err := payloadarchive.LoadConfig()
	if err != nil {
		log.Errorf("[PayloadArchive] Invalid configuration, archive disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	store, err := payloadarchive.NewS3Store(context.Background(), cfg)
	if err != nil {
		log.Errorf("[PayloadArchive] Could not create S3 client, archive disabled: %v", err)
		return nil
	}
	log.Infof("[PayloadArchive] Archiving raw payloads to bucket %s", cfg.BucketName)
	return payloadarchive.NewArchiver(store, logs)
}
