package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/juststore/internal/application/account"
	fileapp "github.com/juststore/internal/application/file"
	"github.com/juststore/internal/application/identity"
	"github.com/juststore/internal/application/upload"
	"github.com/juststore/internal/config"
	"github.com/juststore/internal/infrastructure/backend"
	"github.com/juststore/internal/infrastructure/dynamo"
	jwtinfra "github.com/juststore/internal/infrastructure/jwt"
	s3infra "github.com/juststore/internal/infrastructure/s3"
	"github.com/juststore/internal/infrastructure/smtp"
	"github.com/juststore/internal/infrastructure/sns"
	"github.com/juststore/internal/pkg/logging"
	transporthttp "github.com/juststore/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, cfg.AppEnv, cfg.LogLevel))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	clients, err := backend.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("backend clients: %w", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamo.Bootstrap(ctx, clients.Dynamo, cfg.DynamoTables)

	signer, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("jwt provider: %w", err)
		}
		slog.Warn("JWT keys not available, using an ephemeral key", "err", err)
		if signer, err = jwtinfra.NewEphemeralProvider(); err != nil {
			return fmt.Errorf("jwt provider: %w", err)
		}
	}

	identitySvc := identity.NewService(identity.ServiceDeps{
		TokenRepo:   dynamo.NewEmailTokenRepo(clients.Dynamo, cfg.DynamoTables.EmailTokens),
		SessionRepo: dynamo.NewSessionRepo(clients.Dynamo, cfg.DynamoTables.Sessions),
		Mailer:      smtp.NewMailer(cfg),
		Signer:      signer,
		OTPTTL:      cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		SessionTTL:  cfg.SessionTTL,
	})
	accountSvc := account.NewService(account.ServiceDeps{
		UserRepo:         dynamo.NewUserRepo(clients.Dynamo, cfg.DynamoTables.Users, cfg.DynamoTables.UserEmails),
		Identity:         identitySvc,
		Publisher:        sns.NewPublisher(clients.SNS, cfg.SNSTopicARN),
		StrictLookup:     cfg.StrictLookup,
		DefaultAvatarURL: cfg.DefaultAvatarURL,
	})
	fileSvc := fileapp.NewService(fileapp.ServiceDeps{
		ObjectStore: s3infra.NewStore(clients.S3, cfg.S3BucketName),
		FileRepo:    dynamo.NewFileRepo(clients.Dynamo, cfg.DynamoTables.Files),
		PresignTTL:  cfg.PresignTTL,
	})

	staging := upload.NewRegistry(cfg.StagingIdleTTL)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go staging.Run(pruneCtx, 5*time.Minute)

	router, limiter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Accounts: accountSvc,
		Files:    fileSvc,
		Staging:  staging,
	})
	defer limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
