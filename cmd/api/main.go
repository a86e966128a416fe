package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/app"
	"github.com/ragavi-632007/visionx/internal/authpw"
	"github.com/ragavi-632007/visionx/internal/config"
	"github.com/ragavi-632007/visionx/internal/email"
	"github.com/ragavi-632007/visionx/internal/export"
	"github.com/ragavi-632007/visionx/internal/history"
	"github.com/ragavi-632007/visionx/internal/logging"
	"github.com/ragavi-632007/visionx/internal/objectstore"
	"github.com/ragavi-632007/visionx/internal/pdfdoc"
	"github.com/ragavi-632007/visionx/internal/pipeline"
	"github.com/ragavi-632007/visionx/internal/search"
	"github.com/ragavi-632007/visionx/internal/session"
	"github.com/ragavi-632007/visionx/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Database connection failed")
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Migrations failed")
	}
	logger.WithField("applied", applied).Info("Migrations complete")

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create history dir")
	}

	dataStore := store.NewPostgresStore(db)

	objects, err := objectstore.NewMinioStore(ctx, objectstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Object storage unavailable")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, pgfts, logger)
	defer searchService.Close()
	go searchService.ReindexAll(ctx, pgfts)

	deps := app.Deps{
		Store:         dataStore,
		Objects:       objects,
		History:       history.New(cfg.HistoryDir),
		Search:        searchService,
		SearchRecords: pgfts,
		Export:        export.NewService(dataStore),
		Auth:          authpw.NewService(dataStore, logger),
		Logger:        logger,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, refresh sessions fall back to PostgreSQL")
		} else {
			logger.Info("Using Redis for refresh sessions and pending uploads")
			defer redisStore.Close()
			deps.Sessions = redisStore
			deps.Pending = redisStore
		}
	}

	client := analysis.NewClient(analysis.Config{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      cfg.LLMAPIKey(),
		BaseURL:     cfg.LLMBaseURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	}, analysis.WithLogger(logger))
	if !client.Configured() {
		logger.WithField("provider", client.Provider()).Warn("No API key configured, analysis requests will fail")
	}
	rasterizer := pdfdoc.NewRasterizer(pdfdoc.FitzRenderer{}, logger)
	deps.Pipeline = pipeline.New(client, rasterizer, pipeline.WithLogger(logger))
	deps.Chat = client

	mail := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		BaseURL:  cfg.PublicURL,
	})
	if !mail.IsConfigured() {
		logger.Warn("SMTP not configured, verification and reset tokens are returned in responses")
	}
	deps.Mail = mail

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Analysis of a ten page scan with retries can take minutes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Addr).Info("VisionX API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
