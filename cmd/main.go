package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trackclash/trackclash/brackets"
	"github.com/trackclash/trackclash/config"
	"github.com/trackclash/trackclash/db"
	"github.com/trackclash/trackclash/handlers"
	"github.com/trackclash/trackclash/repositories"
	"github.com/trackclash/trackclash/routes"
	"github.com/trackclash/trackclash/services"
	"github.com/trackclash/trackclash/storage"
)

// schedulerInterval is how often expired matchups are swept and closed.
const schedulerInterval = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Duration("vote_window", cfg.VoteWindow))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2Bucket,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize track storage", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("track storage initialized")

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	entrantRepo := repositories.NewPostgresEntrantRepository(dbConn)
	matchupRepo := repositories.NewPostgresMatchupRepository(dbConn)
	voteRepo := repositories.NewPostgresVoteRepository(dbConn)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generator := brackets.NewSingleEliminationGenerator(rng)

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	bracketService := services.NewBracketService(
		generator, tournamentRepo, entrantRepo, matchupRepo,
		uploader, cfg.VoteWindow, logger)
	tournamentService := services.NewTournamentService(
		dbConn, tournamentRepo, entrantRepo, bracketService, wsHub, logger)
	entrantService := services.NewEntrantService(entrantRepo, tournamentRepo, uploader)
	voteService := services.NewVoteService(dbConn, matchupRepo, voteRepo, wsHub, logger)
	resolverService := services.NewResolverService(
		dbConn, matchupRepo, tournamentRepo, wsHub, cfg.VoteWindow, rng, logger)

	// Sweep loop: matchups whose voting deadline has passed get resolved
	// without waiting for an organizer.
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("matchup close scheduler started", slog.Duration("interval", schedulerInterval))

		for range ticker.C {
			n, err := resolverService.ResolveExpiredMatchups(context.Background())
			if err != nil {
				logger.Error("scheduled matchup sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				logger.Info("expired matchups resolved", slog.Int("count", n))
			}
		}
	}()

	router := routes.InitRoutes(routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Tournament: handlers.NewTournamentHandler(tournamentService, bracketService),
		Entrant:    handlers.NewEntrantHandler(entrantService),
		Vote:       handlers.NewVoteHandler(voteService, resolverService),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, tournamentService),
	}, cfg.JWTSecretKey)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}
	logger.Info("application exited")
}
