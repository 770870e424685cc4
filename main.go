package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livequiz/broker"
	"livequiz/config"
	"livequiz/handlers"
	"livequiz/metrics"
	"livequiz/middleware"
	"livequiz/models"
	"livequiz/pkg/logger"
	"livequiz/puzzle"
	"livequiz/repositories"
	"livequiz/routes"
	"livequiz/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	logger.Init()
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Question{},
		&models.Game{},
		&models.Participant{},
		&models.Answer{},
	)
	if err != nil {
		logger.Fatal("Failed to migrate database", err)
	}

	redisClient := config.InitRedis(cfg)
	defer redisClient.Close()

	m := metrics.New()

	hubOpts := services.HubOptions{
		Tick:    cfg.CountdownTick,
		Metrics: m,
	}
	if cfg.NATSURL != "" {
		nc, err := broker.Connect(cfg.NATSURL, cfg.NATSToken)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", err)
		}
		defer nc.Close()
		hubOpts.Publisher = broker.NewPublisher(nc.Conn, cfg.NATSSubjectPrefix)
		logger.Info("Mirroring room events to NATS", "url", nc.Url, "prefix", cfg.NATSSubjectPrefix)
	}
	hub := services.NewHub(hubOpts)

	gameService := services.NewGameService(services.GameServiceDeps{
		Games:        repositories.NewGameRepository(db),
		Participants: repositories.NewParticipantRepository(db),
		Answers:      repositories.NewAnswerRepository(db),
		Questions:    repositories.NewQuestionRepository(db),
		Directory:    repositories.NewDirectoryRepository(db),
		Snapshots:    services.NewRedisSnapshotStore(redisClient, cfg.SnapshotTTL),
		Hub:          hub,
		Generator:    puzzle.NewGenerator(nil),
		Metrics:      m,
		Config: services.GameConfig{
			RoomCodeAttempts:      cfg.RoomCodeAttempts,
			DefaultGridSize:       cfg.DefaultGridSize,
			DefaultWordSearchTime: cfg.DefaultWordSearchTime,
			DefaultTotalQuestions: cfg.DefaultTotalQuestions,
			BoardColumns:          cfg.BoardColumns,
			BoardRows:             cfg.BoardRows,
		},
	})
	hub.SetHooks(gameService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(), middleware.Metrics(m), gin.Recovery())

	routes.SetupRoutes(router, handlers.NewGameHandler(gameService), hub, gameService, routes.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        m,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddress, cfg.Port),
		Handler:           middleware.WrapHTTP(router, cfg.CORSAllowedOrigins, cfg.RateLimitPerMinute),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
