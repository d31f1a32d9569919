package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/avelin/quickmeet/internal/api/http"
	"github.com/avelin/quickmeet/internal/api/ws"
	"github.com/avelin/quickmeet/internal/config"
	"github.com/avelin/quickmeet/internal/registry"
	"github.com/avelin/quickmeet/internal/relay"
	"github.com/avelin/quickmeet/internal/repository"
	"github.com/avelin/quickmeet/internal/repository/model"
	"github.com/avelin/quickmeet/internal/service"
	"github.com/avelin/quickmeet/lib/logger/sl"
	"github.com/avelin/quickmeet/lib/logger/slogpretty"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	roomRepo, userRepo, callLogRepo := setupRepositories(cfg.Database, log)

	roomService := service.NewRoomService(roomRepo, callLogRepo, log)
	authService := service.NewAuthService(userRepo, log)

	conns := registry.NewConnections()
	rooms := registry.NewRooms()
	limiter := relay.NewChatLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval)
	signalRelay := relay.New(conns, rooms, limiter, roomService, log)

	wsController := ws.NewController(signalRelay, log)
	authController := httpapi.NewAuthController(authService)
	roomController := httpapi.NewRoomController(roomService)

	router := httpapi.SetupRouter(authController, roomController, wsController, cfg.HTTP.AllowedOrigins)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupRepositories(cfg config.DatabaseConfig, log *slog.Logger) (repository.RoomRepository, repository.UserRepository, repository.CallLogRepository) {
	if cfg.DSN == "" {
		log.Warn("no database dsn configured, using in-memory record store")
		return repository.NewInMemoryRoomRepository(),
			repository.NewInMemoryUserRepository(),
			repository.NewInMemoryCallLogRepository()
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	return repository.NewPostgresRoomRepository(db),
		repository.NewPostgresUserRepository(db),
		repository.NewPostgresCallLogRepository(db)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Room{}, &model.Participant{}, &model.User{}, &model.CallLog{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
