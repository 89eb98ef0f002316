package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"watchparty/backend/internal/broker"
	"watchparty/backend/internal/config"
	"watchparty/backend/internal/database"
	"watchparty/backend/internal/directory"
	"watchparty/backend/internal/handler"
	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/party"
	"watchparty/backend/internal/relay"
	"watchparty/backend/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	// Swagger imports
	_ "watchparty/backend/docs" // This is important for swag to find the generated docs
)

// @title           Watch Party API
// @version         1.0
// @description     REST and real-time API for the watch-party service.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	dir, closeDir, err := openDirectory(cfg)
	if err != nil {
		return err
	}
	defer closeDir()

	rdb, err := broker.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Str("module", "broker").Msg("failed to close Redis")
		}
	}()

	registry := hub.NewRegistry()
	group := cfg.ChatGroupPrefix + ":" + cfg.InstanceID
	chat := relay.NewChatRelay(rdb, registry, relay.ChatOptions{
		Stream:   cfg.ChatStream,
		MaxLen:   cfg.ChatStreamMaxLen,
		Group:    group,
		Consumer: cfg.InstanceID,
		Block:    cfg.ChatBlockTimeout,
	})
	// The consumer outlives request contexts; it is stopped explicitly below.
	if err := chat.Start(context.Background()); err != nil {
		return err
	}
	defer chat.Close()

	parties := party.NewService(dir, registry)
	sockets := socket.NewServer(registry, parties, chat, relay.NewDrawingRelay(registry), socket.Options{
		SendBuffer: cfg.WSSendBuffer,
	})

	router := handler.NewRouter(handler.Deps{
		Parties:   parties,
		Accounts:  party.NewAccounts(dir),
		Registry:  registry,
		ServeWS:   sockets.ServeWS,
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("instance", cfg.InstanceID).Str("chat_group", group).Msg("Watch party server started")
		log.Info().Msgf("Swagger UI is available at http://localhost%s/swagger/index.html", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		// Hijacked WebSocket connections are not covered by Shutdown.
		sockets.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	return g.Wait()
}

func openDirectory(cfg *config.Config) (directory.Directory, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Str("module", "database").Msg("DATABASE_URL is empty, using the in-memory directory")
		return directory.NewMemoryDirectory(), func() {}, nil
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return directory.NewGormDirectory(db), func() { database.Close(db) }, nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Human-friendly output while developing, JSON otherwise.
	if cfg.GinMode != gin.ReleaseMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
