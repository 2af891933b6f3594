package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/avalontm/gemini-auth/auth"
	"github.com/avalontm/gemini-auth/internal/config"
	redisstorage "github.com/avalontm/gemini-auth/internal/storage/redis"
	"github.com/avalontm/gemini-auth/internal/storage/sqlite"
	"github.com/avalontm/gemini-auth/password"
	"github.com/avalontm/gemini-auth/server"
	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/token"
	"github.com/avalontm/gemini-auth/users"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	displayAppname(c.GetAppName())

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	authService, sessionStore, cleanup, err := buildAuthService(c, logger)
	if err != nil {
		return fmt.Errorf("buildAuthService: %w", err)
	}
	defer cleanup()

	sweeper := sessions.NewSweeper(sessionStore, c.GetSessionSweepInterval(), logger)
	sweeper.Start()
	defer sweeper.Stop()

	srv, err := server.New(c, authService, logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildAuthService(c config.Config, logger zerolog.Logger) (*auth.Service, *sessions.Store, func(), error) {
	cleanup := func() {}

	issuer := token.NewIssuer(token.NewHMACSigner(c.GetJWTSecret()),
		token.WithIssuer(c.GetJWTIssuer()),
		token.WithAudience(c.GetJWTAudience()),
		token.WithTokenExpiry(c.GetAccessTokenTTL(), c.GetRefreshTokenTTL()))

	var userRepo users.Repo
	var sessionRepo sessions.Repo

	switch c.GetStorageBackend() {
	case "sqlite":
		storage, err := sqlite.New(context.Background(), c.GetSQLitePath())
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("sqlite.New: %w", err)
		}
		cleanup = func() { _ = storage.Close() }
		userRepo = storage.Users()
		sessionRepo = storage.Sessions()
	default:
		userRepo = users.NewInMemoryRepo()
		sessionRepo = sessions.NewInMemoryRepo()
	}

	switch c.GetSessionBackend() {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		sessionRepo = redisstorage.NewSessionRepo(client)
	case "sqlite":
		// Already wired when the storage backend is sqlite.
	case "memory":
		sessionRepo = sessions.NewInMemoryRepo()
	}

	store, err := sessions.NewStore(sessionRepo, issuer, sessions.WithRetention(c.GetSessionRetention()))
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("sessions.NewStore: %w", err)
	}

	hasher := password.NewHasher(password.WithCost(c.GetBcryptCost()))

	service, err := auth.NewService(
		auth.Repos{Users: userRepo, Sessions: store},
		issuer,
		hasher,
		auth.WithMaxSessions(c.GetMaxSessionsPerUser()),
	)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("auth.NewService: %w", err)
	}

	logger.Info().
		Str("storage", c.GetStorageBackend()).
		Str("sessions", c.GetSessionBackend()).
		Msg("storage backends ready")

	return service, store, cleanup, nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
