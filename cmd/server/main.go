package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/idp"
	"github.com/jrsteele09/go-session-gateway/internal/config"
	"github.com/jrsteele09/go-session-gateway/internal/database"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/server"
	"github.com/jrsteele09/go-session-gateway/sessions/redisrepo"
	"github.com/jrsteele09/go-session-gateway/token/cipher"
	"github.com/jrsteele09/go-session-gateway/token/refresh"
	refreshpg "github.com/jrsteele09/go-session-gateway/token/refresh/postgresrepo"
	"github.com/jrsteele09/go-session-gateway/users"
	userspg "github.com/jrsteele09/go-session-gateway/users/postgresrepo"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	db, err := database.Open(ctx, c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("database.Open: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(c.GetDatabaseURL()); err != nil {
		return fmt.Errorf("database.RunMigrations: %w", err)
	}

	sessionStore, err := redisrepo.New(c.GetRedisURL(), c.GetSessionKeyPrefix())
	if err != nil {
		return fmt.Errorf("redisrepo.New: %w", err)
	}
	defer sessionStore.Close()

	identityProvider, err := idp.New(ctx, c)
	if err != nil {
		return fmt.Errorf("idp.New: %w", err)
	}

	collector := metrics.NewPrometheusCollector()

	sessionService, err := auth.NewSessionService(auth.Dependencies{
		Store:         sessionStore,
		RefreshTokens: refreshpg.New(db),
		Cipher:        cipher.New(c.GetRefreshTokenEncryptionKey()),
		IdP:           identityProvider,
		Tx:            txRunner(db),
		Metrics:       collector,
	}, c)
	if err != nil {
		return fmt.Errorf("auth.NewSessionService: %w", err)
	}

	srv, err := server.New(c, server.Dependencies{
		Sessions:       sessionService,
		IdP:            identityProvider,
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// txRunner binds the login transaction: the user row and the encrypted
// refresh token commit together or not at all.
func txRunner(db *sql.DB) auth.TxRunner {
	return func(ctx context.Context, fn func(userRepo users.Repo, tokenRepo refresh.Repo) error) error {
		return database.WithinTx(ctx, db, func(tx *sql.Tx) error {
			return fn(userspg.New(tx), refreshpg.New(tx))
		})
	}
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
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
