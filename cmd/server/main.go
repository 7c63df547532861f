/*
main.go - Application entry point

PURPOSE:
  Starts the EagerInvoice finance engine server: embedded SQLite store,
  reconciliation engine, reporting facade, and the HTTP surface, with
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags
  2. Open the SQLite store and migrate
  3. Build engine, reports, and handlers
  4. Run a full resync so derived salary rows match the store
  5. Serve HTTP until SIGINT/SIGTERM

CONFIGURATION:
  -port    HTTP port         (env EAGERINVOICE_PORT, default 8080)
  -db      SQLite path       (env EAGERINVOICE_DB, default eagerinvoice.db;
                              use ":memory:" for a throwaway database)
  -debug   debug-level logs  (env EAGERINVOICE_DEBUG)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eagerinvoice/finance-engine/api"
	"github.com/eagerinvoice/finance-engine/finance"
	"github.com/eagerinvoice/finance-engine/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	port := flag.Int("port", envInt("EAGERINVOICE_PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("EAGERINVOICE_DB", "eagerinvoice.db"), "SQLite database path")
	debug := flag.Bool("debug", os.Getenv("EAGERINVOICE_DEBUG") != "", "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to open database")
	}
	defer store.Close()

	engine := finance.NewEngine(store, store, log)
	reports := finance.NewReports(store, store)
	handler := api.NewHandler(store, store, engine, reports, log)

	// Repair derived salary rows in case the store changed out-of-band.
	if result, err := engine.FullResync(context.Background()); err != nil {
		log.Warn().Err(err).Msg("startup resync failed")
	} else if !result.Success {
		log.Warn().Strs("errors", result.Errors).Msg("startup resync partially failed")
	} else {
		log.Info().Int("months", len(result.AffectedMonths)).Msg("startup resync complete")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
