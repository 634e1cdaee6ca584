package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, using process env")
	}
	cfg := LoadConfig()
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("db", cfg.DBPath).
		Str("queue", cfg.Queue).
		Msg("starting library service")

	repo, err := NewRepository(cfg.DBPath)
	must(err)
	defer repo.Close()

	br, err := newBroker(cfg.RabbitURL, cfg.RabbitExchange, cfg.Queue)
	must(err)
	defer br.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	must(br.consumeStatusChanged(ctx, repo))
	log.Info().Msg("rabbit consumer started")

	srv := NewServer(repo)
	handler := cors.Default().Handler(srv.Routes())
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Info().Msg("HTTP listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("serve")
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
