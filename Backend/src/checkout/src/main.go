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
	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, using process env")
	}
	cfg := LoadConfig()
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("db", cfg.DBPath).
		Float64("tax_rate", cfg.TaxRate).
		Msg("starting checkout service")

	repo, err := NewRepository(cfg.DBPath)
	must(err)
	defer repo.Close()

	if cfg.SeedOnStart {
		must(repo.Seed(context.Background()))
		log.Info().Msg("seeded catalog and coupons")
	}

	var rb *Rabbit
	if cfg.RabbitURL != "" {
		rb, err = NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		must(err)
		defer rb.Close()
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("rabbit connected")
	} else {
		log.Warn().Msg("RABBIT_URL empty, order events disabled")
	}

	srv := NewServer(repo, rb, cfg)
	handler := cors.Default().Handler(srv.Routes())
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	// Apagado limpio
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
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
