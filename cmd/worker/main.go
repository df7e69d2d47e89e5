// Worker consumes security events from Kafka and pushes them to Loki.
// Requires KAFKA_BROKERS and LOKI_URL; SECURITY_EVENTS_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/CCodeCommunity/CardGameBackend/internal/config"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry/loki"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		return errors.New("LOKI_URL is required")
	}
	pusher, err := loki.NewClient(cfg.LokiURL, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.SecurityEventsTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "worker started", "topic", cfg.SecurityEventsTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
	if err := worker.NewRelay(reader, pusher, log.With("component", "relay")).Run(ctx); err != nil {
		return err
	}
	log.Info(context.Background(), "worker stopped")
	return nil
}
