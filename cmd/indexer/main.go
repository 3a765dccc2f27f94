package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topics.DocumentIngest == "" {
		return fmt.Errorf("kafka brokers and the document ingest topic are required")
	}
	slog.Info("starting indexer service", "storage", cfg.Storage.Backend, "commit_interval", cfg.Index.CommitInterval)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	backend, closeBackend, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer closeBackend()

	opts, err := indexer.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("building index options: %w", err)
	}
	opts.Logger = slog.Default()
	opts.Metrics = m
	idx, err := indexer.Open(ctx, backend, opts)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer idx.Close()

	writer, err := idx.OpenWriter(ctx)
	if err != nil {
		return fmt.Errorf("acquiring writer: %w", err)
	}
	defer writer.Close(context.Background())

	var notify func(context.Context, uint64)
	if topic := cfg.Kafka.Topics.IndexComplete; topic != "" {
		producer := kafka.NewProducer(cfg.Kafka, topic, slog.Default())
		defer producer.Close()
		notify = consumer.CommitNotifier(producer, slog.Default())
	}
	commitDone := writer.StartCommitLoop(ctx, cfg.Index.CommitInterval, notify)

	ingester := consumer.NewIngester(writer, consumer.Options{Logger: slog.Default(), Metrics: m})
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, ingester.Handle,
		kafka.ConsumerOptions{FromBeginning: true, Logger: slog.Default()},
	)
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"generation", idx.Generation(),
	)
	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	// the commit loop performs a final commit once ctx is done
	stop()
	<-commitDone
	slog.Info("final commit done", "generation", idx.Generation())
	return nil
}
