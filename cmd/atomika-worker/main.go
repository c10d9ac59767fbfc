// Atomika Worker — удалённый исполнитель атомов.
//
// Worker:
//   - Получает запросы atom.dispatch из RabbitMQ
//   - Находит исполнителя в реестре по имени атома
//   - Публикует события atom.started / atom.completed
//
// Workers масштабируются горизонтально. Реестр исполнителей
// регистрируется в коде: движок не передаёт функции по проводу.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Atomika/internal/config"
	"github.com/shaiso/Atomika/internal/mq"
	"github.com/shaiso/Atomika/internal/telemetry"
	"github.com/shaiso/Atomika/internal/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("ATOMIKA_CONFIG"), "path to YAML config")
	flag.Parse()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting atomika-worker")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.MQ.URL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	publisher, err := mq.NewPublisher(mqConn, logger)
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}

	// Реестр исполнителей этого воркера
	registry := worker.NewRegistry()
	registerAtoms(registry)

	w := worker.New(worker.Config{
		Name:        cfg.Worker.Name,
		Registry:    registry,
		Sink:        publisher,
		Conn:        mqConn,
		Prefetch:    cfg.Worker.Prefetch,
		ExecTimeout: cfg.Worker.ExecTimeout,
		Logger:      logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	w.Stop()
	logger.Info("atomika-worker stopped")
}

// registerAtoms наполняет реестр исполнителей. Каждое развёртывание
// воркера регистрирует здесь атомы обслуживаемых потоков.
func registerAtoms(r *worker.Registry) {
	r.Register("noop", worker.Executor{
		Execute: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	})
}
