package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hemalink/internal/bloodbank"
	"hemalink/internal/bloodbank/events"
	"hemalink/internal/bloodbank/metrics"
	"hemalink/internal/bloodbank/seed"
	"hemalink/internal/bloodbank/service"
	"hemalink/internal/platform/config"
	"hemalink/internal/platform/httpserver"
	"hemalink/internal/platform/kafka"
	"hemalink/internal/platform/logger"
	"hemalink/internal/platform/middleware"
	"hemalink/internal/storage/bootstrap"
	"hemalink/pkg/platform/httputil"
)

const (
	topicPartitions  = 3
	topicReplication = 1
	shutdownTimeout  = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/bloodbank.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	selection := bootstrap.Open(ctx, cfg, log)
	defer func() {
		if err := selection.Backend.Close(); err != nil {
			log.Error("close record store", "error", err)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	m.SetStoreBackend(selection.Backend.Name(), selection.Degraded)

	publisher, closePublisher := buildPublisher(ctx, cfg.Kafka, log)
	defer closePublisher()

	svc := bloodbank.NewService(selection.Backend,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithNotifier(events.NewNotifier(publisher, log)),
	)

	if cfg.Seed {
		if err := seed.Load(ctx, selection.Backend, time.Now()); err != nil {
			log.Error("load sample data", "error", err)
		} else {
			log.Info("sample data loaded")
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(middleware.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Get("/healthz", healthHandler(svc))
	r.Handle("/metrics", promhttp.Handler())
	bloodbank.NewHandler(svc, log).Register(r)

	log.Info("starting hemalink", "addr", cfg.Addr, "store_backend", selection.Backend.Name())
	if err := httpserver.Run(ctx, httpserver.New(cfg.Addr, r), shutdownTimeout, log); err != nil {
		log.Error("server error", "error", err)
	}
}

// buildPublisher always logs notifications and also produces them to Kafka
// when brokers are configured. A Kafka setup failure leaves logging only.
func buildPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (events.Publisher, func()) {
	logPublisher := events.NewLogPublisher(log)
	if len(cfg.Brokers) == 0 {
		return logPublisher, func() {}
	}

	client, err := kafka.NewClient(cfg.Brokers, cfg.Topic)
	if err != nil {
		log.Warn("kafka notifications disabled", "error", err)
		return logPublisher, func() {}
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Topic, topicPartitions, topicReplication); err != nil {
		log.Warn("kafka notifications disabled", "topic", cfg.Topic, "error", err)
		client.Close()
		return logPublisher, func() {}
	}
	log.Info("kafka notifications enabled", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return events.Multi{logPublisher, events.NewKafkaPublisher(client, cfg.Topic)}, client.Close
}

func healthHandler(svc *bloodbank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Health(r.Context()); err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"backend": svc.Backend(),
		})
	}
}
