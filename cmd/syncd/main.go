// cmd/syncd/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nonstopautomation/service-fusion/internal/common/config"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/common/notify"
	"github.com/nonstopautomation/service-fusion/internal/gohighlevel"
	"github.com/nonstopautomation/service-fusion/internal/servicefusion"
	"github.com/nonstopautomation/service-fusion/internal/state"
	syncer "github.com/nonstopautomation/service-fusion/internal/sync"
	"github.com/nonstopautomation/service-fusion/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLogger.Sync() }()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting sync service", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"interval":    cfg.Sync.Interval().String(),
	})

	location, err := time.LoadLocation(cfg.ServiceFusion.Timezone)
	if err != nil {
		zapLogger.Fatal("invalid service_fusion.timezone", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := buildNotifier(ctx, cfg, log)
	store := buildStateStore(ctx, cfg, log, zapLogger)

	sfClient := servicefusion.NewClient(
		cfg.ServiceFusion.BaseURL,
		cfg.ServiceFusion.ClientID,
		cfg.ServiceFusion.ClientSecret,
		config.GetDuration(cfg.ServiceFusion.Timeout),
		log,
	)
	ghlClient := gohighlevel.NewClient(
		cfg.GoHighLevel.BaseURL,
		cfg.GoHighLevel.APIKey,
		cfg.GoHighLevel.LocationID,
		config.GetDuration(cfg.GoHighLevel.Timeout),
		log,
	)

	lister := servicefusion.NewLister(sfClient, location, cfg.Sync.PageSize, notifier, log)
	stages := syncer.NewStageMap(cfg.GoHighLevel.Stages)
	contacts := syncer.NewContactSyncer(ghlClient, cfg.GoHighLevel.CustomFields, notifier, log)
	opportunities := syncer.NewOpportunitySyncer(syncer.OpportunitySyncerOptions{
		Source:           sfClient,
		Estimates:        lister,
		CRM:              ghlClient,
		Contacts:         contacts,
		Stages:           stages,
		PipelineID:       cfg.GoHighLevel.PipelineID,
		WorkOrderFieldID: cfg.GoHighLevel.CustomFields.OpportunityWorkOrderID,
		WorkOrderKey:     cfg.GoHighLevel.CustomFields.WorkOrderFieldKey,
		ConversionLimit:  cfg.Sync.MaxResults,
		Location:         location,
		Notifier:         notifier,
		Logger:           log,
	})
	orchestrator := syncer.NewOrchestrator(lister, contacts, opportunities, store, cfg.Sync.MaxResults, notifier, log)

	server := buildServer(cfg, orchestrator, sfClient, notifier, log)

	go runScheduler(ctx, orchestrator, cfg.Sync.Interval(), log)

	go func() {
		log.Info("http server listening", map[string]interface{}{"addr": cfg.Server.Addr()})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown was not clean", nil)
	}
}

// runScheduler runs a full sync immediately, then again on every tick.
func runScheduler(ctx context.Context, orchestrator *syncer.Orchestrator, interval time.Duration, log logger.Logger) {
	orchestrator.RunAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped", nil)
			return
		case <-ticker.C:
			orchestrator.RunAll(ctx)
		}
	}
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) notify.Notifier {
	switch cfg.Notifications.Channel {
	case "webhook":
		return notify.NewWebhookNotifier(cfg.Notifications.WebhookURL, log)
	case "sns":
		notifier, err := notify.NewSNSNotifier(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.AWS.TopicARN, log)
		if err != nil {
			log.WithError(err).Error("failed to build SNS notifier, alerts disabled", nil)
			return notify.NewNopNotifier()
		}
		return notifier
	default:
		log.Warn("alerting disabled", map[string]interface{}{
			"channel": cfg.Notifications.Channel,
		})
		return notify.NewNopNotifier()
	}
}

func buildStateStore(ctx context.Context, cfg *config.Config, log logger.Logger, zapLogger *zap.Logger) state.Store {
	if cfg.State.Backend == "redis" {
		store := state.NewRedisStore(cfg.State.Redis, cfg.Sync.Lookback(), log)
		if err := retryWithBackoff(ctx, 3, time.Second, func() error {
			return store.Ping(ctx)
		}); err != nil {
			zapLogger.Fatal("redis state store unreachable", zap.Error(err))
		}
		return store
	}
	return state.NewFileStore(cfg.State.FilePath, cfg.Sync.Lookback(), log)
}

func buildServer(
	cfg *config.Config,
	orchestrator *syncer.Orchestrator,
	sfClient *servicefusion.Client,
	notifier notify.Notifier,
	log logger.Logger,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]interface{}{
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"status":  "running",
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := orchestrator.Stats(r.Context())
		if err != nil {
			http.Error(w, "failed to read stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	})

	mux.Handle("/metrics", promhttp.Handler())

	webhooks.NewHandler(sfClient, notifier, log).Register(mux)

	return &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// retryWithBackoff retries fn with exponential backoff.
func retryWithBackoff(ctx context.Context, attempts int, initial time.Duration, fn func() error) error {
	var err error
	delay := initial
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
