package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datainsight/internal/analysis"
	"datainsight/internal/api"
	"datainsight/internal/config"
	"datainsight/internal/llm"
	"datainsight/internal/service"
	"datainsight/internal/state"
	"datainsight/internal/storage"

	log "github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file (yaml, json, toml, .env)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	config.SetupLogging(cfg)

	if cfg.Gemini.APIKey == "" || cfg.DeepSeek.APIKey == "" {
		log.WithFields(log.Fields{"event": "missing_api_key"}).Warn("One or more LLM API keys are not set")
	}

	// Stores
	datasets := state.NewDatasetStore()
	history := state.NewHistoryStore(cfg.HistoryLimit)
	recorder := service.NewHistoryRecorder(history, 256)
	defer recorder.Close()

	files, err := storage.NewFileStore(cfg.UploadDir, cfg.FileRetention())
	if err != nil {
		log.WithError(err).Fatal("Failed to prepare upload directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Datasets are destroyed when their backing file disappears
	watcher, err := storage.NewWatcher(func(path string) {
		if d, ok := datasets.DeleteByPath(path); ok {
			log.WithFields(log.Fields{
				"dataset_id": d.ID,
				"path":       path,
				"event":      "dataset_evicted",
			}).Info("Dataset file removed, dataset destroyed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create file watcher")
	}
	if err := watcher.Watch(ctx, files.Dir()); err != nil {
		log.WithError(err).Fatal("Failed to watch upload directory")
	}
	defer watcher.Stop()

	// Services
	registry := llm.NewRegistry(
		llm.NewGeminiService(cfg.Gemini),
		llm.NewDeepSeekService(cfg.DeepSeek),
	)
	dispatcher := service.NewDispatcher(registry, service.NewContextService(datasets))
	processor := analysis.NewProcessor(analysis.NewPool(cfg.ProfilingWorkers))
	db := service.NewPostgresDataSource()
	defer db.Close()

	handler := api.NewHandler(processor, datasets, history, recorder, dispatcher, registry, files, db, api.Options{
		MaxUploadSizeMB:      cfg.MaxUploadSizeMB,
		SampleThresholdBytes: cfg.SampleThresholdBytes(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(handler, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithFields(log.Fields{
		"addr":       cfg.Addr(),
		"upload_dir": files.Dir(),
		"origins":    cfg.AllowedOrigins,
		"providers":  registry.Names(),
		"event":      "startup",
	}).Info("Starting Data Insight backend")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed to start")
	}
}
