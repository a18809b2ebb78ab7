package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"searchscaler/cmd/app"
	"searchscaler/internal/api/v1/handler"
	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
	"searchscaler/internal/features/autoscaling/service"
	"searchscaler/internal/features/autoscaling/store"
	"searchscaler/internal/features/autoscaling/trigger"
	clusterservice "searchscaler/internal/features/cluster/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run starts the application
func Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Load configuration
	cfg, err := app.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Set up logging
	logger := common.NewLogger(common.LoggerConfig{
		Level:  common.LogLevel(cfg.App.LogLevel),
		Output: os.Stdout,
	})
	slog.SetDefault(logger)

	// Watch for shutdown signals in the background
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// 3. Create Kubernetes clients
	kcfg, err := app.NewKubeClients(&cfg.Kubernetes)
	if err != nil {
		logger.Error("failed to create kubernetes clients", "error", err)
		os.Exit(1)
	}

	// 4. Initialize the autoscaling service
	scalingService, err := initializeScalingService(ctx, cfg, kcfg, logger)
	if err != nil {
		logger.Error("failed to initialize autoscaling service", "error", err)
		os.Exit(1)
	}
	defer scalingService.Close()
	logger.Info("autoscaling service started",
		"triggers", len(scalingService.TriggerStatuses()))

	// 5. Register metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := scalingService.Metrics().Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// 6. Run the HTTP server until the context is canceled
	if err := runHTTPServer(ctx, cfg, scalingService, registry, logger); err != nil {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped")
}

// initializeScalingService wires the store, cluster provider and trigger
// engine together and applies the configured trigger set.
func initializeScalingService(ctx context.Context, cfg *app.Config, kcfg *app.KubeClients, logger *slog.Logger) (*service.Service, error) {
	var stateStore domain.StateStore
	switch cfg.Autoscaling.StateStore.Kind {
	case "configmap":
		stateStore = store.NewConfigMapStore(
			kcfg.ClientSet,
			cfg.Kubernetes.Namespace,
			cfg.Autoscaling.StateStore.ConfigMapName,
			cfg.Autoscaling.StateStore.Timeout,
			logger,
		)
	case "memory":
		stateStore = store.NewMemoryStore()
	}

	cluster := clusterservice.NewNodeDiscovery(
		kcfg.ClientSet,
		cfg.Kubernetes.NodeLabelSelector,
		logger,
	)

	deps := trigger.Deps{
		Cluster:      cluster,
		Store:        stateStore,
		StoreTimeout: cfg.Autoscaling.StateStore.Timeout,
		Logger:       logger,
	}

	scalingService := service.NewService(ctx, cfg.Autoscaling.ScheduleInterval, deps, nil, logger)

	if err := scalingService.ApplyConfig(ctx, buildServiceConfig(cfg)); err != nil {
		// Keep running with the valid subset; bad entries are reported here
		logger.Warn("some trigger configuration entries were rejected", "error", err)
	}

	return scalingService, nil
}

// runHTTPServer serves the API and metrics endpoints until ctx is canceled
func runHTTPServer(ctx context.Context, cfg *app.Config, scalingService *service.Service, registry *prometheus.Registry, logger *slog.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handler.NewHealthHandler(scalingService).SetupRoutes(router)
	handler.NewTriggerHandler(scalingService).SetupRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildServiceConfig converts application configuration into the domain
// configuration applied to the service.
func buildServiceConfig(cfg *app.Config) service.Config {
	return service.Config{
		ScheduleInterval: cfg.Autoscaling.ScheduleInterval,
		Triggers:         convertTriggerConfigs(cfg.Autoscaling.Triggers),
		Listeners:        convertListenerConfigs(cfg.Autoscaling.Listeners),
	}
}

func convertTriggerConfigs(defs []app.TriggerConfig) []domain.TriggerConfig {
	out := make([]domain.TriggerConfig, 0, len(defs))
	for _, def := range defs {
		actions := make([]domain.ActionConfig, 0, len(def.Actions))
		for _, a := range def.Actions {
			actions = append(actions, domain.ActionConfig{Name: a.Name, Class: a.Class})
		}
		out = append(out, domain.TriggerConfig{
			Name:       def.Name,
			Event:      def.Event,
			WaitFor:    def.WaitFor,
			Enabled:    def.Enabled,
			Schedule:   def.Schedule,
			Actions:    actions,
			Properties: def.Properties,
		})
	}
	return out
}

func convertListenerConfigs(defs []app.ListenerConfig) []domain.ListenerConfig {
	out := make([]domain.ListenerConfig, 0, len(defs))
	for _, def := range defs {
		stages := make([]domain.EventProcessorStage, 0, len(def.Stages))
		for _, s := range def.Stages {
			stages = append(stages, domain.EventProcessorStage(s))
		}
		out = append(out, domain.ListenerConfig{
			Name:       def.Name,
			Class:      def.Class,
			Trigger:    def.Trigger,
			Stages:     stages,
			Actions:    def.Actions,
			Properties: def.Properties,
		})
	}
	return out
}
