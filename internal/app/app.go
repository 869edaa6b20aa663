package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/opsremedy/remedy-controller/internal/adapters/outbound/k8s"
	"github.com/opsremedy/remedy-controller/internal/adapters/outbound/oracle"
	"github.com/opsremedy/remedy-controller/internal/config"
	"github.com/opsremedy/remedy-controller/internal/httpserver"
	"github.com/opsremedy/remedy-controller/internal/infra/appstate"
	"github.com/opsremedy/remedy-controller/internal/infra/cronwindow"
	"github.com/opsremedy/remedy-controller/internal/infra/shutdown"
	"github.com/opsremedy/remedy-controller/internal/logic/controller"
	"github.com/opsremedy/remedy-controller/internal/storage"
)

type App struct {
	controller    *controller.Service
	httpServer    *httpserver.Server
	metricsServer *httpserver.MetricsServer
	trail         *storage.Trail
	appState      *appstate.AppState
	shutdowner    *shutdown.Handler
	logger        *slog.Logger
}

// New creates a new application instance with all dependencies wired.
func New(
	logger *slog.Logger,
	cfg *config.Config,
	appState *appstate.AppState,
	signals <-chan os.Signal,
) (*App, error) {
	// Create K8s config
	kubeConfig, err := clientcmd.BuildConfigFromFlags(
		cfg.KubeMaster,
		cfg.KubeConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	// Create K8s clientset
	clientset, err := kubernetes.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}

	// Create metrics clientset
	metricsClientset, err := metricsv.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create metrics clientset: %w", err)
	}

	// Create secondary adapter (K8s adapter)
	k8sRepo := k8s.New(logger, clientset, metricsClientset)

	// The oracle is optional: without an API key the diagnoser runs
	// fallback-only.
	var oracleClient controller.Oracle
	if cfg.OracleAPIKey != "" {
		oracleClient = oracle.New(logger, cfg.OracleAPIKey, cfg.OracleModel)
	} else {
		logger.Info("oracle disabled, diagnosis is rule-based only")
	}

	trail, err := buildTrail(cfg)
	if err != nil {
		return nil, fmt.Errorf("build audit trail: %w", err)
	}

	var window controller.WindowChecker

	if cfg.MaintenanceSchedule != "" {
		cronWindow, err := cronwindow.New(cfg.MaintenanceSchedule, cfg.MaintenanceTZ, cfg.MaintenanceDuration)
		if err != nil {
			return nil, fmt.Errorf("parse maintenance window: %w", err)
		}

		window = cronWindow
	}

	ledger := controller.NewLedger(cfg.Cooldown, cfg.MaxActionsPerHour)

	collector := controller.NewCollector(
		logger,
		k8sRepo,
		cfg.RestartThreshold,
		cfg.PendingGrace,
		cfg.LogTailLines,
	)

	diagnoser := controller.NewDiagnoser(
		logger,
		oracleClient,
		cfg.OracleTimeout,
		cfg.OracleMaxEvidenceBytes,
	)

	governor := controller.NewGovernor(
		controller.SafetyPolicy{
			DryRun:             cfg.DryRun,
			ExcludedNamespaces: cfg.ExcludedNamespaces,
		},
		ledger,
		window,
	)

	remediator := controller.NewRemediator(logger, k8sRepo, ledger, controller.RemediationConfig{
		LimitFactor:   cfg.LimitIncreaseFactor,
		MemoryCeiling: cfg.MemoryLimitCeiling,
		CPUCeiling:    cfg.CPULimitCeiling,
		ScaleStep:     cfg.ScaleStep,
		MinReplicas:   cfg.MinReplicas,
		MaxReplicas:   cfg.MaxReplicas,
	})

	controllerService := controller.New(
		logger,
		collector,
		diagnoser,
		governor,
		remediator,
		ledger,
		trail,
		appState,
		cfg.Namespaces,
		cfg.Interval,
	)

	return &App{
		controller:    controllerService,
		httpServer:    httpserver.New(logger, appState, trail, cfg.HTTPPort),
		metricsServer: httpserver.NewMetricsServer(logger, cfg.MetricsPort),
		trail:         trail,
		appState:      appState,
		shutdowner:    shutdown.New(logger, signals),
		logger:        logger,
	}, nil
}

func buildTrail(cfg *config.Config) (*storage.Trail, error) {
	jsonlSink, err := storage.NewJSONLSink(cfg.IncidentLogPath)
	if err != nil {
		return nil, fmt.Errorf("open incident log: %w", err)
	}

	sinks := []storage.Sink{jsonlSink}

	if cfg.DatabaseURL != "" {
		pgSink, err := storage.NewPostgresSink(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		sinks = append(sinks, pgSink)
	}

	return storage.NewTrail(sinks...), nil
}

// Run starts the application and blocks until the context is cancelled or the
// remediation loop hits a fatal platform error.
func (a *App) Run(originCtx context.Context) error {
	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	go a.shutdowner.HandleSignals(ctx, cancel)

	if err := a.appState.SetStarting(ctx); err != nil {
		return fmt.Errorf("set starting: %w", err)
	}

	if err := a.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	if err := a.metricsServer.Start(ctx); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	if err := a.controller.Start(ctx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}

	select {
	case <-a.httpServer.Ready():
	case <-ctx.Done():
		return a.teardown(originCtx)
	}

	if err := a.appState.SetRunning(ctx); err != nil {
		return fmt.Errorf("set running: %w", err)
	}

	a.logger.InfoContext(ctx, "controller running")

	// Block until a signal cancels the context or the remediation loop exits
	// on its own after a fatal error.
	select {
	case <-ctx.Done():
	case <-a.controller.Done():
	}

	return a.teardown(originCtx)
}

func (a *App) teardown(originCtx context.Context) error {
	if err := a.appState.SetTerminating(originCtx); err != nil {
		a.logger.ErrorContext(originCtx, "set terminating failed", "reason", err)
	}

	shutdownErr := shutdown.GracefulShutdown(originCtx, a.logger, []shutdown.Shutdowner{
		a.metricsServer,
		a.httpServer,
		a.controller,
	})

	closeErr := a.trail.Close()

	if err := a.appState.SetTerminated(originCtx); err != nil {
		a.logger.ErrorContext(originCtx, "set terminated failed", "reason", err)
	}

	return errors.Join(a.controller.Err(), shutdownErr, closeErr)
}
