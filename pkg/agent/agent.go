package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vitalsync/vitalsync/pkg/config"
	"github.com/vitalsync/vitalsync/pkg/drainer"
	"github.com/vitalsync/vitalsync/pkg/events"
	"github.com/vitalsync/vitalsync/pkg/gateway"
	"github.com/vitalsync/vitalsync/pkg/health"
	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
	"github.com/vitalsync/vitalsync/pkg/reconciler"
	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/writer"
)

// Agent wires the sync core together: store, gateway, writer, drainer,
// reconciler, events, and the observability endpoints.
type Agent struct {
	cfg config.Config

	store     storage.Store
	broker    *events.Broker
	gateway   *gateway.Client
	writer    *writer.Writer
	drainer   *drainer.Drainer
	recon     *reconciler.Reconciler
	monitor   *health.Monitor
	collector *metrics.Collector

	httpServer *http.Server
	sub        events.Subscriber
	subDone    chan struct{}
}

// New builds an agent from configuration. source may be nil on hosts
// without a device sensor bridge.
func New(cfg config.Config, source reconciler.DeviceSource) (*Agent, error) {
	store, err := storage.NewStore(storage.Backend(cfg.Storage), cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %v", err)
	}

	broker := events.NewBroker()

	gw, err := gateway.NewClient(gateway.Options{
		BaseURL:    cfg.Remote.BaseURL,
		TokenStore: gateway.NewFileTokenStore(cfg.DataDir),
		UserAgent:  cfg.Remote.UserAgent,
		Timeout:    cfg.Remote.Timeout.Std(),
		SessionSink: func() {
			broker.Publish(&events.Event{
				Type:    events.EventSessionExpired,
				Message: "Session invalid, re-login required",
			})
		},
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create gateway: %v", err)
	}

	checker := health.NewHTTPChecker(strings.TrimRight(cfg.Remote.BaseURL, "/") + cfg.Health.Path)
	monitor := health.NewMonitor(checker, health.Config{
		Interval: cfg.Health.Interval.Std(),
		Timeout:  cfg.Health.Timeout.Std(),
		Retries:  cfg.Health.Retries,
	})

	w := writer.NewWriter(store, broker)

	d := drainer.NewDrainer(store, gw, broker, monitor, drainer.Config{
		Interval:        cfg.Drainer.Interval.Std(),
		BatchSize:       cfg.Drainer.BatchSize,
		MinCallInterval: cfg.Drainer.MinCallInterval.Std(),
		MaxAttempts:     cfg.Drainer.MaxAttempts,
		BackoffBase:     cfg.Drainer.BackoffBase.Std(),
		BackoffCap:      cfg.Drainer.BackoffCap.Std(),
		Lease:           cfg.Drainer.Lease.Std(),
	})

	recon := reconciler.NewReconciler(store, w, source, reconciler.Config{
		TieTolerance: cfg.Reconciler.TieTolerance.Std(),
		Classes:      cfg.MetricClasses(),
	})

	return &Agent{
		cfg:       cfg,
		store:     store,
		broker:    broker,
		gateway:   gw,
		writer:    w,
		drainer:   d,
		recon:     recon,
		monitor:   monitor,
		collector: metrics.NewCollector(store),
		subDone:   make(chan struct{}),
	}, nil
}

// Start brings up the background components and the observability
// endpoints
func (a *Agent) Start() error {
	logger := log.WithComponent("agent")

	a.broker.Start()
	a.monitor.Start()
	a.collector.Start()
	a.drainer.Start()

	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("drainer", true, "")

	// A local save should reach the backend quickly, not wait out the
	// drain interval
	a.sub = a.broker.Subscribe()
	go a.pump()

	if a.cfg.Listen != "" {
		a.httpServer = observabilityServer(a.cfg.Listen)
		go func() {
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Observability server failed")
			}
		}()
	}

	logger.Info().
		Str("data_dir", a.cfg.DataDir).
		Str("remote", a.cfg.Remote.BaseURL).
		Str("listen", a.cfg.Listen).
		Msg("Agent started")
	return nil
}

// Stop shuts the agent down in reverse dependency order
func (a *Agent) Stop() {
	logger := log.WithComponent("agent")

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.httpServer.Shutdown(ctx)
		cancel()
	}

	if a.sub != nil {
		a.broker.Unsubscribe(a.sub)
		<-a.subDone
	}

	a.drainer.Stop()
	a.recon.Wait()
	a.collector.Stop()
	a.monitor.Stop()
	a.broker.Stop()

	if err := a.store.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close store")
	}
	logger.Info().Msg("Agent stopped")
}

// pump kicks the drainer whenever a local mutation lands
func (a *Agent) pump() {
	defer close(a.subDone)
	for event := range a.sub {
		switch event.Type {
		case events.EventEntrySaved, events.EventEntryDeleted:
			a.drainer.Kick()
		}
	}
}

// Writer returns the deduplicating writer
func (a *Agent) Writer() *writer.Writer {
	return a.writer
}

// Reconciler returns the read-time reconciler
func (a *Agent) Reconciler() *reconciler.Reconciler {
	return a.recon
}

// Store returns the record store
func (a *Agent) Store() storage.Store {
	return a.store
}

// Gateway returns the remote API client
func (a *Agent) Gateway() *gateway.Client {
	return a.gateway
}

// Broker returns the event broker
func (a *Agent) Broker() *events.Broker {
	return a.broker
}

// observabilityServer serves Prometheus metrics and health probes
func observabilityServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
