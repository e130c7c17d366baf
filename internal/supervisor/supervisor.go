// Package supervisor wires the whole process together per spec.md §4.9:
// one pipeline per configured chain, a shared registry and catalogue, and
// the admin + metrics HTTP server on port 3030.
package supervisor

import (
	"context"
	"net/http"
	"time"

	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
	"github.com/Ktl-XV/account-monitor/internal/adminapi"
	"github.com/Ktl-XV/account-monitor/internal/chain"
	"github.com/Ktl-XV/account-monitor/internal/config"
	"github.com/Ktl-XV/account-monitor/internal/notifier"
	"github.com/Ktl-XV/account-monitor/internal/pipeline"
	"github.com/Ktl-XV/account-monitor/internal/rpcclient"
	"github.com/Ktl-XV/account-monitor/internal/telemetry"
	"github.com/Ktl-XV/account-monitor/internal/tokencatalogue"
)

const adminAddr = ":3030"

// registrySizePollInterval governs how often the registry_size gauge is
// refreshed. The registry is mutated by both the admin API and the
// startup bootstrap loader; polling Len() here is simpler than threading
// a metrics setter through both call sites.
const registrySizePollInterval = 15 * time.Second

// pipelineMetrics adapts telemetry.Metrics to the narrow interface
// pipeline.Pipeline depends on.
type pipelineMetrics struct{ m *telemetry.Metrics }

func (p pipelineMetrics) IncBlocksProcessed(chainKey string, n uint64) {
	p.m.BlocksProcessed.WithLabelValues(chainKey).Add(float64(n))
}
func (p pipelineMetrics) IncRPCRequests(chainKey, method string) {
	p.m.RPCRequests.WithLabelValues(chainKey, method).Inc()
}
func (p pipelineMetrics) IncRPCErrors(chainKey string) {
	p.m.RPCErrors.WithLabelValues(chainKey).Inc()
}
func (p pipelineMetrics) IncNotificationsSent(chainKey string) {
	p.m.NotificationsSent.WithLabelValues(chainKey).Inc()
}

// Supervisor owns every chain pipeline and the shared admin HTTP server.
type Supervisor struct {
	cfg       *config.Config
	registry  *accountregistry.Registry
	catalogue *tokencatalogue.Catalogue
	metrics   *telemetry.Metrics
	notif     notifier.Notifier
}

// New builds a supervisor ready to Run. catalogue may be tokencatalogue.Empty()
// if no packaged database is configured.
func New(cfg *config.Config, registry *accountregistry.Registry, catalogue *tokencatalogue.Catalogue) *Supervisor {
	var notif notifier.Notifier
	if cfg.NtfyDisable {
		notif = notifier.LogNotifier{}
	} else {
		notif = notifier.NewNtfyNotifier(cfg.NtfyURL, cfg.NtfyTopic, cfg.NtfyToken)
	}

	return &Supervisor{
		cfg:       cfg,
		registry:  registry,
		catalogue: catalogue,
		metrics:   telemetry.New(),
		notif:     notif,
	}
}

// Run starts the admin+metrics HTTP server and one goroutine per chain,
// restarting any pipeline whose Run returns for a reason other than ctx
// cancellation. It blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	adminHandler := adminapi.Handler(s.registry)
	mux.Handle("/accounts", adminHandler)
	mux.Handle("/metrics", s.metrics.Handler())

	srv := &http.Server{Addr: adminAddr, Handler: mux}
	go func() {
		gethlog.Info("supervisor: admin/metrics server listening", "addr", adminAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			gethlog.Error("supervisor: admin server stopped unexpectedly", "err", err)
		}
	}()

	for _, chainCfg := range s.cfg.Chains {
		go s.runChainWithRestarts(ctx, chainCfg)
	}

	go s.pollRegistrySize(ctx)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return ctx.Err()
}

// runChainWithRestarts dials the chain once and then keeps its pipeline
// running, restarting the loop (not the dial) if Run returns for any
// reason other than ctx cancellation; a failure in one chain must never
// affect the others (spec.md §4.9).
func (s *Supervisor) runChainWithRestarts(ctx context.Context, chainCfg chain.Config) {
	client, err := s.dialWithRetry(ctx, chainCfg)
	if err != nil {
		gethlog.Error("supervisor: giving up dialing chain", "chain", chainCfg.Key, "err", err)
		return
	}
	defer client.Close()

	p := pipeline.New(chainCfg, client, s.registry, s.catalogue, s.notif, pipelineMetrics{s.metrics})

	for {
		if ctx.Err() != nil {
			return
		}
		err := p.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		gethlog.Error("supervisor: pipeline exited, restarting", "chain", chainCfg.Key, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// pollRegistrySize keeps the registry_size gauge current as accounts are
// added by the admin API or the static YAML bootstrap loader.
func (s *Supervisor) pollRegistrySize(ctx context.Context) {
	s.metrics.RegistrySize.Set(float64(s.registry.Len()))

	ticker := time.NewTicker(registrySizePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.RegistrySize.Set(float64(s.registry.Len()))
		}
	}
}

func (s *Supervisor) dialWithRetry(ctx context.Context, chainCfg chain.Config) (*rpcclient.Client, error) {
	for {
		client, err := rpcclient.Dial(ctx, chainCfg.Key, chainCfg.RPCURL)
		if err == nil {
			return client, nil
		}
		gethlog.Error("supervisor: dial failed, retrying", "chain", chainCfg.Key, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
