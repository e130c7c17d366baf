// Command account-monitor watches a shared set of EVM addresses across
// several chains and pushes a notification whenever one of them appears
// on either side of a transfer, without ever revealing the watched set to
// the RPC providers it polls.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
	"github.com/Ktl-XV/account-monitor/internal/bootstrap"
	"github.com/Ktl-XV/account-monitor/internal/config"
	"github.com/Ktl-XV/account-monitor/internal/notifier"
	"github.com/Ktl-XV/account-monitor/internal/pipeline"
	"github.com/Ktl-XV/account-monitor/internal/rpcclient"
	"github.com/Ktl-XV/account-monitor/internal/supervisor"
	"github.com/Ktl-XV/account-monitor/internal/tokencatalogue"
)

func main() {
	gethlog.SetDefault(gethlog.NewLogger(gethlog.NewTerminalHandler(os.Stderr, true)))

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		// Config errors are fatal startup errors (spec.md §7): the process
		// never comes up in a half-configured state.
		log.Fatalf("account-monitor: %v", err)
	}

	registry := accountregistry.New()

	if cfg.StaticAccountsPath != "" {
		n, err := bootstrap.LoadFile(cfg.StaticAccountsPath, registry)
		if err != nil {
			log.Fatalf("account-monitor: loading static accounts: %v", err)
		}
		gethlog.Info("loaded static accounts", "count", n, "path", cfg.StaticAccountsPath)
	}

	catalogue := tokencatalogue.Empty()
	if path := os.Getenv("TOKEN_CATALOGUE_PATH"); path != "" {
		cat, err := tokencatalogue.Open(path)
		if err != nil {
			log.Fatalf("account-monitor: opening token catalogue: %v", err)
		}
		catalogue = cat
		gethlog.Info("loaded token catalogue", "entries", catalogue.Len(), "path", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HasDebugBlock {
		runDebugBlock(ctx, cfg, registry, catalogue)
		return
	}

	sup := supervisor.New(cfg, registry, catalogue)
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("account-monitor: supervisor: %v", err)
	}
	gethlog.Info("account-monitor: shut down")
}

// runDebugBlock implements the DEBUG_BLOCK single-block extraction path
// of spec.md §4.4/§9: only the first configured chain is probed, the
// block is extracted once, and the process exits.
func runDebugBlock(ctx context.Context, cfg *config.Config, registry *accountregistry.Registry, catalogue *tokencatalogue.Catalogue) {
	if len(cfg.Chains) == 0 {
		log.Fatalf("account-monitor: DEBUG_BLOCK set but no chains configured")
	}
	chainCfg := cfg.Chains[0]

	client, err := rpcclient.Dial(ctx, chainCfg.Key, chainCfg.RPCURL)
	if err != nil {
		log.Fatalf("account-monitor: dialing %s for debug block: %v", chainCfg.Key, err)
	}
	defer client.Close()

	notif := debugNotifier(cfg)
	p := pipeline.New(chainCfg, client, registry, catalogue, notif, noopMetrics{})

	gethlog.Info("account-monitor: running single debug extraction", "chain", chainCfg.Key, "block", cfg.DebugBlock)
	if err := p.RunDebugBlock(ctx, uint64(cfg.DebugBlock)); err != nil {
		log.Fatalf("account-monitor: debug block extraction failed: %v", err)
	}
	gethlog.Info("account-monitor: debug extraction complete")
}

// debugNotifier mirrors supervisor.New's NTFY_DISABLE decision for the
// one-shot DEBUG_BLOCK path.
func debugNotifier(cfg *config.Config) notifier.Notifier {
	if cfg.NtfyDisable {
		return notifier.LogNotifier{}
	}
	return notifier.NewNtfyNotifier(cfg.NtfyURL, cfg.NtfyTopic, cfg.NtfyToken)
}

// noopMetrics discards pipeline metrics during a DEBUG_BLOCK run; there is
// no long-lived process for a Prometheus scraper to observe.
type noopMetrics struct{}

func (noopMetrics) IncBlocksProcessed(string, uint64) {}
func (noopMetrics) IncRPCRequests(string, string)     {}
func (noopMetrics) IncRPCErrors(string)               {}
func (noopMetrics) IncNotificationsSent(string)       {}
