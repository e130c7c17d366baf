// Package pipeline runs the block cursor / pacing loop of spec.md §4.4
// for one chain: poll head, extract a range, match, notify, advance.
package pipeline

import (
	"context"
	"time"

	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
	"github.com/Ktl-XV/account-monitor/internal/chain"
	"github.com/Ktl-XV/account-monitor/internal/cursor"
	"github.com/Ktl-XV/account-monitor/internal/extractor"
	"github.com/Ktl-XV/account-monitor/internal/match"
	"github.com/Ktl-XV/account-monitor/internal/notifier"
	"github.com/Ktl-XV/account-monitor/internal/retry"
	"github.com/Ktl-XV/account-monitor/internal/rpcclient"
	"github.com/Ktl-XV/account-monitor/internal/tokencatalogue"
)

// Metrics is the subset of telemetry.Metrics a pipeline reports into; a
// narrow interface keeps this package independent of the telemetry
// package's Prometheus types.
type Metrics interface {
	IncBlocksProcessed(chainKey string, n uint64)
	IncRPCRequests(chainKey, method string)
	IncRPCErrors(chainKey string)
	IncNotificationsSent(chainKey string)
}

// Pipeline runs one chain's extract -> match -> notify loop.
type Pipeline struct {
	cfg       chain.Config
	client    *rpcclient.Client
	extractor extractor.Extractor
	registry  *accountregistry.Registry
	catalogue *tokencatalogue.Catalogue
	notifier  notifier.Notifier
	metrics   Metrics
	cursor    *cursor.Cursor
}

// New builds a pipeline for one chain. The extractor is built internally
// from cfg.Mode so callers never juggle the tagged variant themselves.
func New(cfg chain.Config, client *rpcclient.Client, reg *accountregistry.Registry, catalogue *tokencatalogue.Catalogue, notif notifier.Notifier, metrics Metrics) *Pipeline {
	client.SetMetrics(metrics)
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		extractor: extractor.New(cfg.Mode, cfg.Key, client),
		registry:  reg,
		catalogue: catalogue,
		notifier:  notif,
		metrics:   metrics,
		cursor:    cursor.New(),
	}
}

// Run executes spec.md §4.4 forever, or until ctx is cancelled. A failed
// range retries from step 1 with backoff rather than crashing the
// pipeline; the supervisor only needs to restart Run if it returns, which
// it does solely on ctx cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	backoff := retry.New()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head, err := p.client.BlockNumber(ctx)
		if err != nil {
			p.metrics.IncRPCErrors(p.cfg.Key)
			gethlog.Warn("pipeline: blockNumber failed", "chain", p.cfg.Key, "err", err)
			if !p.cursor.Seeded() {
				p.sleepOrDone(ctx, backoff.Next())
				continue
			}
			p.sleepOrDone(ctx, backoff.Next())
			continue
		}
		backoff.Reset()

		if !p.cursor.Seeded() {
			p.cursor.Seed(head)
			gethlog.Info("pipeline: cold start", "chain", p.cfg.Key, "head", head)
			p.sleepOrDone(ctx, p.blockTime())
			continue
		}

		from, to, ok := p.cursor.NextRange(head)
		if !ok {
			p.sleepOrDone(ctx, p.blockTime())
			continue
		}

		if err := p.processRange(ctx, from, to); err != nil {
			p.metrics.IncRPCErrors(p.cfg.Key)
			gethlog.Warn("pipeline: range extraction failed, cursor unchanged", "chain", p.cfg.Key, "from", from, "to", to, "err", err)
			p.sleepOrDone(ctx, backoff.Next())
			continue
		}

		p.cursor.Advance(to)
		p.metrics.IncBlocksProcessed(p.cfg.Key, to-from+1)
		p.sleepOrDone(ctx, p.blockTime())
	}
}

// RunDebugBlock implements the DEBUG_BLOCK cold-start path of spec.md §9:
// pin the cursor to a single block, extract once, notify any matches, and
// return. The ambiguous no-match case logs and returns nil (exit 0) per
// the documented decision in DESIGN.md.
func (p *Pipeline) RunDebugBlock(ctx context.Context, block uint64) error {
	p.cursor.Seed(block - 1)
	if err := p.processRange(ctx, block, block); err != nil {
		return err
	}
	p.cursor.Advance(block)
	return nil
}

func (p *Pipeline) processRange(ctx context.Context, from, to uint64) error {
	result, err := p.extractor.Extract(ctx, from, to)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		gethlog.Debug("pipeline: decode warning", "chain", p.cfg.Key, "block", w.BlockNumber, "tx", w.TxHash, "reason", w.Reason)
	}

	notifications := match.Evaluate(result.Events, p.registry, p.catalogue, p.cfg.SpamFilter, p.cfg.DisplayName, p.cfg.ExplorerURL, p.cfg.ChainID)
	for _, n := range notifications {
		if err := p.notifier.Notify(ctx, n); err != nil {
			gethlog.Warn("pipeline: notify failed, not retried", "chain", p.cfg.Key, "tx", n.TxHash, "err", err)
			continue
		}
		p.metrics.IncNotificationsSent(p.cfg.Key)
	}
	return nil
}

func (p *Pipeline) blockTime() time.Duration {
	return time.Duration(p.cfg.BlockTimeMS) * time.Millisecond
}

func (p *Pipeline) sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
