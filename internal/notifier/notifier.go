// Package notifier delivers a chain.Notification to a human. The ntfy.sh
// HTTP push is the production path; LogNotifier is the NTFY_DISABLE=true
// fallback used in development and in tests.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/Ktl-XV/account-monitor/internal/chain"
)

// Notifier delivers one notification at a time; delivery order follows
// the order Evaluate produced them in.
type Notifier interface {
	Notify(ctx context.Context, n chain.Notification) error
}

// NtfyNotifier posts to a ntfy.sh topic (or a self-hosted instance) as an
// HTTP POST with the message as the body and metadata as headers, per
// https://docs.ntfy.sh/publish/.
type NtfyNotifier struct {
	BaseURL string
	Topic   string
	Token   string // optional bearer token for protected topics
	HTTP    *http.Client
}

// NewNtfyNotifier builds a notifier posting to baseURL/topic.
func NewNtfyNotifier(baseURL, topic, token string) *NtfyNotifier {
	return &NtfyNotifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Topic:   topic,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *NtfyNotifier) Notify(ctx context.Context, note chain.Notification) error {
	url := fmt.Sprintf("%s/%s", n.BaseURL, n.Topic)
	body := renderBody(note)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Title", renderTitle(note))
	req.Header.Set("Tags", tagsFor(note.Direction))
	if note.ExplorerLink != "" {
		req.Header.Set("Click", note.ExplorerLink)
	}
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

func renderTitle(n chain.Notification) string {
	return fmt.Sprintf("%s: %s transfer", n.ChainDisplayName, n.Direction)
}

func renderBody(n chain.Notification) string {
	who := n.Counterparty.Hex()
	if n.CounterpartyName != "" {
		who = fmt.Sprintf("%s (%s)", n.CounterpartyName, who)
	}
	switch n.Direction {
	case chain.DirIn:
		return fmt.Sprintf("Received %s %s from %s", n.ValueRender, n.AssetRender, who)
	case chain.DirOut:
		return fmt.Sprintf("Sent %s %s to %s", n.ValueRender, n.AssetRender, who)
	case chain.DirSelf:
		return fmt.Sprintf("Self-transfer of %s %s", n.ValueRender, n.AssetRender)
	default:
		return fmt.Sprintf("Transfer of %s %s involving %s", n.ValueRender, n.AssetRender, who)
	}
}

func tagsFor(d chain.Direction) string {
	switch d {
	case chain.DirIn:
		return "inbox_tray"
	case chain.DirOut:
		return "outbox_tray"
	default:
		return "twisted_rightwards_arrows"
	}
}

// LogNotifier writes notifications to the standard structured logger
// instead of delivering them anywhere, including the same body text the
// ntfy path would post. Selected when NTFY_DISABLE=true.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n chain.Notification) error {
	gethlog.Info("notification",
		"chain", n.ChainDisplayName,
		"direction", n.Direction,
		"tx", n.TxHash,
		"counterparty", n.Counterparty,
		"value", n.ValueRender,
		"asset", n.AssetRender,
		"body", renderBody(n),
	)
	return nil
}
