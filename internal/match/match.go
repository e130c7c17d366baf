// Package match implements the account-membership + spam-filter decision
// of spec.md §4.7: which decoded transfer events become notifications.
package match

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
	"github.com/Ktl-XV/account-monitor/internal/chain"
	"github.com/Ktl-XV/account-monitor/internal/tokencatalogue"
)

// keptEvent is a TransferEvent that survived membership + spam filtering,
// tagged with the perspective (direction, counterparty) it survived under.
type keptEvent struct {
	event             chain.TransferEvent
	direction         chain.Direction
	counterparty      common.Address
	counterpartyLabel string
}

// Evaluate runs every decoded event through spec.md §4.7 steps 1-5 and
// returns one Notification per (chain, tx_hash, matched_account),
// coalescing multiple kept events for the same tuple. Events are assumed
// to already be in ascending block-number / emission order; that order is
// preserved in the output.
func Evaluate(events []chain.TransferEvent, reg *accountregistry.Registry, catalogue *tokencatalogue.Catalogue, filter chain.SpamFilter, chainDisplayName, explorerURL string, chainID uint64) []chain.Notification {
	type groupKey struct {
		txHash  string
		matched string
	}

	var order []groupKey
	groups := make(map[groupKey][]keptEvent)

	for _, ev := range events {
		isFrom := reg.Contains(ev.From)
		isTo := reg.Contains(ev.To)
		if !isFrom && !isTo {
			continue // step 2: neither side watched
		}

		known := enrichAsset(&ev, catalogue, chainID)

		if !passesSpamFilter(filter, ev, isFrom, known) {
			continue
		}

		direction, matchedAddr := classifyDirection(isFrom, isTo, ev)

		counterparty := ev.To
		if direction == chain.DirIn {
			counterparty = ev.From
		}
		counterpartyLabel, _ := reg.Get(counterparty)

		key := groupKey{txHash: ev.TxHash.Hex(), matched: matchedAddr.Hex()}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], keptEvent{
			event:             ev,
			direction:         direction,
			counterparty:      counterparty,
			counterpartyLabel: counterpartyLabel,
		})
	}

	notifications := make([]chain.Notification, 0, len(order))
	for _, key := range order {
		notifications = append(notifications, coalesce(groups[key], chainDisplayName, explorerURL))
	}
	return notifications
}

// enrichAsset copies the catalogue's Symbol/Decimals onto ev.Asset when the
// contract is known, regardless of spam-filter mode, so every rendering
// path (not just FilterKnownAssets) sees human-readable symbols and
// decimal-scaled values. Reports whether the contract was found.
func enrichAsset(ev *chain.TransferEvent, catalogue *tokencatalogue.Catalogue, chainID uint64) bool {
	if ev.Asset.Native {
		return false
	}
	meta, known := catalogue.Lookup(chainID, ev.Asset.Contract)
	if !known {
		return false
	}
	ev.Asset.Symbol = meta.Symbol
	ev.Asset.Decimals = meta.Decimals
	ev.Asset.HasMeta = true
	return true
}

// passesSpamFilter implements spec.md §4.7 step 3.
func passesSpamFilter(filter chain.SpamFilter, ev chain.TransferEvent, isFrom, known bool) bool {
	switch filter {
	case chain.FilterSelfSubmittedTxs:
		return isFrom
	case chain.FilterKnownAssets:
		return isFrom || ev.Asset.Native || known
	case chain.FilterNone:
		return true
	default:
		return true
	}
}

// classifyDirection implements spec.md §4.7 step 4. The matched account is
// the From address for Out/Self, else the To address.
func classifyDirection(isFrom, isTo bool, ev chain.TransferEvent) (chain.Direction, common.Address) {
	switch {
	case isFrom && isTo:
		return chain.DirSelf, ev.From
	case isFrom:
		return chain.DirOut, ev.From
	case isTo:
		return chain.DirIn, ev.To
	default:
		return chain.DirUnknown, ev.To
	}
}

// coalesce implements spec.md §4.7 step 5: exactly one notification per
// (chain, tx_hash, matched_account), rendering multiple kept events as
// the primary asset plus a "+N more" tail.
func coalesce(kept []keptEvent, chainDisplayName, explorerURL string) chain.Notification {
	first := kept[0]

	assetRender := renderAsset(first.event.Asset)
	valueRender := renderValue(first.event)
	if len(kept) > 1 {
		assetRender = fmt.Sprintf("%s (+%d more)", assetRender, len(kept)-1)
	}

	var explorerLink string
	if explorerURL != "" {
		explorerLink = fmt.Sprintf("%s/tx/%s", explorerURL, first.event.TxHash.Hex())
	}

	return chain.Notification{
		ChainDisplayName: chainDisplayName,
		TxHash:           first.event.TxHash,
		Direction:        first.direction,
		Counterparty:     first.counterparty,
		CounterpartyName: first.counterpartyLabel,
		ValueRender:      valueRender,
		AssetRender:      assetRender,
		ExplorerLink:     explorerLink,
	}
}

func renderAsset(a chain.Asset) string {
	if a.Native {
		return "native"
	}
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Contract.Hex()
}

func renderValue(ev chain.TransferEvent) string {
	if ev.Value == nil {
		return "0"
	}
	if ev.Asset.Standard == chain.StandardERC721 {
		return fmt.Sprintf("#%s", ev.Value.String())
	}
	if ev.Asset.HasMeta && ev.Asset.Decimals > 0 {
		return formatScaled(ev.Value, ev.Asset.Decimals)
	}
	return ev.Value.String()
}

// formatScaled renders v as a fixed-point decimal string scaled down by
// 10^decimals, e.g. raw=100000000, decimals=6 -> "100".
func formatScaled(v *big.Int, decimals uint8) string {
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	intPart, frac := new(big.Int), new(big.Int)
	intPart.DivMod(abs, divisor, frac)

	fracStr := frac.String()
	for len(fracStr) < int(decimals) {
		fracStr = "0" + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")

	out := intPart.String()
	if fracStr != "" {
		out = out + "." + fracStr
	}
	if neg {
		out = "-" + out
	}
	return out
}
