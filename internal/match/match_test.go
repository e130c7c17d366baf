package match

import (
	"database/sql"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
	"github.com/Ktl-XV/account-monitor/internal/chain"
	"github.com/Ktl-XV/account-monitor/internal/tokencatalogue"
)

// seedCatalogue builds a one-entry token catalogue backed by a temp
// sqlite file, mirroring the schema tokencatalogue.Open expects.
func seedCatalogue(t *testing.T, chainID uint64, contract common.Address, symbol string, decimals uint8) (*tokencatalogue.Catalogue, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open for seed: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE tokens(
		chain_id INTEGER NOT NULL,
		contract TEXT NOT NULL,
		symbol TEXT NOT NULL,
		decimals INTEGER NOT NULL,
		standard TEXT NOT NULL,
		PRIMARY KEY(chain_id, contract)
	)`); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO tokens(chain_id, contract, symbol, decimals, standard) VALUES (?, ?, ?, ?, ?)`,
		chainID, contract.Hex(), symbol, decimals, "ERC20"); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	db.Close()

	cat, err := tokencatalogue.Open(path)
	if err != nil {
		t.Fatalf("open catalogue: %v", err)
	}
	return cat, func() {}
}

func watched(addrs ...common.Address) *accountregistry.Registry {
	reg := accountregistry.New()
	for _, a := range addrs {
		reg.Insert(a, "")
	}
	return reg
}

func labeled(pairs map[common.Address]string) *accountregistry.Registry {
	reg := accountregistry.New()
	for addr, label := range pairs {
		reg.Insert(addr, label)
	}
	return reg
}

func TestEvaluateDropsEventsTouchingNoWatchedAccount(t *testing.T) {
	unrelated := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")
	reg := watched(common.HexToAddress("0x3333333333333333333333333333333333333333"))

	events := []chain.TransferEvent{{
		ChainKey: "ethereum", From: unrelated, To: other,
		TxHash: common.HexToHash("0xaa"), Value: big.NewInt(1), Asset: chain.Asset{Native: true},
	}}

	got := Evaluate(events, reg, tokencatalogue.Empty(), chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 0 {
		t.Fatalf("got %d notifications, want 0", len(got))
	}
}

func TestEvaluateClassifiesDirection(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	reg := watched(me)

	in := chain.TransferEvent{ChainKey: "ethereum", From: other, To: me, TxHash: common.HexToHash("0x01"), Value: big.NewInt(5), Asset: chain.Asset{Native: true}}
	out := chain.TransferEvent{ChainKey: "ethereum", From: me, To: other, TxHash: common.HexToHash("0x02"), Value: big.NewInt(5), Asset: chain.Asset{Native: true}}

	got := Evaluate([]chain.TransferEvent{in, out}, reg, tokencatalogue.Empty(), chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	if got[0].Direction != chain.DirIn {
		t.Fatalf("first notification direction = %s, want In", got[0].Direction)
	}
	if got[1].Direction != chain.DirOut {
		t.Fatalf("second notification direction = %s, want Out", got[1].Direction)
	}
}

func TestEvaluateSelfTransferIsSelf(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	reg := watched(me)

	ev := chain.TransferEvent{ChainKey: "ethereum", From: me, To: me, TxHash: common.HexToHash("0x01"), Value: big.NewInt(5), Asset: chain.Asset{Native: true}}

	got := Evaluate([]chain.TransferEvent{ev}, reg, tokencatalogue.Empty(), chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 1 || got[0].Direction != chain.DirSelf {
		t.Fatalf("got = %+v, want one Self notification", got)
	}
}

func TestEvaluateSelfSubmittedTxsFilterDropsIncomingOnlyTransfers(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	reg := watched(me)

	incoming := chain.TransferEvent{ChainKey: "ethereum", From: other, To: me, TxHash: common.HexToHash("0x01"), Value: big.NewInt(5), Asset: chain.Asset{Contract: other, Standard: chain.StandardERC20}}
	outgoing := chain.TransferEvent{ChainKey: "ethereum", From: me, To: other, TxHash: common.HexToHash("0x02"), Value: big.NewInt(5), Asset: chain.Asset{Contract: other, Standard: chain.StandardERC20}}

	got := Evaluate([]chain.TransferEvent{incoming, outgoing}, reg, tokencatalogue.Empty(), chain.FilterSelfSubmittedTxs, "Ethereum", "", 1)
	if len(got) != 1 || got[0].Direction != chain.DirOut {
		t.Fatalf("got = %+v, want only the self-submitted Out transfer", got)
	}
}

func TestEvaluateKnownAssetsFilterRequiresCatalogueHitForIncoming(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	known := common.HexToAddress("0x5555555555555555555555555555555555555555")
	unknown := common.HexToAddress("0x6666666666666666666666666666666666666666")
	reg := watched(me)

	db, cleanup := seedCatalogue(t, 1, known, "KNOWN", 18)
	defer cleanup()

	fromKnown := chain.TransferEvent{ChainKey: "ethereum", From: known, To: me, TxHash: common.HexToHash("0x01"), Value: big.NewInt(1), Asset: chain.Asset{Contract: known, Standard: chain.StandardERC20}}
	fromUnknown := chain.TransferEvent{ChainKey: "ethereum", From: unknown, To: me, TxHash: common.HexToHash("0x02"), Value: big.NewInt(1), Asset: chain.Asset{Contract: unknown, Standard: chain.StandardERC20}}

	got := Evaluate([]chain.TransferEvent{fromKnown, fromUnknown}, reg, db, chain.FilterKnownAssets, "Ethereum", "", 1)
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1 (only the known-asset transfer)", len(got))
	}
}

func TestEvaluateCoalescesMultipleEventsPerTxAndAccount(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	reg := watched(me)

	txHash := common.HexToHash("0x01")
	first := chain.TransferEvent{ChainKey: "ethereum", From: other, To: me, TxHash: txHash, Value: big.NewInt(1), Asset: chain.Asset{Contract: other, Symbol: "AAA", Standard: chain.StandardERC20}}
	second := chain.TransferEvent{ChainKey: "ethereum", From: other, To: me, TxHash: txHash, Value: big.NewInt(2), Asset: chain.Asset{Contract: other, Symbol: "BBB", Standard: chain.StandardERC20}}

	got := Evaluate([]chain.TransferEvent{first, second}, reg, tokencatalogue.Empty(), chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1 (coalesced)", len(got))
	}
	if got[0].AssetRender != "AAA (+1 more)" {
		t.Fatalf("AssetRender = %q, want %q", got[0].AssetRender, "AAA (+1 more)")
	}
}

func TestEvaluateCounterpartyNameIsTheCounterpartysLabelNotOurs(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	exchange := common.HexToAddress("0x4444444444444444444444444444444444444444")
	reg := labeled(map[common.Address]string{
		me:       "my wallet",
		exchange: "exchange hot wallet",
	})

	in := chain.TransferEvent{ChainKey: "ethereum", From: exchange, To: me, TxHash: common.HexToHash("0x01"), Value: big.NewInt(5), Asset: chain.Asset{Native: true}}

	got := Evaluate([]chain.TransferEvent{in}, reg, tokencatalogue.Empty(), chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].CounterpartyName != "exchange hot wallet" {
		t.Fatalf("CounterpartyName = %q, want the counterparty's own label, not the watched account's", got[0].CounterpartyName)
	}
	if got[0].Counterparty != exchange {
		t.Fatalf("Counterparty = %s, want %s", got[0].Counterparty, exchange)
	}
}

func TestEvaluateSelfTransferCounterpartyIsTheOtherWatchedAccount(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	alsoMine := common.HexToAddress("0x4444444444444444444444444444444444444444")
	reg := labeled(map[common.Address]string{
		me:       "main wallet",
		alsoMine: "savings wallet",
	})

	ev := chain.TransferEvent{ChainKey: "ethereum", From: me, To: alsoMine, TxHash: common.HexToHash("0x01"), Value: big.NewInt(5), Asset: chain.Asset{Native: true}}

	got := Evaluate([]chain.TransferEvent{ev}, reg, tokencatalogue.Empty(), chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 1 || got[0].Direction != chain.DirSelf {
		t.Fatalf("got = %+v, want one Self notification", got)
	}
	if got[0].CounterpartyName != "savings wallet" {
		t.Fatalf("CounterpartyName = %q, want %q", got[0].CounterpartyName, "savings wallet")
	}
}

func TestEvaluateEnrichesKnownAssetWithSymbolAndScalesValueByDecimals(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	usdc := common.HexToAddress("0x5555555555555555555555555555555555555555")
	reg := watched(me)

	cat, cleanup := seedCatalogue(t, 1, usdc, "USDC", 6)
	defer cleanup()

	// 100 USDC at 6 decimals, raw units.
	raw := new(big.Int)
	raw.SetString("100000000", 10)
	ev := chain.TransferEvent{ChainKey: "ethereum", From: usdc, To: me, TxHash: common.HexToHash("0x01"), Value: raw, Asset: chain.Asset{Contract: usdc, Standard: chain.StandardERC20}}

	got := Evaluate([]chain.TransferEvent{ev}, reg, cat, chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].AssetRender != "USDC" {
		t.Fatalf("AssetRender = %q, want %q", got[0].AssetRender, "USDC")
	}
	if got[0].ValueRender != "100" {
		t.Fatalf("ValueRender = %q, want %q", got[0].ValueRender, "100")
	}
}

func TestEvaluateAssetEnrichmentAppliesUnderFilterNoneNotJustKnownAssets(t *testing.T) {
	me := common.HexToAddress("0x3333333333333333333333333333333333333333")
	dai := common.HexToAddress("0x7777777777777777777777777777777777777777")
	reg := watched(me)

	cat, cleanup := seedCatalogue(t, 1, dai, "DAI", 18)
	defer cleanup()

	raw := new(big.Int)
	raw.SetString("1500000000000000000", 10) // 1.5 DAI
	ev := chain.TransferEvent{ChainKey: "ethereum", From: dai, To: me, TxHash: common.HexToHash("0x01"), Value: raw, Asset: chain.Asset{Contract: dai, Standard: chain.StandardERC20}}

	got := Evaluate([]chain.TransferEvent{ev}, reg, cat, chain.FilterNone, "Ethereum", "", 1)
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].ValueRender != "1.5" {
		t.Fatalf("ValueRender = %q, want %q", got[0].ValueRender, "1.5")
	}
}
