// Package tokencatalogue is a read-only lookup of token metadata,
// packaged as a sqlite database and loaded entirely into memory at
// startup. There is no write path and no runtime refresh.
package tokencatalogue

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	_ "modernc.org/sqlite"

	"github.com/Ktl-XV/account-monitor/internal/chain"
)

// TokenMeta is the catalogue entry for one (chain, contract) pair.
type TokenMeta struct {
	Symbol   string
	Decimals uint8
	Standard chain.AssetStandard
}

type key struct {
	chainID  uint64
	contract common.Address
}

// Catalogue is the in-memory, immutable-after-load token-metadata table.
type Catalogue struct {
	entries map[key]TokenMeta
}

// Open reads the packaged sqlite database at path read-only and builds
// the in-memory lookup. The expected schema is:
//
//	CREATE TABLE tokens(
//	  chain_id INTEGER NOT NULL,
//	  contract TEXT NOT NULL,
//	  symbol   TEXT NOT NULL,
//	  decimals INTEGER NOT NULL,
//	  standard TEXT NOT NULL,
//	  PRIMARY KEY(chain_id, contract)
//	)
func Open(path string) (*Catalogue, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tokencatalogue: open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT chain_id, contract, symbol, decimals, standard FROM tokens`)
	if err != nil {
		return nil, fmt.Errorf("tokencatalogue: query: %w", err)
	}
	defer rows.Close()

	entries := make(map[key]TokenMeta)
	for rows.Next() {
		var (
			chainID  uint64
			contract string
			symbol   string
			decimals uint8
			standard string
		)
		if err := rows.Scan(&chainID, &contract, &symbol, &decimals, &standard); err != nil {
			return nil, fmt.Errorf("tokencatalogue: scan: %w", err)
		}
		if !common.IsHexAddress(contract) {
			continue
		}
		entries[key{chainID: chainID, contract: common.HexToAddress(contract)}] = TokenMeta{
			Symbol:   symbol,
			Decimals: decimals,
			Standard: chain.AssetStandard(standard),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tokencatalogue: rows: %w", err)
	}

	return &Catalogue{entries: entries}, nil
}

// Empty returns a catalogue with no entries, useful when no packaged
// database is configured.
func Empty() *Catalogue {
	return &Catalogue{entries: make(map[key]TokenMeta)}
}

// Lookup returns the token metadata for (chainID, contract). A miss
// (ok == false) is the signal the KnownAssets spam filter acts on.
func (c *Catalogue) Lookup(chainID uint64, contract common.Address) (TokenMeta, bool) {
	m, ok := c.entries[key{chainID: chainID, contract: contract}]
	return m, ok
}

// Len reports the number of loaded entries.
func (c *Catalogue) Len() int {
	return len(c.entries)
}
