// Package bootstrap loads the initial watched-account list from a YAML
// file at startup, ahead of any admin API inserts.
package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethlog "github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v2"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
)

// entry mirrors one YAML list item:
//
//	- address: "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"
//	  label: "treasury"
type entry struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

// LoadFile reads accounts from a YAML file and inserts every well-formed
// entry into reg. A malformed address is logged and skipped; it never
// aborts the load of the remaining entries. Returns the count of
// addresses inserted.
func LoadFile(path string, reg *accountregistry.Registry) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: read %s: %w", path, err)
	}
	return Load(raw, reg)
}

// Load parses raw YAML bytes and inserts every well-formed entry into
// reg, skipping and logging malformed ones.
func Load(raw []byte, reg *accountregistry.Registry) (int, error) {
	var entries []entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("bootstrap: parse yaml: %w", err)
	}

	count := 0
	for i, e := range entries {
		if !isStrictHexAddress(e.Address) {
			gethlog.Warn("bootstrap: skipping malformed account entry", "index", i, "address", e.Address)
			continue
		}
		if reg.Insert(common.HexToAddress(e.Address), e.Label) == accountregistry.Inserted {
			count++
		}
	}
	return count, nil
}

// isStrictHexAddress requires the 0x prefix spec.md §6 defines a valid
// address by; common.IsHexAddress alone also accepts bare 40-char hex.
func isStrictHexAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && len(s) == 42 && common.IsHexAddress(s)
}
