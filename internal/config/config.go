// Package config resolves process configuration from environment
// variables per spec.md §6. A missing required variable is a
// ConfigError: fatal at startup, never a runtime condition.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ktl-XV/account-monitor/internal/chain"
)

// ConfigError wraps the name of the missing or malformed environment
// variable that caused startup to fail.
type ConfigError struct {
	Var    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Var, e.Reason)
}

// Config is the fully resolved process configuration.
type Config struct {
	NtfyURL            string
	NtfyTopic          string
	NtfyToken          string
	NtfyDisable        bool
	StaticAccountsPath string
	DebugBlock         int64
	HasDebugBlock      bool
	Chains             []chain.Config
}

// Getenv matches os.Getenv's signature; config is parameterised over it
// so tests never touch the real process environment.
type Getenv func(string) string

// Load resolves a Config from getenv, typically os.Getenv in production.
func Load(getenv Getenv) (*Config, error) {
	cfg := &Config{
		NtfyURL:            getenv("NTFY_URL"),
		NtfyTopic:          getenv("NTFY_TOPIC"),
		NtfyToken:          getenv("NTFY_TOKEN"),
		StaticAccountsPath: getenv("STATIC_ACCOUNTS_PATH"),
	}

	if v := getenv("NTFY_DISABLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ConfigError{Var: "NTFY_DISABLE", Reason: "not a bool: " + err.Error()}
		}
		cfg.NtfyDisable = b
	}

	if v := getenv("DEBUG_BLOCK"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &ConfigError{Var: "DEBUG_BLOCK", Reason: "not an integer: " + err.Error()}
		}
		cfg.DebugBlock = n
		cfg.HasDebugBlock = true
	}

	if !cfg.NtfyDisable {
		if cfg.NtfyURL == "" {
			return nil, &ConfigError{Var: "NTFY_URL", Reason: "required unless NTFY_DISABLE=true"}
		}
		if cfg.NtfyTopic == "" {
			return nil, &ConfigError{Var: "NTFY_TOPIC", Reason: "required unless NTFY_DISABLE=true"}
		}
	}

	rawChains := getenv("CHAINS")
	if rawChains == "" {
		return nil, &ConfigError{Var: "CHAINS", Reason: "required, comma-separated chain keys"}
	}

	for _, key := range strings.Split(rawChains, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		c, err := loadChain(getenv, key)
		if err != nil {
			return nil, err
		}
		cfg.Chains = append(cfg.Chains, c)
	}

	if len(cfg.Chains) == 0 {
		return nil, &ConfigError{Var: "CHAINS", Reason: "resolved to zero chains"}
	}

	return cfg, nil
}

func loadChain(getenv Getenv, key string) (chain.Config, error) {
	required := func(name string) (string, error) {
		v := getenv(name)
		if v == "" {
			return "", &ConfigError{Var: name, Reason: "required for chain " + key}
		}
		return v, nil
	}

	rpcURL, err := required("CHAIN_RPC_" + key)
	if err != nil {
		return chain.Config{}, err
	}
	displayName, err := required("CHAIN_NAME_" + key)
	if err != nil {
		return chain.Config{}, err
	}
	blockTimeRaw, err := required("CHAIN_BLOCKTME_" + key)
	if err != nil {
		return chain.Config{}, err
	}
	blockTimeMS, err := strconv.ParseUint(blockTimeRaw, 10, 64)
	if err != nil {
		return chain.Config{}, &ConfigError{Var: "CHAIN_BLOCKTME_" + key, Reason: "not an integer: " + err.Error()}
	}

	mode := chain.ModeBlocks
	if v := getenv("CHAIN_MODE_" + key); v != "" {
		switch chain.Mode(v) {
		case chain.ModeBlocks, chain.ModeEvents:
			mode = chain.Mode(v)
		default:
			return chain.Config{}, &ConfigError{Var: "CHAIN_MODE_" + key, Reason: "must be Blocks or Events, got " + v}
		}
	}

	spamFilter := chain.FilterKnownAssets
	if v := getenv("CHAIN_SPAM_FILTER_LEVEL_" + key); v != "" {
		switch chain.SpamFilter(v) {
		case chain.FilterNone, chain.FilterKnownAssets, chain.FilterSelfSubmittedTxs:
			spamFilter = chain.SpamFilter(v)
		default:
			return chain.Config{}, &ConfigError{Var: "CHAIN_SPAM_FILTER_LEVEL_" + key, Reason: "invalid spam filter level: " + v}
		}
	}

	cfg := chain.Config{
		Key:         key,
		DisplayName: displayName,
		RPCURL:      rpcURL,
		BlockTimeMS: blockTimeMS,
		Mode:        mode,
		SpamFilter:  spamFilter,
		ExplorerURL: getenv("CHAIN_EXPLORER_" + key),
	}

	if v := getenv("CHAIN_ID_" + key); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return chain.Config{}, &ConfigError{Var: "CHAIN_ID_" + key, Reason: "not an integer: " + err.Error()}
		}
		cfg.ChainID = id
		cfg.HasChainID = true
	}

	return cfg, nil
}
