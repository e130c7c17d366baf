package config

import (
	"testing"

	"github.com/Ktl-XV/account-monitor/internal/chain"
)

func envFrom(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func validEnv() map[string]string {
	return map[string]string{
		"NTFY_URL":             "https://ntfy.sh",
		"NTFY_TOPIC":           "alerts",
		"NTFY_TOKEN":           "secret",
		"CHAINS":               "ETHEREUM",
		"CHAIN_RPC_ETHEREUM":   "https://rpc.example/eth",
		"CHAIN_NAME_ETHEREUM":  "Ethereum",
		"CHAIN_BLOCKTME_ETHEREUM": "12000",
	}
}

func TestLoadValidEnvProducesOneChain(t *testing.T) {
	cfg, err := Load(envFrom(validEnv()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Chains) != 1 {
		t.Fatalf("got %d chains, want 1", len(cfg.Chains))
	}
	c := cfg.Chains[0]
	if c.Mode != chain.ModeBlocks {
		t.Fatalf("default mode = %s, want Blocks", c.Mode)
	}
	if c.SpamFilter != chain.FilterKnownAssets {
		t.Fatalf("default spam filter = %s, want KnownAssets", c.SpamFilter)
	}
	if c.BlockTimeMS != 12000 {
		t.Fatalf("block time = %d, want 12000", c.BlockTimeMS)
	}
}

func TestLoadMissingRequiredGlobalVarIsFatal(t *testing.T) {
	env := validEnv()
	delete(env, "CHAINS")
	_, err := Load(envFrom(env))
	if err == nil {
		t.Fatal("expected error for missing CHAINS")
	}
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("error is not a *ConfigError: %v", err)
	}
	if cfgErr.Var != "CHAINS" {
		t.Fatalf("ConfigError.Var = %q, want CHAINS", cfgErr.Var)
	}
}

func TestLoadMissingPerChainVarNamesTheChain(t *testing.T) {
	env := validEnv()
	delete(env, "CHAIN_RPC_ETHEREUM")
	_, err := Load(envFrom(env))
	if err == nil {
		t.Fatal("expected error for missing CHAIN_RPC_ETHEREUM")
	}
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("error is not a *ConfigError: %v", err)
	}
	if cfgErr.Var != "CHAIN_RPC_ETHEREUM" {
		t.Fatalf("ConfigError.Var = %q, want CHAIN_RPC_ETHEREUM", cfgErr.Var)
	}
}

func TestLoadNtfyDisableSkipsNtfyRequirement(t *testing.T) {
	env := validEnv()
	delete(env, "NTFY_URL")
	delete(env, "NTFY_TOPIC")
	env["NTFY_DISABLE"] = "true"

	cfg, err := Load(envFrom(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.NtfyDisable {
		t.Fatal("expected NtfyDisable to be true")
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	env := validEnv()
	env["CHAIN_MODE_ETHEREUM"] = "Weird"
	_, err := Load(envFrom(env))
	if err == nil {
		t.Fatal("expected error for invalid CHAIN_MODE")
	}
}

func TestLoadDebugBlockParsed(t *testing.T) {
	env := validEnv()
	env["DEBUG_BLOCK"] = "12345"
	cfg, err := Load(envFrom(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.HasDebugBlock || cfg.DebugBlock != 12345 {
		t.Fatalf("DebugBlock = %+v", cfg)
	}
}

func asConfigError(err error, target **ConfigError) bool {
	ce, ok := err.(*ConfigError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
