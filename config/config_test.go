package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimal = `{
	"near_rpc_url": "https://rpc.testnet.near.org",
	"aurora_rpc_url": "https://testnet.aurora.dev",
	"near_account_id": "alice.testnet",
	"near_private_key": "ed25519:abc",
	"mnemonic": "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
	"wnear_account_id": "wrap.testnet",
	"database_path": "bridge.db",
	"featured_tokens": [" tokenA ", "tokenB", "tokenA", ""]
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	require.Equal(t, NetworkTestnet, cfg.Network)
	require.Equal(t, int64(1313161555), cfg.AuroraChainID)
	require.Equal(t, "aurora", cfg.CustodianAccountID)
	require.Equal(t, []string{"tokenA", "tokenB"}, cfg.FeaturedTokens)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 15, cfg.TrackerIntervalSeconds)
	require.Equal(t, 60, cfg.StuckAfterMinutes)
	require.False(t, cfg.BotEnabled())
}

func TestMainnetChainID(t *testing.T) {
	cfg := Config{
		Network:        NetworkMainnet,
		NearRPCURL:     "x",
		AuroraRPCURL:   "y",
		NearAccountID:  "alice.near",
		NearPrivateKey: "ed25519:abc",
		Mnemonic:       "m",
		WNearAccountID: "wrap.near",
		DatabasePath:   "db",
	}
	require.NoError(t, cfg.validate())
	require.Equal(t, int64(1313161554), cfg.AuroraChainID)
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		return Config{
			NearRPCURL:     "x",
			AuroraRPCURL:   "y",
			NearAccountID:  "alice.near",
			NearPrivateKey: "ed25519:abc",
			Mnemonic:       "m",
			WNearAccountID: "wrap.near",
			DatabasePath:   "db",
		}
	}

	cases := map[string]func(c *Config){
		"bad network":       func(c *Config) { c.Network = "devnet" },
		"no near rpc":       func(c *Config) { c.NearRPCURL = "" },
		"no aurora rpc":     func(c *Config) { c.AuroraRPCURL = "" },
		"no account":        func(c *Config) { c.NearAccountID = "" },
		"bad key":           func(c *Config) { c.NearPrivateKey = "secp256k1:abc" },
		"no mnemonic":       func(c *Config) { c.Mnemonic = "" },
		"no wnear":          func(c *Config) { c.WNearAccountID = "" },
		"no database":       func(c *Config) { c.DatabasePath = "" },
		"featured near":     func(c *Config) { c.FeaturedTokens = []string{"near"} },
		"bot without admin": func(c *Config) { c.TelegramToken = "123:abc" },
	}
	for name, mutate := range cases {
		c := base()
		mutate(&c)
		require.Error(t, c.validate(), name)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "{not json"))
	require.Error(t, err)
}

