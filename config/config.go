package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Network string

const (
	NetworkTestnet Network = "testnet"
	NetworkMainnet Network = "mainnet"
)

const (
	chainIDMainnet int64 = 1313161554
	chainIDTestnet int64 = 1313161555
)

type Config struct {
	// "testnet" or "mainnet" (default testnet)
	Network Network `json:"network"`

	// JSON-RPC endpoints
	NearRPCURL   string `json:"near_rpc_url"`
	AuroraRPCURL string `json:"aurora_rpc_url"`

	// EIP-155 chain id used to sign Aurora transactions
	AuroraChainID int64 `json:"aurora_chain_id"`

	// NEAR account and its full access key, "ed25519:<base58>"
	NearAccountID  string `json:"near_account_id"`
	NearPrivateKey string `json:"near_private_key"`

	// BIP39 mnemonic for the Aurora signer, derived at m/44'/60'/0'/0/{wallet_index}
	Mnemonic    string `json:"mnemonic"`
	WalletIndex uint32 `json:"wallet_index"`

	// Aurora engine account receiving bridged tokens (default "aurora")
	CustodianAccountID string `json:"custodian_account_id"`

	// Wrapped NEAR token contract
	WNearAccountID string `json:"wnear_account_id"`

	// NEP-141 tokens always listed
	FeaturedTokens []string `json:"featured_tokens"`

	// Path to SQLite database
	DatabasePath string `json:"database_path"`

	// HTTP server port (default 8080)
	Port int `json:"port"`

	// Optional bearer password for the API; empty = public
	APIPassword string `json:"api_password"`

	// Telegram bot token from @BotFather; empty disables the bot
	TelegramToken string `json:"telegram_token"`

	// The only telegram user the bot answers
	AdminUserID int64 `json:"admin_user_id"`

	TrackerIntervalSeconds int `json:"tracker_interval_seconds"`
	StuckAfterMinutes      int `json:"stuck_after_minutes"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Network == "" {
		c.Network = NetworkTestnet
	}
	if c.Network != NetworkTestnet && c.Network != NetworkMainnet {
		return fmt.Errorf("network must be 'testnet' or 'mainnet'")
	}
	if c.NearRPCURL == "" {
		return fmt.Errorf("near_rpc_url is required")
	}
	if c.AuroraRPCURL == "" {
		return fmt.Errorf("aurora_rpc_url is required")
	}
	if c.AuroraChainID == 0 {
		c.AuroraChainID = chainIDTestnet
		if c.Network == NetworkMainnet {
			c.AuroraChainID = chainIDMainnet
		}
	}
	if c.NearAccountID == "" {
		return fmt.Errorf("near_account_id is required")
	}
	if !strings.HasPrefix(c.NearPrivateKey, "ed25519:") {
		return fmt.Errorf("near_private_key must be an ed25519: key")
	}
	if c.Mnemonic == "" {
		return fmt.Errorf("mnemonic is required")
	}
	if c.CustodianAccountID == "" {
		c.CustodianAccountID = "aurora"
	}
	if c.WNearAccountID == "" {
		return fmt.Errorf("wnear_account_id is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	seen := make(map[string]bool)
	var featured []string
	for _, t := range c.FeaturedTokens {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if t == "near" {
			return fmt.Errorf("featured_tokens must not contain the reserved \"near\"")
		}
		seen[t] = true
		featured = append(featured, t)
	}
	c.FeaturedTokens = featured

	if c.TelegramToken != "" && c.AdminUserID == 0 {
		return fmt.Errorf("admin_user_id is required when telegram_token is set")
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.TrackerIntervalSeconds <= 0 {
		c.TrackerIntervalSeconds = 15
	}
	if c.StuckAfterMinutes <= 0 {
		c.StuckAfterMinutes = 60
	}
	return nil
}

func (c *Config) TrackerInterval() time.Duration {
	return time.Duration(c.TrackerIntervalSeconds) * time.Second
}

func (c *Config) StuckAfter() time.Duration {
	return time.Duration(c.StuckAfterMinutes) * time.Minute
}

func (c *Config) BotEnabled() bool {
	return c.TelegramToken != ""
}
