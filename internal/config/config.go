package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	KeysDir         string `yaml:"keys_dir"`
	CanonicalFormat string `yaml:"canonical_format"`
	KeyCacheTTLSecs int    `yaml:"key_cache_ttl_secs"`

	LedgerBackend     string `yaml:"ledger_backend"`
	LedgerTimeoutSecs int    `yaml:"ledger_timeout_secs"`
	PostgresDSN       string `yaml:"postgres_dsn"`
	SQLitePath        string `yaml:"sqlite_path"`

	EthRPCURL           string `yaml:"eth_rpc_url"`
	EthContractAddress  string `yaml:"eth_contract_address"`
	EthDeploymentConfig string `yaml:"eth_deployment_config"`
	EthPrivateKeyHex    string `yaml:"eth_private_key_hex"`
	EthChainID          int    `yaml:"eth_chain_id"`

	AuthMode       string   `yaml:"auth_mode"`
	SessionSecret  string   `yaml:"session_secret"`
	SessionTTLSecs int      `yaml:"session_ttl_secs"`
	AdminEmails    []string `yaml:"admin_emails"`
	AdminAPIKey    string   `yaml:"admin_api_key"`
	PolicyPath     string   `yaml:"policy_path"`

	RateLimitRequests      int  `yaml:"rate_limit_requests"`
	RateLimitWindowSeconds int  `yaml:"rate_limit_window_seconds"`
	RateLimitFailClosed    bool `yaml:"rate_limit_fail_closed"`
	RateLimitMaxKeys       int  `yaml:"rate_limit_max_keys"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

const (
	LedgerMemory   = "memory"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
	LedgerEthereum = "ethereum"

	AuthModeNone    = "none"
	AuthModeSession = "session"
)

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		HTTPAddr:               ":8080",
		LogLevel:               "info",
		LogFormat:              "json",
		KeysDir:                "keys",
		CanonicalFormat:        "legacy",
		KeyCacheTTLSecs:        300,
		LedgerBackend:          LedgerMemory,
		LedgerTimeoutSecs:      30,
		SQLitePath:             "certus.db",
		AuthMode:               AuthModeNone,
		SessionTTLSecs:         int((24 * time.Hour).Seconds()),
		RateLimitWindowSeconds: 60,
		RateLimitMaxKeys:       10000,
	}
}

func FromEnv() Config {
	return overlayEnv(Defaults())
}

// Load reads an optional YAML file and applies environment overrides on top.
// An empty path falls back to CERTUS_CONFIG.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("CERTUS_CONFIG")
	}
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg = overlayEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayEnv(c Config) Config {
	c.HTTPAddr = envDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = envDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envDefault("LOG_FORMAT", c.LogFormat)
	c.KeysDir = envDefault("KEYS_DIR", c.KeysDir)
	c.CanonicalFormat = envDefault("CANONICAL_FORMAT", c.CanonicalFormat)
	c.KeyCacheTTLSecs = envIntDefault("KEY_CACHE_TTL_SECS", c.KeyCacheTTLSecs)
	c.LedgerBackend = envDefault("LEDGER_BACKEND", c.LedgerBackend)
	c.LedgerTimeoutSecs = envIntDefault("LEDGER_TIMEOUT_SECS", c.LedgerTimeoutSecs)
	c.PostgresDSN = envDefault("POSTGRES_DSN", c.PostgresDSN)
	c.SQLitePath = envDefault("SQLITE_PATH", c.SQLitePath)
	c.EthRPCURL = envDefault("ETH_RPC_URL", c.EthRPCURL)
	c.EthContractAddress = envDefault("ETH_CONTRACT_ADDRESS", c.EthContractAddress)
	c.EthDeploymentConfig = envDefault("ETH_DEPLOYMENT_CONFIG", c.EthDeploymentConfig)
	c.EthPrivateKeyHex = envDefault("ETH_PRIVATE_KEY_HEX", c.EthPrivateKeyHex)
	c.EthChainID = envIntDefault("ETH_CHAIN_ID", c.EthChainID)
	c.AuthMode = envDefault("AUTH_MODE", c.AuthMode)
	c.SessionSecret = envDefault("SESSION_SECRET", c.SessionSecret)
	c.SessionTTLSecs = envIntDefault("SESSION_TTL_SECS", c.SessionTTLSecs)
	c.AdminAPIKey = envDefault("ADMIN_API_KEY", c.AdminAPIKey)
	c.PolicyPath = envDefault("POLICY_PATH", c.PolicyPath)
	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		c.AdminEmails = splitList(v)
	}
	c.RateLimitRequests = envIntDefault("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindowSeconds = envIntDefault("RATE_LIMIT_WINDOW_SECONDS", c.RateLimitWindowSeconds)
	c.RateLimitFailClosed = envBoolDefault("RATE_LIMIT_FAIL_CLOSED", c.RateLimitFailClosed)
	c.RateLimitMaxKeys = envIntDefault("RATE_LIMIT_MAX_KEYS", c.RateLimitMaxKeys)
	c.RedisAddr = envDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envDefault("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envIntDefault("REDIS_DB", c.RedisDB)
	return c
}

func (c Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerMemory, LedgerSQLite:
	case LedgerPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the %s ledger", c.LedgerBackend)
		}
	case LedgerEthereum:
		if c.EthRPCURL == "" {
			return fmt.Errorf("ETH_RPC_URL is required for the %s ledger", c.LedgerBackend)
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	switch c.AuthMode {
	case AuthModeNone:
	case AuthModeSession:
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes when AUTH_MODE=%s", c.AuthMode)
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

func (c Config) IsAdmin(email string) bool {
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSecs) * time.Second
}

func (c Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSecs) * time.Second
}

func (c Config) KeyCacheTTL() time.Duration {
	if c.KeyCacheTTLSecs <= 0 {
		return 0
	}
	return time.Duration(c.KeyCacheTTLSecs) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
