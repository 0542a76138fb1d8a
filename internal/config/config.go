package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	App        AppConfig        `toml:"app"`
	Settlement SettlementConfig `toml:"settlement"`
	Oracle     OracleConfig     `toml:"oracle"`
	Redis      RedisConfig      `toml:"redis"`
	Admin      AdminConfig      `toml:"admin"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string `toml:"driver"`
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	DBName     string `toml:"name"`
	SQLitePath string `toml:"sqlite_path"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret         string   `toml:"jwt_secret"`
	LogLevel          string   `toml:"log_level"`
	Development       bool     `toml:"development"`
	LoginChallengeTTL Duration `toml:"login_challenge_ttl"`
}

// SettlementConfig holds market lifecycle settings. EnforcePoolCap keeps each
// market's disbursements within its own prize pool; with it off a payout can
// draw on escrow held for other markets, so Validate allows that only in
// development mode.
type SettlementConfig struct {
	MinDuration    Duration `toml:"min_duration"`
	MaxDuration    Duration `toml:"max_duration"`
	RevealTimeout  Duration `toml:"reveal_timeout"`
	CreationFee    int64    `toml:"creation_fee"`
	EnforcePoolCap bool     `toml:"enforce_pool_cap"`
	KeeperInterval Duration `toml:"keeper_interval"`
	PrivacyFactor  uint64   `toml:"privacy_factor"` // 0 draws a random factor per market
}

// OracleConfig holds decryption oracle settings
type OracleConfig struct {
	Mode              string   `toml:"mode"`
	GatewayURL        string   `toml:"gateway_url"`
	CallbackURL       string   `toml:"callback_url"`
	Account           string   `toml:"account"`
	SignerKeys        []string `toml:"signer_keys"`
	SignerAddresses   []string `toml:"signer_addresses"`
	Threshold         int      `toml:"threshold"`
	RelayerDelay      Duration `toml:"relayer_delay"`
	RelayerAttempts   int      `toml:"relayer_attempts"`
	RelayerBackoff    Duration `toml:"relayer_backoff"`
	ChainID           int64    `toml:"chain_id"`
	VerifyingContract string   `toml:"verifying_contract"`
	BackendSecret     string   `toml:"backend_secret"`
}

// RedisConfig holds the shared lock store. An empty Addr keeps locking in-process.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    Duration `toml:"lock_ttl"`
}

// AdminConfig lists wallets granted admin rights at startup
type AdminConfig struct {
	Wallets []string `toml:"wallets"`
}

// Duration decodes TOML strings such as "24h" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			DBName:     "confidential_market",
			SQLitePath: "confidential_market.db",
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		App: AppConfig{
			LogLevel:          "info",
			LoginChallengeTTL: Duration{5 * time.Minute},
		},
		Settlement: SettlementConfig{
			MinDuration:    Duration{time.Minute},
			MaxDuration:    Duration{30 * 24 * time.Hour},
			RevealTimeout:  Duration{24 * time.Hour},
			CreationFee:    0,
			EnforcePoolCap: true,
			KeeperInterval: Duration{30 * time.Second},
			PrivacyFactor:  0,
		},
		Oracle: OracleConfig{
			Mode:              "local",
			Account:           "oracle",
			Threshold:         1,
			RelayerDelay:      Duration{2 * time.Second},
			RelayerAttempts:   5,
			RelayerBackoff:    Duration{500 * time.Millisecond},
			ChainID:           31337,
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Redis: RedisConfig{
			LockTTL: Duration{30 * time.Second},
		},
	}
}

// Load loads configuration from an optional TOML file named by CONFIG_FILE
// and then from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := Defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SQLitePath = getEnv("DB_SQLITE_PATH", c.Database.SQLitePath)

	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	setList(&c.Server.AllowedOrigins, "ALLOWED_ORIGINS")

	c.App.JWTSecret = getEnv("JWT_SECRET", c.App.JWTSecret)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	setBool(&c.App.Development, "APP_DEVELOPMENT")
	setDuration(&c.App.LoginChallengeTTL, "LOGIN_CHALLENGE_TTL")

	setDuration(&c.Settlement.MinDuration, "MARKET_MIN_DURATION")
	setDuration(&c.Settlement.MaxDuration, "MARKET_MAX_DURATION")
	setDuration(&c.Settlement.RevealTimeout, "REVEAL_TIMEOUT")
	setInt64(&c.Settlement.CreationFee, "CREATION_FEE")
	setBool(&c.Settlement.EnforcePoolCap, "ENFORCE_POOL_CAP")
	setDuration(&c.Settlement.KeeperInterval, "KEEPER_INTERVAL")

	c.Oracle.Mode = getEnv("ORACLE_MODE", c.Oracle.Mode)
	c.Oracle.GatewayURL = getEnv("ORACLE_GATEWAY_URL", c.Oracle.GatewayURL)
	c.Oracle.CallbackURL = getEnv("ORACLE_CALLBACK_URL", c.Oracle.CallbackURL)
	c.Oracle.Account = getEnv("ORACLE_ACCOUNT", c.Oracle.Account)
	setList(&c.Oracle.SignerKeys, "ORACLE_SIGNER_KEYS")
	setList(&c.Oracle.SignerAddresses, "ORACLE_SIGNER_ADDRESSES")
	setInt(&c.Oracle.Threshold, "ORACLE_THRESHOLD")
	setDuration(&c.Oracle.RelayerDelay, "ORACLE_RELAYER_DELAY")
	setInt(&c.Oracle.RelayerAttempts, "ORACLE_RELAYER_ATTEMPTS")
	setDuration(&c.Oracle.RelayerBackoff, "ORACLE_RELAYER_BACKOFF")
	setInt64(&c.Oracle.ChainID, "ORACLE_CHAIN_ID")
	c.Oracle.VerifyingContract = getEnv("ORACLE_VERIFYING_CONTRACT", c.Oracle.VerifyingContract)
	c.Oracle.BackendSecret = getEnv("CONFIDENTIAL_BACKEND_SECRET", c.Oracle.BackendSecret)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	setInt(&c.Redis.DB, "REDIS_DB")

	setList(&c.Admin.Wallets, "ADMIN_WALLETS")
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.App.LoginChallengeTTL.Duration <= 0 {
		return fmt.Errorf("login challenge TTL must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	s := c.Settlement
	if s.MinDuration.Duration <= 0 || s.MinDuration.Duration > s.MaxDuration.Duration {
		return fmt.Errorf("market duration bounds invalid: min %s max %s", s.MinDuration, s.MaxDuration)
	}
	if s.RevealTimeout.Duration <= 0 {
		return fmt.Errorf("reveal timeout must be positive")
	}
	if s.CreationFee < 0 {
		return fmt.Errorf("creation fee must not be negative")
	}
	if s.KeeperInterval.Duration < 0 {
		return fmt.Errorf("keeper interval must not be negative")
	}
	if !s.EnforcePoolCap && !c.App.Development {
		return fmt.Errorf("ENFORCE_POOL_CAP=false is only allowed with APP_DEVELOPMENT=true")
	}

	o := c.Oracle
	if o.BackendSecret == "" {
		return fmt.Errorf("CONFIDENTIAL_BACKEND_SECRET is required")
	}
	switch o.Mode {
	case "local":
		if len(o.SignerKeys) == 0 {
			return fmt.Errorf("ORACLE_SIGNER_KEYS is required in local oracle mode")
		}
		if o.Threshold < 1 || o.Threshold > len(o.SignerKeys) {
			return fmt.Errorf("oracle threshold %d exceeds %d signer keys", o.Threshold, len(o.SignerKeys))
		}
	case "http":
		if o.GatewayURL == "" || o.CallbackURL == "" {
			return fmt.Errorf("oracle gateway and callback URLs are required in http mode")
		}
		if len(o.SignerAddresses) == 0 {
			return fmt.Errorf("ORACLE_SIGNER_ADDRESSES is required in http oracle mode")
		}
		if o.Threshold < 1 || o.Threshold > len(o.SignerAddresses) {
			return fmt.Errorf("oracle threshold %d exceeds %d signer addresses", o.Threshold, len(o.SignerAddresses))
		}
	default:
		return fmt.Errorf("unsupported oracle mode %q", o.Mode)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		*dst = n
	}
}

func setInt64(dst *int64, key string) {
	if n, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		*dst = b
	}
}

func setDuration(dst *Duration, key string) {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		dst.Duration = d
	}
}

func setList(dst *[]string, key string) {
	v := getEnv(key, "")
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
