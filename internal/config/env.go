package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Env holds secrets and endpoints. They never live in the strategy document.
type Env struct {
	WalletPrivateKey string
	RPCURL           string
	WSURL            string
	PostgresDSN      string
	ClickhouseDSN    string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SQLitePath       string
	MaxPriorityFee   uint64 // µlamports per CU, 0 = no cap
	SweepInterval    time.Duration
}

// LoadEnv loads .env files when present, then reads the environment.
// Missing .env files are ignored.
func LoadEnv(files ...string) Env {
	_ = godotenv.Load(files...)

	env := Env{SweepInterval: 30 * time.Second}
	setStr(&env.WalletPrivateKey, "WALLET_PRIVATE_KEY")
	setStr(&env.RPCURL, "RPC_URL")
	setStr(&env.WSURL, "WS_URL")
	setStr(&env.PostgresDSN, "POSTGRES_DSN")
	setStr(&env.ClickhouseDSN, "CLICKHOUSE_DSN")
	setStr(&env.RedisAddr, "REDIS_ADDR")
	setStr(&env.RedisPassword, "REDIS_PASSWORD")
	setInt(&env.RedisDB, "REDIS_DB")
	setStr(&env.SQLitePath, "SQLITE_PATH")
	setUint64(&env.MaxPriorityFee, "MAX_PRIORITY_FEE")
	setDuration(&env.SweepInterval, "SWEEP_INTERVAL")
	return env
}

// ValidateTrading checks the settings required to sign and send.
func (e Env) ValidateTrading() error {
	var errs []error
	if e.WalletPrivateKey == "" {
		errs = append(errs, errors.New("WALLET_PRIVATE_KEY is required"))
	}
	if e.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if e.WSURL == "" {
		errs = append(errs, errors.New("WS_URL is required"))
	}
	return errors.Join(errs...)
}

// Each helper only mutates the target when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
