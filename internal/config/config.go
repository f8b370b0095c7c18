// Package config loads server settings from an optional .env file and
// LEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	BackendRemote   = "remote"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	ListenAddr string
	LogLevel   zerolog.Level

	Backend          string
	RemoteURL        string
	AccountsPath     string
	TransactionsPath string
	SeedFile         string
	PostgresDSN      string

	RequestTimeout  time.Duration
	RateLimit       float64
	RateBurst       int
	BreakerFailures uint32
	BreakerCooldown time.Duration

	RedisAddr  string
	SessionKey string

	KafkaBrokers []string
	KafkaTopic   string

	SafetyTimeout    time.Duration
	SerializedWrites bool
}

func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		LogLevel:         zerolog.InfoLevel,
		Backend:          BackendRemote,
		RemoteURL:        "http://localhost:3000",
		AccountsPath:     "/accounts",
		TransactionsPath: "/transactions",
		RequestTimeout:   10 * time.Second,
		RateLimit:        50,
		RateBurst:        10,
		BreakerFailures:  5,
		BreakerCooldown:  30 * time.Second,
		SessionKey:       "currentUser",
		KafkaTopic:       "transfer_completed",
		SafetyTimeout:    3 * time.Second,
	}
}

// Load reads envFile if it exists (an empty name means ".env") and then
// applies the environment over the defaults. Variables already set in the
// environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv applies lookup over the defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.strVar("LEDGER_LISTEN_ADDR", &cfg.ListenAddr)
	p.levelVar("LEDGER_LOG_LEVEL", &cfg.LogLevel)
	p.strVar("LEDGER_STORE", &cfg.Backend)
	p.strVar("LEDGER_REMOTE_URL", &cfg.RemoteURL)
	p.strVar("LEDGER_ACCOUNTS_PATH", &cfg.AccountsPath)
	p.strVar("LEDGER_TRANSACTIONS_PATH", &cfg.TransactionsPath)
	p.strVar("LEDGER_SEED_FILE", &cfg.SeedFile)
	p.strVar("LEDGER_POSTGRES_DSN", &cfg.PostgresDSN)
	p.durationVar("LEDGER_REQUEST_TIMEOUT", &cfg.RequestTimeout)
	p.floatVar("LEDGER_RATE_LIMIT", &cfg.RateLimit)
	p.intVar("LEDGER_RATE_BURST", &cfg.RateBurst)
	p.uint32Var("LEDGER_BREAKER_FAILURES", &cfg.BreakerFailures)
	p.durationVar("LEDGER_BREAKER_COOLDOWN", &cfg.BreakerCooldown)
	p.strVar("LEDGER_REDIS_ADDR", &cfg.RedisAddr)
	p.strVar("LEDGER_SESSION_KEY", &cfg.SessionKey)
	p.listVar("LEDGER_KAFKA_BROKERS", &cfg.KafkaBrokers)
	p.strVar("LEDGER_KAFKA_TOPIC", &cfg.KafkaTopic)
	p.durationVar("LEDGER_SAFETY_TIMEOUT", &cfg.SafetyTimeout)
	p.boolVar("LEDGER_SERIALIZE_WRITES", &cfg.SerializedWrites)

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendRemote:
		if c.RemoteURL == "" {
			return errors.New("LEDGER_REMOTE_URL is required for the remote store")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("LEDGER_POSTGRES_DSN is required for the postgres store")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store %q: want %s, %s or %s", c.Backend, BackendRemote, BackendPostgres, BackendMemory)
	}
	if c.SafetyTimeout <= 0 {
		return errors.New("LEDGER_SAFETY_TIMEOUT must be positive")
	}
	return nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (p *parser) strVar(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) listVar(key string, dst *[]string) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (p *parser) durationVar(key string, dst *time.Duration) {
	if v, ok := p.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (p *parser) floatVar(key string, dst *float64) {
	if v, ok := p.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (p *parser) intVar(key string, dst *int) {
	if v, ok := p.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) uint32Var(key string, dst *uint32) {
	if v, ok := p.get(key); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = uint32(n)
	}
}

func (p *parser) boolVar(key string, dst *bool) {
	if v, ok := p.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (p *parser) levelVar(key string, dst *zerolog.Level) {
	if v, ok := p.get(key); ok {
		lvl, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = lvl
	}
}
