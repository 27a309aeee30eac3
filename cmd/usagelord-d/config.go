package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr         = "127.0.0.1:8095"
	defaultPollInterval = 5 * time.Minute
	defaultProbeTimeout = 30 * time.Second
	defaultProviders    = "codex,claude"
)

type Config struct {
	DBPath       string
	Addr         string
	PollInterval time.Duration
	ProbeTimeout time.Duration
	Providers    []string
	RedisAddr    string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "usagelord.db")

	dbPath := envOrDefault("USAGELORD_DB_PATH", defaultDBPath)
	addr := addrFromEnv(defaultAddr)
	providers := envOrDefault("USAGELORD_PROVIDERS", defaultProviders)
	redisAddr := os.Getenv("USAGELORD_REDIS_ADDR")

	pollInterval := defaultPollInterval
	if v := os.Getenv("USAGELORD_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid USAGELORD_POLL_INTERVAL: %w", err)
		}
		pollInterval = parsed
	}
	probeTimeout := defaultProbeTimeout
	if v := os.Getenv("USAGELORD_PROBE_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid USAGELORD_PROBE_TIMEOUT: %w", err)
		}
		probeTimeout = parsed
	}

	flagSet := flag.NewFlagSet("usagelord-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagPollInterval := flagSet.String("poll-interval", pollInterval.String(), "provider probe interval")
	flagProbeTimeout := flagSet.String("probe-timeout", probeTimeout.String(), "timeout for one provider probe")
	flagProviders := flagSet.String("providers", providers, "comma-separated provider list")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address for snapshot mirroring (empty disables)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	pollIntervalParsed, err := time.ParseDuration(*flagPollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	probeTimeoutParsed, err := time.ParseDuration(*flagProbeTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid probe timeout: %w", err)
	}

	config := Config{
		DBPath:       resolvePath(*flagDB, cwd),
		Addr:         strings.TrimSpace(*flagAddr),
		PollInterval: pollIntervalParsed,
		ProbeTimeout: probeTimeoutParsed,
		Providers:    splitProviders(*flagProviders),
		RedisAddr:    strings.TrimSpace(*flagRedis),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if len(config.Providers) == 0 {
		return Config{}, errors.New("providers cannot be empty")
	}
	if config.PollInterval <= 0 {
		return Config{}, errors.New("poll interval must be positive")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("USAGELORD_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("USAGELORD_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func splitProviders(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
