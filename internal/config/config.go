package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults for the persisted-artifact naming scheme. The gate, quarantine
// store, and report writer must agree on these for the no-redetection
// invariant to hold.
const (
	DefaultQuarantineSuffix = ".__quarantined__"
	DefaultReportPrefix     = "REMEDIATION_"
)

// DefaultAllowedExtensions is the scan allow-list. Files outside it are never
// decoded.
var DefaultAllowedExtensions = []string{
	".py", ".js", ".ts", ".txt", ".md", ".json", ".csv",
	".env", ".sh", ".yml", ".yaml", ".pem", ".key",
}

// Config holds all startup-time settings for the sentinel process.
type Config struct {
	WatchRoot          string
	HTTPAddr           string
	NATSURL            string
	NATSSubjectPrefix  string
	OracleURL          string
	SignaturesFile     string
	ScanWindowBytes    int
	AggregateThreshold int
	CooldownMs         int
	QuarantineSuffix   string
	ReportPrefix       string
	AllowedExtensions  []string
	Quiet              bool
}

// Load reads configuration from the environment with defaults. The watched
// root comes from the command line and is validated separately.
func Load(watchRoot string) (*Config, error) {
	cfg := &Config{
		WatchRoot:          watchRoot,
		HTTPAddr:           getEnv("SENTINEL_HTTP_ADDR", ":8086"),
		NATSURL:            getEnv("SENTINEL_NATS_URL", ""),
		NATSSubjectPrefix:  getEnv("SENTINEL_NATS_SUBJECT_PREFIX", "sentinel"),
		OracleURL:          getEnv("SENTINEL_ORACLE_URL", ""),
		SignaturesFile:     getEnv("SENTINEL_SIGNATURES_FILE", ""),
		ScanWindowBytes:    getEnvInt("SENTINEL_SCAN_WINDOW", 20000),
		AggregateThreshold: getEnvInt("SENTINEL_AGGREGATE_THRESHOLD", 3),
		CooldownMs:         getEnvInt("SENTINEL_COOLDOWN_MS", 2000),
		QuarantineSuffix:   getEnv("SENTINEL_QUARANTINE_SUFFIX", DefaultQuarantineSuffix),
		ReportPrefix:       getEnv("SENTINEL_REPORT_PREFIX", DefaultReportPrefix),
		AllowedExtensions:  DefaultAllowedExtensions,
		Quiet:              getEnvBool("SENTINEL_QUIET", false),
	}

	if exts := getEnv("SENTINEL_ALLOWED_EXTENSIONS", ""); exts != "" {
		cfg.AllowedExtensions = splitExtensions(exts)
	}

	if cfg.ScanWindowBytes <= 0 {
		return nil, fmt.Errorf("scan window must be positive, got %d", cfg.ScanWindowBytes)
	}
	if cfg.AggregateThreshold < 1 {
		return nil, fmt.Errorf("aggregate threshold must be at least 1, got %d", cfg.AggregateThreshold)
	}
	if cfg.QuarantineSuffix == "" || cfg.ReportPrefix == "" {
		return nil, fmt.Errorf("quarantine suffix and report prefix must not be empty")
	}

	return cfg, nil
}

func splitExtensions(raw string) []string {
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, strings.ToLower(part))
	}
	return exts
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
