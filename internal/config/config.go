package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

var (
	ErrIntervalTooSmall = errors.New("interval below minimum")
	ErrInvalidFactor    = errors.New("limit increase factor must be greater than 1")
	ErrInvalidReplicas  = errors.New("replica bounds invalid")
)

type Config struct {
	KubeConfig string
	KubeMaster string
	LogLevel   string
	LogFormat  string

	HTTPPort    string
	MetricsPort string

	Interval           time.Duration
	Namespaces         []string
	ExcludedNamespaces []string
	DryRun             bool
	Cooldown           time.Duration
	MaxActionsPerHour  int
	RestartThreshold   int32
	PendingGrace       time.Duration
	LogTailLines       int64

	OracleAPIKey           string
	OracleModel            string
	OracleTimeout          time.Duration
	OracleMaxEvidenceBytes int

	LimitIncreaseFactor float64
	MemoryLimitCeiling  resource.Quantity
	CPULimitCeiling     resource.Quantity
	ScaleStep           int32
	MinReplicas         int32
	MaxReplicas         int32

	MaintenanceSchedule string
	MaintenanceDuration time.Duration
	MaintenanceTZ       string

	IncidentLogPath string
	DatabaseURL     string
}

// Load reads the configuration from the environment, applies the optional
// policy file, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		KubeConfig: getEnvWithFallback(envKeyKubeConfig, envKeyKubeConfigFallback),
		KubeMaster: getEnvWithFallback(envKeyKubeMaster, envKeyKubeMasterFallback),
		LogLevel:   getEnvOrDefault(envKeyLogLevel, "info"),
		LogFormat:  getEnvOrDefault(envKeyLogFormat, "json"),

		HTTPPort:    getEnvOrDefault(envKeyHTTPPort, "8080"),
		MetricsPort: getEnvOrDefault(envKeyMetricsPort, "9090"),

		Namespaces:         splitList(getEnvOrDefault(envKeyNamespaces, "default")),
		ExcludedNamespaces: splitList(getEnvOrDefault(envKeyExcludedNamespaces, "kube-system,kube-public,kube-node-lease")),
		DryRun:             getEnvBool(envKeyDryRun, false),

		OracleAPIKey: os.Getenv(envKeyOracleAPIKey),
		OracleModel:  getEnvOrDefault(envKeyOracleModel, "gpt-4o-mini"),

		MaintenanceSchedule: os.Getenv(envKeyMaintenanceSchedule),
		MaintenanceTZ:       getEnvOrDefault(envKeyMaintenanceTZ, "UTC"),

		IncidentLogPath: getEnvOrDefault(envKeyIncidentLog, "incidents.jsonl"),
		DatabaseURL:     os.Getenv(envKeyDatabaseURL),
	}

	var err error

	if cfg.Interval, err = getEnvDuration(envKeyInterval, 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.Cooldown, err = getEnvDuration(envKeyCooldown, 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.PendingGrace, err = getEnvDuration(envKeyPendingGrace, 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.OracleTimeout, err = getEnvDuration(envKeyOracleTimeout, 20*time.Second); err != nil {
		return nil, err
	}

	if cfg.MaintenanceDuration, err = getEnvDuration(envKeyMaintenanceDuration, time.Hour); err != nil {
		return nil, err
	}

	if cfg.MaxActionsPerHour, err = getEnvInt(envKeyMaxActionsPerHour, 20); err != nil {
		return nil, err
	}

	if cfg.OracleMaxEvidenceBytes, err = getEnvInt(envKeyOracleMaxEvidenceBytes, 8192); err != nil {
		return nil, err
	}

	restartThreshold, err := getEnvInt(envKeyRestartThreshold, 3)
	if err != nil {
		return nil, err
	}

	cfg.RestartThreshold = int32(restartThreshold)

	logTailLines, err := getEnvInt(envKeyLogTailLines, 50)
	if err != nil {
		return nil, err
	}

	cfg.LogTailLines = int64(logTailLines)

	if cfg.LimitIncreaseFactor, err = getEnvFloat(envKeyLimitIncreaseFactor, 1.5); err != nil {
		return nil, err
	}

	if cfg.MemoryLimitCeiling, err = getEnvQuantity(envKeyMemoryLimitCeiling, "4Gi"); err != nil {
		return nil, err
	}

	if cfg.CPULimitCeiling, err = getEnvQuantity(envKeyCPULimitCeiling, "4"); err != nil {
		return nil, err
	}

	if cfg.ScaleStep, err = getEnvInt32(envKeyScaleStep, 1); err != nil {
		return nil, err
	}

	if cfg.MinReplicas, err = getEnvInt32(envKeyMinReplicas, 1); err != nil {
		return nil, err
	}

	if cfg.MaxReplicas, err = getEnvInt32(envKeyMaxReplicas, 10); err != nil {
		return nil, err
	}

	if policyPath := os.Getenv(envKeyPolicyFile); policyPath != "" {
		if err := applyPolicyFile(cfg, policyPath); err != nil {
			return nil, fmt.Errorf("apply policy file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Interval < envMinInterval {
		return fmt.Errorf("%w: %s < %s", ErrIntervalTooSmall, c.Interval, envMinInterval)
	}

	if c.LimitIncreaseFactor <= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidFactor, c.LimitIncreaseFactor)
	}

	if c.MinReplicas < 0 || c.MaxReplicas < c.MinReplicas {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidReplicas, c.MinReplicas, c.MaxReplicas)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvWithFallback(key, fallbackKey string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return os.Getenv(fallbackKey)
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvInt32(key string, defaultValue int32) (int32, error) {
	parsed, err := getEnvInt(key, int(defaultValue))
	if err != nil {
		return 0, err
	}

	return int32(parsed), nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvQuantity(key, defaultValue string) (resource.Quantity, error) {
	value := getEnvOrDefault(key, defaultValue)

	parsed, err := resource.ParseQuantity(value)
	if err != nil {
		return resource.Quantity{}, fmt.Errorf("parse %s: %w", key, err)
	}

	return parsed, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
