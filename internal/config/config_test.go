package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsremedy/remedy-controller/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "9090", cfg.MetricsPort)
	require.Equal(t, 30*time.Second, cfg.Interval)
	require.Equal(t, []string{"default"}, cfg.Namespaces)
	require.Equal(t, []string{"kube-system", "kube-public", "kube-node-lease"}, cfg.ExcludedNamespaces)
	require.False(t, cfg.DryRun)
	require.Equal(t, 60*time.Second, cfg.Cooldown)
	require.Equal(t, 20, cfg.MaxActionsPerHour)
	require.Equal(t, int32(3), cfg.RestartThreshold)
	require.Equal(t, 5*time.Minute, cfg.PendingGrace)
	require.Equal(t, int64(50), cfg.LogTailLines)
	require.Equal(t, "gpt-4o-mini", cfg.OracleModel)
	require.Equal(t, 20*time.Second, cfg.OracleTimeout)
	require.Equal(t, 8192, cfg.OracleMaxEvidenceBytes)
	require.InDelta(t, 1.5, cfg.LimitIncreaseFactor, 0.001)
	require.Equal(t, "4Gi", cfg.MemoryLimitCeiling.String())
	require.Equal(t, "4", cfg.CPULimitCeiling.String())
	require.Equal(t, int32(1), cfg.ScaleStep)
	require.Equal(t, int32(1), cfg.MinReplicas)
	require.Equal(t, int32(10), cfg.MaxReplicas)
	require.Equal(t, "incidents.jsonl", cfg.IncidentLogPath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REMEDY_INTERVAL", "45s")
	t.Setenv("REMEDY_NAMESPACES", "payments, checkout ,inventory")
	t.Setenv("REMEDY_DRY_RUN", "true")
	t.Setenv("REMEDY_COOLDOWN", "2m")
	t.Setenv("REMEDY_MAX_ACTIONS_PER_HOUR", "5")
	t.Setenv("REMEDY_MEMORY_LIMIT_CEILING", "8Gi")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, 45*time.Second, cfg.Interval)
	require.Equal(t, []string{"payments", "checkout", "inventory"}, cfg.Namespaces)
	require.True(t, cfg.DryRun)
	require.Equal(t, 2*time.Minute, cfg.Cooldown)
	require.Equal(t, 5, cfg.MaxActionsPerHour)
	require.Equal(t, "8Gi", cfg.MemoryLimitCeiling.String())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		giveKey string
		giveVal string
		wantErr error
	}{
		{
			name:    "interval below minimum",
			giveKey: "REMEDY_INTERVAL",
			giveVal: "1s",
			wantErr: config.ErrIntervalTooSmall,
		},
		{
			name:    "factor not above one",
			giveKey: "REMEDY_LIMIT_INCREASE_FACTOR",
			giveVal: "1.0",
			wantErr: config.ErrInvalidFactor,
		},
		{
			name:    "replica bounds inverted",
			giveKey: "REMEDY_MIN_REPLICAS",
			giveVal: "20",
			wantErr: config.ErrInvalidReplicas,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.giveKey, tt.giveVal)

			_, err := config.Load()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MalformedValues(t *testing.T) {
	tests := []struct {
		name    string
		giveKey string
		giveVal string
	}{
		{name: "bad duration", giveKey: "REMEDY_COOLDOWN", giveVal: "soon"},
		{name: "bad int", giveKey: "REMEDY_MAX_ACTIONS_PER_HOUR", giveVal: "many"},
		{name: "bad float", giveKey: "REMEDY_LIMIT_INCREASE_FACTOR", giveVal: "x1.5"},
		{name: "bad quantity", giveKey: "REMEDY_MEMORY_LIMIT_CEILING", giveVal: "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.giveKey, tt.giveVal)

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_PolicyFile(t *testing.T) {
	policy := `
dry_run: true
excluded_namespaces:
  - kube-system
  - monitoring
cooldown: 5m
max_actions_per_hour: 2
memory_limit_ceiling: 2Gi
min_replicas: 2
max_replicas: 6
`

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o644))

	t.Setenv("REMEDY_POLICY_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.True(t, cfg.DryRun)
	require.Equal(t, []string{"kube-system", "monitoring"}, cfg.ExcludedNamespaces)
	require.Equal(t, 5*time.Minute, cfg.Cooldown)
	require.Equal(t, 2, cfg.MaxActionsPerHour)
	require.Equal(t, "2Gi", cfg.MemoryLimitCeiling.String())
	require.Equal(t, int32(2), cfg.MinReplicas)
	require.Equal(t, int32(6), cfg.MaxReplicas)
}

func TestLoad_PolicyFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dry_run: true\n"), 0o644))

	t.Setenv("REMEDY_POLICY_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Only the named key is overridden; the rest keep their defaults.
	require.True(t, cfg.DryRun)
	require.Equal(t, 60*time.Second, cfg.Cooldown)
	require.Equal(t, 20, cfg.MaxActionsPerHour)
}

func TestLoad_PolicyFileMissing(t *testing.T) {
	t.Setenv("REMEDY_POLICY_FILE", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	_, err := config.Load()
	require.Error(t, err)
}
