package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

// policyFile is the optional operator-provided safety policy. Every field is
// a pointer so an absent key leaves the environment-derived value untouched.
type policyFile struct {
	DryRun             *bool    `yaml:"dry_run"`
	ExcludedNamespaces []string `yaml:"excluded_namespaces"`
	Cooldown           *string  `yaml:"cooldown"`
	MaxActionsPerHour  *int     `yaml:"max_actions_per_hour"`
	MemoryLimitCeiling *string  `yaml:"memory_limit_ceiling"`
	CPULimitCeiling    *string  `yaml:"cpu_limit_ceiling"`
	MinReplicas        *int32   `yaml:"min_replicas"`
	MaxReplicas        *int32   `yaml:"max_replicas"`
}

func applyPolicyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var policy policyFile
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}

	if policy.DryRun != nil {
		cfg.DryRun = *policy.DryRun
	}

	if policy.ExcludedNamespaces != nil {
		cfg.ExcludedNamespaces = policy.ExcludedNamespaces
	}

	if policy.Cooldown != nil {
		cooldown, err := time.ParseDuration(*policy.Cooldown)
		if err != nil {
			return fmt.Errorf("parse cooldown: %w", err)
		}

		cfg.Cooldown = cooldown
	}

	if policy.MaxActionsPerHour != nil {
		cfg.MaxActionsPerHour = *policy.MaxActionsPerHour
	}

	if policy.MemoryLimitCeiling != nil {
		ceiling, err := resource.ParseQuantity(*policy.MemoryLimitCeiling)
		if err != nil {
			return fmt.Errorf("parse memory_limit_ceiling: %w", err)
		}

		cfg.MemoryLimitCeiling = ceiling
	}

	if policy.CPULimitCeiling != nil {
		ceiling, err := resource.ParseQuantity(*policy.CPULimitCeiling)
		if err != nil {
			return fmt.Errorf("parse cpu_limit_ceiling: %w", err)
		}

		cfg.CPULimitCeiling = ceiling
	}

	if policy.MinReplicas != nil {
		cfg.MinReplicas = *policy.MinReplicas
	}

	if policy.MaxReplicas != nil {
		cfg.MaxReplicas = *policy.MaxReplicas
	}

	return nil
}
