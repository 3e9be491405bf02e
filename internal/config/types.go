// Package config defines the coordination runtime's configuration surface
// and the layered loader that fills it in: defaults, then a YAML
// file, then environment variables, then explicit overrides.
package config

import "time"

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

// Defaults mirror the documented configuration baseline exactly.
const (
	DefaultAttenuationFactor    = 0.8
	DefaultMinAmplitude         = 0.1
	DefaultThreshold            = 0.6
	DefaultMaxAgents            = 100
	DefaultMaxDepth             = 10
	DefaultIdleTimeoutSecs      = 30
	DefaultDormantTTLSecs       = 600
	DefaultTuningDriftAlpha     = 0.8
	DefaultTuningDriftWindow    = 15
	DefaultHealthBoostConfirm   = 0.05
	DefaultHealthPenaltyChallg  = 0.15
	DefaultProbationPeriod      = 5
	DefaultQuarantineThreshold  = 0.6
	DefaultIsolationThreshold   = 0.4
	DefaultWinddownThreshold    = 0.2
	DefaultRecoveryThreshold    = 0.65
	DefaultMaxDurationSecs      = 3600
	DefaultExecutionTimeoutSecs = 120
	DefaultValidationBudgetDiv  = 4 // ceil(active_agents / this)
	DefaultTuningDimension      = 16
	DefaultDedupSimilarityRatio = 0.85 // near-duplicate output threshold (health.go)
	DefaultLineageReuseCosine   = 0.75
	DefaultMaxPromptTokens      = 4096
)

// RuntimeConfig captures the coordination runtime's user-configurable
// settings, snapshotted per-web at creation time.
type RuntimeConfig struct {
	AttenuationFactor        float64       `json:"attenuation_factor" yaml:"attenuation_factor"`
	MinAmplitude             float64       `json:"min_amplitude" yaml:"min_amplitude"`
	DefaultThreshold         float64       `json:"default_threshold" yaml:"default_threshold"`
	MaxAgents                int           `json:"max_agents" yaml:"max_agents"`
	MaxDepth                 int           `json:"max_depth" yaml:"max_depth"`
	IdleTimeout              time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	DormantTTL               time.Duration `json:"dormant_ttl" yaml:"dormant_ttl"`
	TuningDriftAlpha         float64       `json:"tuning_drift_alpha" yaml:"tuning_drift_alpha"`
	TuningDriftWindow        int           `json:"tuning_drift_window" yaml:"tuning_drift_window"`
	HealthBoostConfirm       float64       `json:"health_boost_confirm" yaml:"health_boost_confirm"`
	HealthPenaltyChallenge   float64       `json:"health_penalty_challenge" yaml:"health_penalty_challenge"`
	ProbationPeriod          int           `json:"probation_period" yaml:"probation_period"`
	QuarantineThreshold      float64       `json:"quarantine_threshold" yaml:"quarantine_threshold"`
	IsolationThreshold       float64       `json:"isolation_threshold" yaml:"isolation_threshold"`
	WinddownThreshold        float64       `json:"winddown_threshold" yaml:"winddown_threshold"`
	RecoveryThreshold        float64       `json:"recovery_threshold" yaml:"recovery_threshold"`
	MaxDuration              time.Duration `json:"max_duration" yaml:"max_duration"`
	ExecutionTimeout         time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	ValidationBudgetDivisor  int           `json:"validation_budget_divisor" yaml:"validation_budget_divisor"`
	TuningDimension          int           `json:"tuning_dimension" yaml:"tuning_dimension"`
	DedupSimilarityRatio     float64       `json:"dedup_similarity_ratio" yaml:"dedup_similarity_ratio"`
	LineageReuseCosine       float64       `json:"lineage_reuse_cosine" yaml:"lineage_reuse_cosine"`
	MaxPromptTokens          int           `json:"max_prompt_tokens" yaml:"max_prompt_tokens"`

	// Operational knobs (ambient stack, not part of the tuned defaults but required to
	// run the process).
	LogLevel        string `json:"log_level" yaml:"log_level"`
	HTTPBindAddr    string `json:"http_bind_addr" yaml:"http_bind_addr"`
	TelemetryEnable bool   `json:"telemetry_enable" yaml:"telemetry_enable"`
	TracingExporter string `json:"tracing_exporter" yaml:"tracing_exporter"` // "otlp" | "zipkin" | ""
}

// Defaults returns a RuntimeConfig populated with its documented defaults.
func Defaults() RuntimeConfig {
	return RuntimeConfig{
		AttenuationFactor:       DefaultAttenuationFactor,
		MinAmplitude:            DefaultMinAmplitude,
		DefaultThreshold:        DefaultThreshold,
		MaxAgents:               DefaultMaxAgents,
		MaxDepth:                DefaultMaxDepth,
		IdleTimeout:             DefaultIdleTimeoutSecs * time.Second,
		DormantTTL:              DefaultDormantTTLSecs * time.Second,
		TuningDriftAlpha:        DefaultTuningDriftAlpha,
		TuningDriftWindow:       DefaultTuningDriftWindow,
		HealthBoostConfirm:      DefaultHealthBoostConfirm,
		HealthPenaltyChallenge:  DefaultHealthPenaltyChallg,
		ProbationPeriod:         DefaultProbationPeriod,
		QuarantineThreshold:     DefaultQuarantineThreshold,
		IsolationThreshold:      DefaultIsolationThreshold,
		WinddownThreshold:       DefaultWinddownThreshold,
		RecoveryThreshold:       DefaultRecoveryThreshold,
		MaxDuration:             DefaultMaxDurationSecs * time.Second,
		ExecutionTimeout:        DefaultExecutionTimeoutSecs * time.Second,
		ValidationBudgetDivisor: DefaultValidationBudgetDiv,
		TuningDimension:         DefaultTuningDimension,
		DedupSimilarityRatio:    DefaultDedupSimilarityRatio,
		LineageReuseCosine:      DefaultLineageReuseCosine,
		MaxPromptTokens:         DefaultMaxPromptTokens,
		LogLevel:                "info",
		HTTPBindAddr:            "127.0.0.1:8420",
		TelemetryEnable:         false,
		TracingExporter:         "",
	}
}

// Validate enforces the invariants that make a config ConfigurationInvalid.
func (c RuntimeConfig) Validate() error {
	switch {
	case c.DefaultThreshold <= 0 || c.DefaultThreshold >= 1:
		return errConfig("default_threshold must be in (0,1)")
	case c.QuarantineThreshold <= c.IsolationThreshold:
		return errConfig("quarantine_threshold must exceed isolation_threshold")
	case c.IsolationThreshold <= c.WinddownThreshold:
		return errConfig("isolation_threshold must exceed winddown_threshold")
	case c.RecoveryThreshold <= 0 || c.RecoveryThreshold > 1:
		return errConfig("recovery_threshold must be in (0,1]")
	case c.MaxAgents <= 0:
		return errConfig("max_agents must be positive")
	case c.MaxDepth <= 0:
		return errConfig("max_depth must be positive")
	case c.TuningDimension <= 0:
		return errConfig("tuning_dimension must be positive")
	case c.AttenuationFactor <= 0 || c.AttenuationFactor >= 1:
		return errConfig("attenuation_factor must be in (0,1)")
	case c.MinAmplitude <= 0 || c.MinAmplitude >= 1:
		return errConfig("min_amplitude must be in (0,1)")
	case c.TuningDriftAlpha < 0 || c.TuningDriftAlpha > 1:
		return errConfig("tuning_drift_alpha must be in [0,1]")
	}
	return nil
}
