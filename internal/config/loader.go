package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Metadata contains provenance details for loaded configuration: where each
// field's value came from (default, file, environment, override), for
// diagnostics.
type Metadata struct {
	sources  map[string]ValueSource
	loadedAt time.Time
}

// Source returns the origin for the given configuration field name.
func (m Metadata) Source(field string) ValueSource {
	if m.sources == nil {
		return SourceDefault
	}
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// LoadedAt returns when the configuration was constructed.
func (m Metadata) LoadedAt() time.Time { return m.loadedAt }

// Overrides conveys caller-specified values (e.g. CLI flags) that win over
// file and environment sources.
type Overrides struct {
	MaxAgents       *int
	MaxDepth        *int
	LogLevel        *string
	HTTPBindAddr    *string
	TelemetryEnable *bool
	TracingExporter *string
}

// Load builds a RuntimeConfig by layering, in increasing priority: package
// defaults, an optional YAML file (name "arachnid", searched in cfgPaths),
// environment variables prefixed ARACHNID_, then explicit overrides. The
// environment layer covers ARACHNID_LOG_LEVEL and ARACHNID_HTTP_BIND_ADDR;
// other keys take an ARACHNID_ variable only when a config file was found,
// and are then recorded as coming from the file.
func Load(cfgPaths []string, overrides Overrides) (RuntimeConfig, Metadata, error) {
	cfg := Defaults()
	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}

	v := viper.New()
	v.SetConfigName("arachnid")
	v.SetConfigType("yaml")
	for _, p := range cfgPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("ARACHNID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err == nil {
		applyFileFields(v, &cfg, meta.sources)
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return cfg, meta, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(v, &cfg, meta.sources)
	applyOverrides(&cfg, overrides, meta.sources)

	if err := cfg.Validate(); err != nil {
		return cfg, meta, err
	}
	return cfg, meta, nil
}

// applyFileFields copies each key present in the loaded file into cfg,
// avoiding viper's mapstructure-based Unmarshal (whose default field matching
// does not tolerate the struct's snake_case yaml tags) in favor of explicit,
// typed lookups per field.
func applyFileFields(v *viper.Viper, cfg *RuntimeConfig, sources map[string]ValueSource) {
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
			sources[key] = SourceFile
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
			sources[key] = SourceFile
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = time.Duration(v.GetInt64(key)) * time.Second
			sources[key] = SourceFile
		}
	}
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
			sources[key] = SourceFile
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
			sources[key] = SourceFile
		}
	}

	setFloat("attenuation_factor", &cfg.AttenuationFactor)
	setFloat("min_amplitude", &cfg.MinAmplitude)
	setFloat("default_threshold", &cfg.DefaultThreshold)
	setInt("max_agents", &cfg.MaxAgents)
	setInt("max_depth", &cfg.MaxDepth)
	setDuration("idle_timeout", &cfg.IdleTimeout)
	setDuration("dormant_ttl", &cfg.DormantTTL)
	setFloat("tuning_drift_alpha", &cfg.TuningDriftAlpha)
	setInt("tuning_drift_window", &cfg.TuningDriftWindow)
	setFloat("health_boost_confirm", &cfg.HealthBoostConfirm)
	setFloat("health_penalty_challenge", &cfg.HealthPenaltyChallenge)
	setInt("probation_period", &cfg.ProbationPeriod)
	setFloat("quarantine_threshold", &cfg.QuarantineThreshold)
	setFloat("isolation_threshold", &cfg.IsolationThreshold)
	setFloat("winddown_threshold", &cfg.WinddownThreshold)
	setFloat("recovery_threshold", &cfg.RecoveryThreshold)
	setDuration("max_duration", &cfg.MaxDuration)
	setInt("validation_budget_divisor", &cfg.ValidationBudgetDivisor)
	setInt("tuning_dimension", &cfg.TuningDimension)
	setFloat("dedup_similarity_ratio", &cfg.DedupSimilarityRatio)
	setFloat("lineage_reuse_cosine", &cfg.LineageReuseCosine)
	setInt("max_prompt_tokens", &cfg.MaxPromptTokens)
	setString("log_level", &cfg.LogLevel)
	setString("http_bind_addr", &cfg.HTTPBindAddr)
	setBool("telemetry_enable", &cfg.TelemetryEnable)
	setString("tracing_exporter", &cfg.TracingExporter)
}

func applyEnvOverrides(v *viper.Viper, cfg *RuntimeConfig, sources map[string]ValueSource) {
	if val, ok := os.LookupEnv("ARACHNID_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		sources["log_level"] = SourceEnv
	}
	if val, ok := os.LookupEnv("ARACHNID_HTTP_BIND_ADDR"); ok {
		cfg.HTTPBindAddr = val
		sources["http_bind_addr"] = SourceEnv
	}
}

func applyOverrides(cfg *RuntimeConfig, o Overrides, sources map[string]ValueSource) {
	if o.MaxAgents != nil {
		cfg.MaxAgents = *o.MaxAgents
		sources["max_agents"] = SourceOverride
	}
	if o.MaxDepth != nil {
		cfg.MaxDepth = *o.MaxDepth
		sources["max_depth"] = SourceOverride
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
		sources["log_level"] = SourceOverride
	}
	if o.HTTPBindAddr != nil {
		cfg.HTTPBindAddr = *o.HTTPBindAddr
		sources["http_bind_addr"] = SourceOverride
	}
	if o.TelemetryEnable != nil {
		cfg.TelemetryEnable = *o.TelemetryEnable
		sources["telemetry_enable"] = SourceOverride
	}
	if o.TracingExporter != nil {
		cfg.TracingExporter = *o.TracingExporter
		sources["tracing_exporter"] = SourceOverride
	}
}
