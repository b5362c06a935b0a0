package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "YUANFANG"

// Load reads configuration from defaults, an optional YAML file, and
// environment variables, in increasing precedence. An empty path falls back
// to ~/.yuanfang/config.yaml when that file exists.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".yuanfang", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.base_url", def.LLM.BaseURL)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("llm.temperature", def.LLM.Temperature)
	v.SetDefault("llm.timeout", def.LLM.Timeout)

	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)

	v.SetDefault("router.confidence_threshold", def.Router.ConfidenceThreshold)

	v.SetDefault("dispatch.tool_timeout", def.Dispatch.ToolTimeout)
	v.SetDefault("dispatch.max_concurrent", def.Dispatch.MaxConcurrent)
	v.SetDefault("dispatch.cache_size", def.Dispatch.CacheSize)
	v.SetDefault("dispatch.cache_ttl", def.Dispatch.CacheTTL)

	v.SetDefault("memory.token_budget", def.Memory.TokenBudget)
	v.SetDefault("memory.item_budget", def.Memory.ItemBudget)
	v.SetDefault("memory.short_term_limit", def.Memory.ShortTermLimit)
	v.SetDefault("memory.recency_half_life", def.Memory.RecencyHalfLife)
	v.SetDefault("memory.recency_weight", def.Memory.RecencyWeight)
	v.SetDefault("memory.relevance_weight", def.Memory.RelevanceWeight)
	v.SetDefault("memory.importance_valence", def.Memory.ImportanceValence)
	v.SetDefault("memory.persist_path", def.Memory.PersistPath)

	v.SetDefault("analytics.task_completion.high", def.Analytics.TaskCompletion.High)
	v.SetDefault("analytics.task_completion.medium", def.Analytics.TaskCompletion.Medium)
	v.SetDefault("analytics.collaboration.high", def.Analytics.Collaboration.High)
	v.SetDefault("analytics.collaboration.medium", def.Analytics.Collaboration.Medium)
	v.SetDefault("analytics.knowledge_sharing.high", def.Analytics.KnowledgeSharing.High)
	v.SetDefault("analytics.knowledge_sharing.medium", def.Analytics.KnowledgeSharing.Medium)
	v.SetDefault("analytics.baseline_windows", def.Analytics.BaselineWindows)

	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.path", def.Store.Path)

	v.SetDefault("speech.enabled", def.Speech.Enabled)
	v.SetDefault("speech.endpoint", def.Speech.Endpoint)
	v.SetDefault("speech.voice", def.Speech.Voice)
}

func validate(cfg Config) error {
	if cfg.Router.ConfidenceThreshold < 0 || cfg.Router.ConfidenceThreshold > 1 {
		return fmt.Errorf("router.confidence_threshold must be in [0,1], got %v", cfg.Router.ConfidenceThreshold)
	}
	if cfg.Memory.TokenBudget <= 0 {
		return fmt.Errorf("memory.token_budget must be positive, got %d", cfg.Memory.TokenBudget)
	}
	if cfg.Memory.ItemBudget <= 0 {
		return fmt.Errorf("memory.item_budget must be positive, got %d", cfg.Memory.ItemBudget)
	}
	if cfg.Dispatch.MaxConcurrent <= 0 {
		return fmt.Errorf("dispatch.max_concurrent must be positive, got %d", cfg.Dispatch.MaxConcurrent)
	}
	for name, th := range map[string]MetricThresholds{
		"task_completion":   cfg.Analytics.TaskCompletion,
		"collaboration":     cfg.Analytics.Collaboration,
		"knowledge_sharing": cfg.Analytics.KnowledgeSharing,
	} {
		if th.High > th.Medium {
			return fmt.Errorf("analytics.%s: high floor %v must not exceed medium floor %v", name, th.High, th.Medium)
		}
	}
	switch cfg.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite or memory, got %q", cfg.Store.Driver)
	}
	return nil
}
