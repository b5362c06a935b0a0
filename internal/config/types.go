package config

import "time"

const (
	DefaultLLMProvider = "openai"
	DefaultLLMModel    = "gpt-4o-mini"
	DefaultLLMBaseURL  = "https://api.openai.com/v1"
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7

	DefaultHTTPHost = "0.0.0.0"
	DefaultHTTPPort = 8001

	DefaultToolTimeout       = 15 * time.Second
	DefaultToolMaxConcurrent = 4
	DefaultToolCacheSize     = 128
	DefaultToolCacheTTL      = 5 * time.Minute

	DefaultConfidenceThreshold = 0.5

	DefaultContextTokenBudget = 2000
	DefaultContextItemBudget  = 12
	DefaultShortTermLimit     = 50
	DefaultRecencyHalfLife    = 6 * time.Hour
	DefaultRecencyWeight      = 0.4
	DefaultRelevanceWeight    = 0.6
	DefaultImportanceValence  = 0.8

	DefaultGenerationTimeout = 20 * time.Second
)

// LLMConfig configures the language-generation provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServerConfig configures the HTTP/WebSocket transport.
type ServerConfig struct {
	Host  string `mapstructure:"host" yaml:"host"`
	Port  int    `mapstructure:"port" yaml:"port"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

// RouterConfig configures intent resolution.
type RouterConfig struct {
	// ConfidenceThreshold is the minimum keyword-match score a tool must
	// reach before the plan skips the classifier fallback.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
}

// DispatchConfig configures tool execution.
type DispatchConfig struct {
	ToolTimeout   time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	CacheSize     int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// MemoryConfig configures context construction and promotion.
type MemoryConfig struct {
	TokenBudget     int           `mapstructure:"token_budget" yaml:"token_budget"`
	ItemBudget      int           `mapstructure:"item_budget" yaml:"item_budget"`
	ShortTermLimit  int           `mapstructure:"short_term_limit" yaml:"short_term_limit"`
	RecencyHalfLife time.Duration `mapstructure:"recency_half_life" yaml:"recency_half_life"`
	RecencyWeight   float64       `mapstructure:"recency_weight" yaml:"recency_weight"`
	RelevanceWeight float64       `mapstructure:"relevance_weight" yaml:"relevance_weight"`
	// ImportanceValence promotes a turn to durable storage when the
	// absolute emotion valence reaches this value.
	ImportanceValence float64 `mapstructure:"importance_valence" yaml:"importance_valence"`
	PersistPath       string  `mapstructure:"persist_path" yaml:"persist_path"`
}

// MetricThresholds bucket a single metric into risk severities. Values are
// floors: a metric below Medium is medium risk, below High is high risk.
type MetricThresholds struct {
	High   float64 `mapstructure:"high" yaml:"high"`
	Medium float64 `mapstructure:"medium" yaml:"medium"`
}

// AnalyticsConfig configures the risk & metrics engine.
type AnalyticsConfig struct {
	TaskCompletion   MetricThresholds `mapstructure:"task_completion" yaml:"task_completion"`
	Collaboration    MetricThresholds `mapstructure:"collaboration" yaml:"collaboration"`
	KnowledgeSharing MetricThresholds `mapstructure:"knowledge_sharing" yaml:"knowledge_sharing"`
	// BaselineWindows is how many preceding windows feed the rolling
	// knowledge-sharing baseline.
	BaselineWindows int `mapstructure:"baseline_windows" yaml:"baseline_windows"`
}

// StoreConfig configures entity persistence.
type StoreConfig struct {
	// Driver selects the backend: "sqlite" or "memory".
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// SpeechConfig configures the optional text-to-speech dispatch.
type SpeechConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Voice    string `mapstructure:"voice" yaml:"voice"`
}

// Config is the root configuration of the assistant.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Router    RouterConfig    `mapstructure:"router" yaml:"router"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" yaml:"dispatch"`
	Memory    MemoryConfig    `mapstructure:"memory" yaml:"memory"`
	Analytics AnalyticsConfig `mapstructure:"analytics" yaml:"analytics"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Speech    SpeechConfig    `mapstructure:"speech" yaml:"speech"`
}

// Default returns the built-in configuration. Thresholds mirror the product
// defaults: completion rate of 0.8 is healthy, below 0.6 is high risk;
// collaboration and knowledge-sharing follow the same shape on their own
// scales.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    DefaultLLMProvider,
			Model:       DefaultLLMModel,
			BaseURL:     DefaultLLMBaseURL,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			Timeout:     DefaultGenerationTimeout,
		},
		Server: ServerConfig{
			Host: DefaultHTTPHost,
			Port: DefaultHTTPPort,
		},
		Router: RouterConfig{
			ConfidenceThreshold: DefaultConfidenceThreshold,
		},
		Dispatch: DispatchConfig{
			ToolTimeout:   DefaultToolTimeout,
			MaxConcurrent: DefaultToolMaxConcurrent,
			CacheSize:     DefaultToolCacheSize,
			CacheTTL:      DefaultToolCacheTTL,
		},
		Memory: MemoryConfig{
			TokenBudget:       DefaultContextTokenBudget,
			ItemBudget:        DefaultContextItemBudget,
			ShortTermLimit:    DefaultShortTermLimit,
			RecencyHalfLife:   DefaultRecencyHalfLife,
			RecencyWeight:     DefaultRecencyWeight,
			RelevanceWeight:   DefaultRelevanceWeight,
			ImportanceValence: DefaultImportanceValence,
		},
		Analytics: AnalyticsConfig{
			TaskCompletion:   MetricThresholds{High: 0.6, Medium: 0.8},
			Collaboration:    MetricThresholds{High: 0.3, Medium: 0.5},
			KnowledgeSharing: MetricThresholds{High: 0.5, Medium: 0.8},
			BaselineWindows:  4,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "yuanfang.db",
		},
		Speech: SpeechConfig{
			Voice: "zh-CN-YunxiNeural",
		},
	}
}
