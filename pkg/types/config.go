package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citeagent/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// IndexConfig holds settings for the paper index client.
type IndexConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the index: "semantic_scholar" (default) or "openalex".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// BaseURL overrides the index API root (e.g. "https://api.semanticscholar.org/graph/v1").
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey is an optional Semantic Scholar API key for higher rate limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Email is the contact address sent to OpenAlex for the polite pool.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// MinCitations drops candidates cited fewer times (default 10).
	MinCitations int `json:"min_citations" yaml:"min_citations" mapstructure:"min_citations"`

	// DefaultLimit is the result limit when a caller passes none (default 5).
	DefaultLimit int `json:"default_limit" yaml:"default_limit" mapstructure:"default_limit"`

	// MaxAttempts is the total number of request attempts (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// RetryDelay is the base backoff between attempts (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`
}

// Model providers understood by the llm package.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderUpstage   = "upstage"
	ProviderAnthropic = "anthropic"
)

// ModelConfig holds settings for the tool-calling model backend.
type ModelConfig struct {
	// Provider selects the adapter: gemini, openai, upstage, or anthropic.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the provider model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint. Upstage defaults to
	// https://api.upstage.ai/v1.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is the sampling temperature (default 0.3).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens bounds each model turn (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig holds settings for the citation orchestrator.
type AgentConfig struct {
	// MaxIterations bounds plan/execute round trips (default 10).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`
}

// Channel kinds understood by the editor package.
const (
	ChannelCDP    = "cdp"
	ChannelSafari = "safari"
)

// ChannelConfig holds settings for the remote editor channel and the
// chunked synchronization protocol.
type ChannelConfig struct {
	// Kind selects the transport: "cdp" (Chrome DevTools) or "safari".
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	// DebugURL is the Chrome remote debugging endpoint (default http://127.0.0.1:9222).
	DebugURL string `json:"debug_url" yaml:"debug_url" mapstructure:"debug_url"`

	// TargetMatch selects the browser tab whose URL contains it (default "overleaf.com").
	TargetMatch string `json:"target_match" yaml:"target_match" mapstructure:"target_match"`

	// CommandTimeout bounds a single remote command (default 10s).
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout" mapstructure:"command_timeout"`

	// ChunkSize is the maximum number of characters per append command (default 2000).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`

	// PollInterval is the delay between readiness probes (default 500ms).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// PollAttempts bounds readiness probes (default 10).
	PollAttempts int `json:"poll_attempts" yaml:"poll_attempts" mapstructure:"poll_attempts"`

	// BibFile is the bibliography buffer name (default "mybib.bib").
	BibFile string `json:"bib_file" yaml:"bib_file" mapstructure:"bib_file"`

	// AlternateBibFiles are tried in order when BibFile cannot be selected.
	AlternateBibFiles []string `json:"alternate_bib_files" yaml:"alternate_bib_files" mapstructure:"alternate_bib_files"`

	// MainFile is the buffer reselected after bibliography updates (default "main.tex").
	MainFile string `json:"main_file" yaml:"main_file" mapstructure:"main_file"`
}

// HistoryConfig holds settings for the run archive.
type HistoryConfig struct {
	// Enabled controls whether finished runs are archived.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file (default .citeagent/history.db).
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups all component configurations.
type Config struct {
	Index   IndexConfig   `json:"index" yaml:"index" mapstructure:"index"`
	Model   ModelConfig   `json:"model" yaml:"model" mapstructure:"model"`
	Agent   AgentConfig   `json:"agent" yaml:"agent" mapstructure:"agent"`
	Channel ChannelConfig `json:"channel" yaml:"channel" mapstructure:"channel"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
}

// DefaultConfig returns the configuration used when no file, environment
// variable, or flag overrides a value.
func DefaultConfig() Config {
	return Config{
		Index: IndexConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "citeagent/0.1 (academic citation assistant)",
			},
			Backend:      "semantic_scholar",
			BaseURL:      "https://api.semanticscholar.org/graph/v1",
			MinCitations: 10,
			DefaultLimit: 5,
			MaxAttempts:  3,
			RetryDelay:   2 * time.Second,
		},
		Model: ModelConfig{
			Provider:    ProviderGemini,
			Temperature: 0.3,
			MaxTokens:   8192,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
		},
		Channel: ChannelConfig{
			Kind:              ChannelCDP,
			DebugURL:          "http://127.0.0.1:9222",
			TargetMatch:       "overleaf.com",
			CommandTimeout:    10 * time.Second,
			ChunkSize:         2000,
			PollInterval:      500 * time.Millisecond,
			PollAttempts:      10,
			BibFile:           "mybib.bib",
			AlternateBibFiles: []string{"references.bib", "bibliography.bib", "refs.bib"},
			MainFile:          "main.tex",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".citeagent/history.db",
		},
	}
}
