package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/citeagent/internal/secrets"
	"github.com/pdiddy/citeagent/pkg/types"
)

// registerDefaults seeds viper with types.DefaultConfig so every key is
// known to AutomaticEnv and Unmarshal.
func registerDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("index.backend", d.Index.Backend)
	viper.SetDefault("index.base_url", d.Index.BaseURL)
	viper.SetDefault("index.api_key", "")
	viper.SetDefault("index.email", "")
	viper.SetDefault("index.timeout", d.Index.Timeout)
	viper.SetDefault("index.user_agent", d.Index.UserAgent)
	viper.SetDefault("index.min_citations", d.Index.MinCitations)
	viper.SetDefault("index.default_limit", d.Index.DefaultLimit)
	viper.SetDefault("index.max_attempts", d.Index.MaxAttempts)
	viper.SetDefault("index.retry_delay", d.Index.RetryDelay)

	viper.SetDefault("model.provider", d.Model.Provider)
	viper.SetDefault("model.model", d.Model.Model)
	viper.SetDefault("model.api_key", "")
	viper.SetDefault("model.base_url", "")
	viper.SetDefault("model.temperature", d.Model.Temperature)
	viper.SetDefault("model.max_tokens", d.Model.MaxTokens)

	viper.SetDefault("agent.max_iterations", d.Agent.MaxIterations)

	viper.SetDefault("channel.kind", d.Channel.Kind)
	viper.SetDefault("channel.debug_url", d.Channel.DebugURL)
	viper.SetDefault("channel.target_match", d.Channel.TargetMatch)
	viper.SetDefault("channel.command_timeout", d.Channel.CommandTimeout)
	viper.SetDefault("channel.chunk_size", d.Channel.ChunkSize)
	viper.SetDefault("channel.poll_interval", d.Channel.PollInterval)
	viper.SetDefault("channel.poll_attempts", d.Channel.PollAttempts)
	viper.SetDefault("channel.bib_file", d.Channel.BibFile)
	viper.SetDefault("channel.alternate_bib_files", d.Channel.AlternateBibFiles)
	viper.SetDefault("channel.main_file", d.Channel.MainFile)

	viper.SetDefault("history.enabled", d.History.Enabled)
	viper.SetDefault("history.path", d.History.Path)
}

// bindEnv maps CITEAGENT_SECTION_KEY variables onto section.key.
func bindEnv() {
	viper.SetEnvPrefix("CITEAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig resolves the configuration from defaults, the config file,
// CITEAGENT_* environment variables, and finally secrets for any
// credential still empty.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}
