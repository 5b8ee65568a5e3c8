// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: gemini-api-key, openai-api-key, upstage-api-key, anthropic-api-key,
// semantic-scholar-api-key, openalex-email.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/citeagent/pkg/types"
)

// Key file names.
const (
	GeminiAPIKey          = "gemini-api-key"
	OpenAIAPIKey          = "openai-api-key"
	UpstageAPIKey         = "upstage-api-key"
	AnthropicAPIKey       = "anthropic-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
)

// envNames maps each key file to the environment variable consulted when
// the file is absent.
var envNames = map[string]string{
	GeminiAPIKey:          "GEMINI_API_KEY",
	OpenAIAPIKey:          "OPENAI_API_KEY",
	UpstageAPIKey:         "UPSTAGE_API_KEY",
	AnthropicAPIKey:       "ANTHROPIC_API_KEY",
	SemanticScholarAPIKey: "SEMANTIC_SCHOLAR_API_KEY",
	OpenAlexEmail:         "OPENALEX_EMAIL",
}

// providerKeys maps a model provider to its key file.
var providerKeys = map[string]string{
	types.ProviderGemini:    GeminiAPIKey,
	types.ProviderOpenAI:    OpenAIAPIKey,
	types.ProviderUpstage:   UpstageAPIKey,
	types.ProviderAnthropic: AnthropicAPIKey,
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Lookup returns the secret stored under name, falling back to its
// environment variable.
func Lookup(s map[string]string, name string) string {
	if v, ok := s[name]; ok {
		return v
	}
	if env, ok := envNames[name]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Apply fills credentials that cfg leaves empty: the model API key for
// the configured provider, the Semantic Scholar key, and the OpenAlex
// contact address. Values already present in cfg win.
func Apply(cfg *types.Config, s map[string]string) {
	provider := strings.ToLower(cfg.Model.Provider)
	if provider == "" {
		provider = types.ProviderGemini
	}
	if cfg.Model.APIKey == "" {
		if name, ok := providerKeys[provider]; ok {
			cfg.Model.APIKey = Lookup(s, name)
		}
	}
	if cfg.Index.APIKey == "" {
		cfg.Index.APIKey = Lookup(s, SemanticScholarAPIKey)
	}
	if cfg.Index.Email == "" {
		cfg.Index.Email = Lookup(s, OpenAlexEmail)
	}
}
