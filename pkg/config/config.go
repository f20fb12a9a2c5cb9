// Package config loads AutoAppDev's process-level environment, following
// the getEnvOrDefault + Validate shape the teacher uses for its database
// configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the process-wide settings read from the environment. It is
// constructed once in main and passed explicitly to component
// constructors — no package-level globals (see spec §9 "Global state").
type Config struct {
	Host string
	Port int

	RuntimeDir string

	DatabaseURL string // empty => file-backed store fallback

	EnableLLMParse    bool
	CodexModel        string
	CodexReasoning    string
	SkipCodexGitCheck bool
}

// Load reads Config from the environment, applying spec §6's defaults.
func Load() (Config, error) {
	port, err := strconv.Atoi(firstNonEmpty(os.Getenv("AUTOAPPDEV_PORT"), os.Getenv("PORT"), "8788"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid AUTOAPPDEV_PORT/PORT: %w", err)
	}

	cfg := Config{
		Host:              getEnvOrDefault("AUTOAPPDEV_HOST", "127.0.0.1"),
		Port:              port,
		RuntimeDir:        getEnvOrDefault("AUTOAPPDEV_RUNTIME_DIR", "./runtime"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		EnableLLMParse:    os.Getenv("AUTOAPPDEV_ENABLE_LLM_PARSE") == "1",
		CodexModel:        getEnvOrDefault("AUTOAPPDEV_CODEX_MODEL", "gpt-5.3-codex"),
		CodexReasoning:    getEnvOrDefault("AUTOAPPDEV_CODEX_REASONING", "medium"),
		SkipCodexGitCheck: os.Getenv("AUTOAPPDEV_CODEX_SKIP_GIT_CHECK") == "1",
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants on the loaded configuration.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.RuntimeDir == "" {
		return fmt.Errorf("AUTOAPPDEV_RUNTIME_DIR must not be empty")
	}
	switch c.CodexReasoning {
	case "low", "medium", "high", "xhigh":
	default:
		return fmt.Errorf("invalid AUTOAPPDEV_CODEX_REASONING: %q", c.CodexReasoning)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
