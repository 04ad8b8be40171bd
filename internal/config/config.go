package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultDeploymentURL is used when LANGGRAPH_DEPLOYMENT_URL is unset.
	DefaultDeploymentURL = "http://127.0.0.1:8123"

	AgentHumanInTheLoop   = "human_in_the_loop"
	AgentInsuranceAdvisor = "insurance_advisor"
)

// Config is the advisor server configuration.
type Config struct {
	Port   int
	DBPath string
	// Logging
	LogLevel string
	LogFile  string
	// LangGraph
	DeploymentURL string
	TracingAPIKey string
	AgentsFile    string
	Agents        map[string]Agent
	// Proxy. A zero rate limit disables limiting.
	ProxyRateLimit float64
	ProxyBurst     int
	// Auth stub
	AuthStubDelay time.Duration
	// Tracing
	OTLPEndpoint string
	ServiceName  string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:           envInt("PORT", 8787),
		DBPath:         envStr("ADVISOR_DB_PATH", "data/advisor.db"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFile:        envStr("LOG_FILE", ""),
		DeploymentURL:  envStr("LANGGRAPH_DEPLOYMENT_URL", DefaultDeploymentURL),
		TracingAPIKey:  envStr("LANGSMITH_API_KEY", ""),
		AgentsFile:     envStr("AGENTS_FILE", ""),
		ProxyRateLimit: envFloat("PROXY_RATE_LIMIT", 10),
		ProxyBurst:     envInt("PROXY_BURST", 20),
		AuthStubDelay:  envDuration("AUTH_STUB_DELAY", 0),
		OTLPEndpoint:   envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:    envStr("OTEL_SERVICE_NAME", "advisor-server"),
	}

	cfg.Agents = DefaultAgents(cfg.DeploymentURL, cfg.TracingAPIKey)
	if cfg.AgentsFile != "" {
		extra, err := LoadAgentsFile(cfg.AgentsFile, cfg.DeploymentURL, cfg.TracingAPIKey)
		if err != nil {
			return nil, err
		}
		for name, a := range extra {
			cfg.Agents[name] = a
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("ADVISOR_DB_PATH must not be empty")
	}
	if c.ProxyRateLimit < 0 {
		return fmt.Errorf("PROXY_RATE_LIMIT must not be negative, got %f", c.ProxyRateLimit)
	}
	if c.ProxyBurst < 1 {
		return fmt.Errorf("PROXY_BURST must be positive, got %d", c.ProxyBurst)
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}
	for name, a := range c.Agents {
		if err := a.validate(); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
	}
	return nil
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	ServerURL string
	Agent     string
	LogFile   string
}

// LoadClient reads the terminal client configuration.
func LoadClient() (*ClientConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &ClientConfig{
		ServerURL: strings.TrimRight(envStr("ADVISOR_SERVER_URL", "http://localhost:8787"), "/"),
		Agent:     envStr("ADVISOR_AGENT", AgentInsuranceAdvisor),
		// The TUI owns the terminal, so logs only go to a file.
		LogFile: envStr("LOG_FILE", ""),
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("ADVISOR_SERVER_URL must not be empty")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
