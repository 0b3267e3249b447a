package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MCP server client types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig
	Server     ServerConfig
	Agent      AgentConfig
	Tools      ToolsConfig
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
	Logging    LoggingConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// AgentConfig holds the reasoning loop configuration
type AgentConfig struct {
	MaxTurns     int    `mapstructure:"max_turns"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ToolsConfig selects which built-in search tools are registered.
type ToolsConfig struct {
	WebSearch bool `mapstructure:"web_search"`
	Wikipedia bool `mapstructure:"wikipedia"`
	Arxiv     bool `mapstructure:"arxiv"`
	FetchPage bool `mapstructure:"fetch_page"`
	TopK      int  `mapstructure:"top_k"`
	MaxChars  int  `mapstructure:"max_chars"`
}

// MCPServerConfig describes an external MCP tool server to merge into the loop.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// LoggingConfig holds the logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load loads the configuration from config.yaml, or from the file named by
// the CONFIG_PATH environment variable when set. SLEUTH_API_KEY overrides
// the configured LLM API key.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("llm.temperature", 0.5)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("agent.max_turns", 5)
	viper.SetDefault("tools.web_search", true)
	viper.SetDefault("tools.wikipedia", true)
	viper.SetDefault("tools.arxiv", true)
	viper.SetDefault("tools.fetch_page", false)
	viper.SetDefault("tools.top_k", 2)
	viper.SetDefault("tools.max_chars", 1000)
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if key := os.Getenv("SLEUTH_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if config.Logging.File != "" {
		config.Logging.File = filepath.Clean(config.Logging.File)
	}

	return &config, nil
}
