package config

import (
	"os"
	"testing"
)

const sampleConfig = `
llm:
  provider: openai
  base_url: https://api.example.com/openai/v1
  api_key: dummy
  model: llama-3.3-70b-versatile
  temperature: 0.7
  max_tokens: 2048
server:
  host: 0.0.0.0
  port: "8080"
agent:
  max_turns: 7
tools:
  web_search: true
  wikipedia: true
  arxiv: false
  top_k: 3
mcp_servers:
  - name: extra
    type: stdio
    command: ./mock
    args: ["--flag"]
    env:
      FOO: bar
`

// TestLoad verifies that Load reads the file named by CONFIG_PATH and applies defaults.
func TestLoad(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Fatalf("unexpected temperature: %v", cfg.LLM.Temperature)
	}
	if cfg.Agent.MaxTurns != 7 {
		t.Fatalf("unexpected max_turns: %d", cfg.Agent.MaxTurns)
	}
	if !cfg.Tools.WebSearch || cfg.Tools.Arxiv {
		t.Fatalf("tool toggles not parsed: %+v", cfg.Tools)
	}
	if cfg.Tools.TopK != 3 {
		t.Fatalf("unexpected top_k: %d", cfg.Tools.TopK)
	}
	if cfg.Tools.MaxChars != 1000 {
		t.Fatalf("max_chars default not applied: %d", cfg.Tools.MaxChars)
	}
	if len(cfg.MCPServers) != 1 {
		t.Fatalf("expected 1 mcp server, got %d", len(cfg.MCPServers))
	}
	s := cfg.MCPServers[0]
	if s.Type != ClientTypeStdio {
		t.Fatalf("expected type stdio, got %s", s.Type)
	}
	if s.Command != "./mock" {
		t.Fatalf("unexpected command: %s", s.Command)
	}
	if len(s.Args) != 1 || s.Args[0] != "--flag" {
		t.Fatalf("unexpected args: %v", s.Args)
	}
	if v := s.Env["foo"]; v != "bar" {
		t.Fatalf("env not parsed: %v", s.Env)
	}
}

// TestLoad_APIKeyEnvOverride verifies the env credential wins over the file.
func TestLoad_APIKeyEnvOverride(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())
	t.Setenv("SLEUTH_API_KEY", "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected env override, got %s", cfg.LLM.APIKey)
	}
}
