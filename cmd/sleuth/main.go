package main

import (
	"github.com/sleuth-ai/sleuth/internal/agent"
	"github.com/sleuth-ai/sleuth/internal/config"
	"github.com/sleuth-ai/sleuth/internal/llm"
	"github.com/sleuth-ai/sleuth/internal/logger"
	"github.com/sleuth-ai/sleuth/internal/server"
	"github.com/sleuth-ai/sleuth/pkg/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}

	logger.SetLevel(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		logger.SetFile(cfg.Logging.File)
	}

	registry := tools.NewRegistry()
	register := func(t tools.Tool) {
		if err := registry.Register(t); err != nil {
			logger.L.Error("failed to register tool", "tool", t.Name(), "error", err)
		}
	}
	if cfg.Tools.WebSearch {
		register(tools.NewWebSearch(cfg.Tools.TopK))
	}
	if cfg.Tools.Wikipedia {
		register(tools.NewWikipedia(cfg.Tools.TopK, cfg.Tools.MaxChars))
	}
	if cfg.Tools.Arxiv {
		register(tools.NewArxiv(cfg.Tools.TopK, cfg.Tools.MaxChars))
	}
	if cfg.Tools.FetchPage {
		register(tools.NewFetchPage())
	}

	llmClient := llm.NewClient(cfg.LLM)
	searchAgent := agent.New(llmClient, *cfg, registry)
	defer searchAgent.Close()

	srv := server.New(*cfg, searchAgent)
	if err := srv.ListenAndServe(); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}
