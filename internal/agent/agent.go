package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sleuth-ai/sleuth/internal/config"
	"github.com/sleuth-ai/sleuth/internal/llm"
	"github.com/sleuth-ai/sleuth/internal/logger"
	"github.com/sleuth-ai/sleuth/pkg/tools"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sashabaranov/go-openai"

	"github.com/qmuntal/stateless"
)

// FSM States
type FSMState stateless.State

var (
	StateReadyToCallLLM      FSMState = "ReadyToCallLLM"
	StateAwaitingLLMResponse FSMState = "AwaitingLLMResponse"
	StateExecutingTools      FSMState = "ExecutingTools"
	StateDone                FSMState = "Done"  // Terminal: successful completion
	StateError               FSMState = "Error" // Terminal: error state
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

// MCPClientInterface defines the methods the agent expects from an MCP client.
type MCPClientInterface interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Request carries one user question through the reasoning loop.
// Per-request fields override the configured defaults when set; they come
// from the settings panel on the chat page.
type Request struct {
	SessionID   string
	Input       string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	MaxTurns    int
	Tools       []string // enabled tool names; empty means all registered tools

	// Emit receives trace events as the loop progresses. May be nil.
	Emit func(Event)
}

// Agent runs the tool-calling loop over the LLM.
type Agent struct {
	llmClient      llm.Client
	cfg            config.Config
	registry       *tools.Registry
	mcpClients     []MCPClientInterface
	mcpTools       []openai.Tool
	mcpToolsByName map[string]MCPClientInterface
}

const defaultSystemPrompt = `You are a helpful search assistant with access to several information sources.
Answer the user's question step by step using the provided tools.
Be direct, concise, and informative in your final answer.
If you can't find a relevant answer after 2-3 search attempts, summarize what you've learned and acknowledge limitations.
Always cite your sources in the final answer.
Avoid repeating the same search with identical parameters.`

// New creates a new agent over the given LLM client and tool registry,
// connecting any configured MCP servers and merging their tools.
func New(llmClient llm.Client, appCfg config.Config, registry *tools.Registry) *Agent {
	a := &Agent{
		llmClient:      llmClient,
		cfg:            appCfg,
		registry:       registry,
		mcpClients:     make([]MCPClientInterface, 0, len(appCfg.MCPServers)),
		mcpTools:       make([]openai.Tool, 0),
		mcpToolsByName: make(map[string]MCPClientInterface),
	}

	setupCtx := context.Background()

	for _, serverCfg := range appCfg.MCPServers {
		var mcpC *client.Client
		var err error

		switch serverCfg.Type {
		case config.ClientTypeSSE:
			var sseOpts []transport.ClientOption
			if len(serverCfg.Headers) > 0 {
				sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
		case config.ClientTypeStreamableHTTP:
			var httpOpts []transport.StreamableHTTPCOption
			if len(serverCfg.Headers) > 0 {
				httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
		case config.ClientTypeStdio:
			var env []string
			for k, v := range serverCfg.Env {
				env = append(env, fmt.Sprintf("%s=%s", k, v))
			}
			mcpC, err = client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
		default:
			logger.L.Warn("unsupported MCP server type, skipping", "type", serverCfg.Type, "name", serverCfg.Name)
			continue
		}
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		// stdio transports start themselves
		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(setupCtx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				if cerr := mcpC.Close(); cerr != nil {
					logger.L.Warn("MCP client close error after start failure", "error", cerr)
				}
				continue
			}
		}

		initReq := mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}
		if _, err := mcpC.Initialize(setupCtx, initReq); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := mcpC.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}
		logger.L.Info("MCP server initialized", "name", serverCfg.Name)
		a.mcpClients = append(a.mcpClients, mcpC)

		serverTools, err := mcpC.ListTools(setupCtx, mcp.ListToolsRequest{})
		if err != nil {
			logger.L.Warn("failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		for _, mcpTool := range serverTools.Tools {
			a.registerMCPTool(mcpC, serverCfg.Name, mcpTool)
		}
	}

	return a
}

// registerMCPTool maps a discovered MCP tool to an LLM function definition.
// Built-in registry tools win on name collisions.
func (a *Agent) registerMCPTool(mcpC MCPClientInterface, serverName string, mcpTool mcp.Tool) {
	if _, exists := a.registry.Get(mcpTool.Name); exists {
		logger.L.Warn("MCP tool shadows a built-in tool, skipping", "tool", mcpTool.Name, "server", serverName)
		return
	}
	if _, exists := a.mcpToolsByName[mcpTool.Name]; exists {
		logger.L.Warn("MCP tool already registered from another server, skipping", "tool", mcpTool.Name, "server", serverName)
		return
	}

	var paramsSchema json.RawMessage
	if len(mcpTool.RawInputSchema) > 0 && string(mcpTool.RawInputSchema) != "null" {
		paramsSchema = mcpTool.RawInputSchema
	} else if schemaBytes, err := json.Marshal(mcpTool.InputSchema); err == nil {
		paramsSchema = schemaBytes
	}
	if len(paramsSchema) == 0 || string(paramsSchema) == "{}" || string(paramsSchema) == "null" {
		paramsSchema = json.RawMessage(`{"type": "object", "properties": {}}`)
	}

	a.mcpToolsByName[mcpTool.Name] = mcpC
	a.mcpTools = append(a.mcpTools, openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
			Parameters:  paramsSchema,
		},
	})
	logger.L.Info("registered MCP tool for LLM", "tool", mcpTool.Name, "server", serverName)
}

// Close shuts down the connected MCP clients.
func (a *Agent) Close() {
	for _, c := range a.mcpClients {
		if err := c.Close(); err != nil {
			logger.L.Warn("MCP client close error", "error", err)
		}
	}
}

// llmTools returns the function definitions offered to the model for a request.
func (a *Agent) llmTools(req *Request) []openai.Tool {
	defs := a.registry.Definitions(req.Tools)
	if len(req.Tools) == 0 {
		return append(defs, a.mcpTools...)
	}
	allowed := map[string]bool{}
	for _, name := range req.Tools {
		allowed[name] = true
	}
	for _, t := range a.mcpTools {
		if allowed[t.Function.Name] {
			defs = append(defs, t)
		}
	}
	return defs
}

// Process runs a request through a Finite State Machine that manages the
// conversation flow with the LLM and tool calls, and returns the final answer.
func (a *Agent) Process(ctx context.Context, req Request) (string, error) {
	type fsmContext struct {
		messages     []openai.ChatCompletionMessage
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
		maxTurns     int
	}

	systemPrompt := defaultSystemPrompt
	if a.cfg.Agent.SystemPrompt != "" {
		systemPrompt = a.cfg.Agent.SystemPrompt
	}

	model := a.cfg.LLM.Model
	if req.Model != "" {
		model = req.Model
	}
	temperature := a.cfg.LLM.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := a.cfg.LLM.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	maxTurns := a.cfg.Agent.MaxTurns
	if req.MaxTurns > 0 {
		maxTurns = req.MaxTurns
	}

	llmClient := a.llmClient
	if req.APIKey != "" {
		llmClient = llm.NewClientWithKey(a.cfg.LLM, req.APIKey)
	}

	availableTools := a.llmTools(&req)

	fsmCtx := &fsmContext{
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Input},
		},
		maxTurns: maxTurns,
	}

	callLLM := func(ctx context.Context, withTools bool) (openai.ChatCompletionResponse, error) {
		chatReq := openai.ChatCompletionRequest{
			Model:       model,
			Messages:    fsmCtx.messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}
		if withTools {
			chatReq.Tools = availableTools
		}
		return llmClient.CreateChatCompletion(ctx, chatReq)
	}

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	// ReadyToCallLLM: call the LLM with the conversation so far.
	//   LLMRequestedTools       -> ExecutingTools
	//   LLMRespondedWithContent -> Done
	//   ErrorOccurred           -> Error
	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerProcessInput).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= fsmCtx.maxTurns {
				// Early stop: ask for a best-effort summary without tools
				// instead of failing the whole request.
				logger.L.Warn("max interaction turns reached, generating summary", "maxTurns", fsmCtx.maxTurns)
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: "You have reached the search limit. Summarize what you have learned so far and answer as best you can, noting any gaps.",
				})
				llmResp, err := callLLM(ctx, false)
				if err != nil {
					fsmCtx.lastError = fmt.Errorf("summary call after max turns: %w", err)
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				}
				fsmCtx.llmResponse = &llmResp
				return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
			}
			fsmCtx.currentTurn++
			logger.L.Debug("FSM: entering StateReadyToCallLLM", "turn", fsmCtx.currentTurn)

			llmResp, err := callLLM(ctx, true)
			if err != nil {
				logger.L.Error("LLM call failed", "error", err)
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.llmResponse = &llmResp

			if len(llmResp.Choices) > 0 && len(llmResp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	// ExecutingTools: run every requested tool call and append the results,
	// one tool message per call id, then go back for another LLM turn.
	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: entering StateExecutingTools")
			if fsmCtx.llmResponse == nil || len(fsmCtx.llmResponse.Choices) == 0 {
				fsmCtx.lastError = errors.New("cannot execute tools, no LLM response available")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}

			llmMessage := fsmCtx.llmResponse.Choices[0].Message
			fsmCtx.messages = append(fsmCtx.messages, llmMessage)
			if llmMessage.Content != "" {
				req.emit(Event{Type: EventThinking, Content: llmMessage.Content, Turn: fsmCtx.currentTurn})
			}

			for _, toolCall := range llmMessage.ToolCalls {
				req.emit(Event{
					Type:    EventToolCall,
					Tool:    toolCall.Function.Name,
					Content: toolCall.Function.Arguments,
					Turn:    fsmCtx.currentTurn,
				})
				output := a.executeTool(ctx, toolCall.Function.Name, json.RawMessage(toolCall.Function.Arguments))
				req.emit(Event{
					Type:    EventToolResult,
					Tool:    toolCall.Function.Name,
					Content: output,
					Turn:    fsmCtx.currentTurn,
				})
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    output,
					ToolCallID: toolCall.ID,
					Name:       toolCall.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	// Done: terminal, extract the final content.
	fsm.Configure(StateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: entering StateDone")
			if fsmCtx.llmResponse != nil && len(fsmCtx.llmResponse.Choices) > 0 {
				fsmCtx.finalContent = fsmCtx.llmResponse.Choices[0].Message.Content
			} else if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("conversation finished without a final LLM response")
			}
			return nil
		})

	// Error: terminal, fsmCtx.lastError carries the cause.
	fsm.Configure(StateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: entering StateError")
			if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("reached error state without a specific error")
			}
			return nil
		})

	if fireErr := fsm.FireCtx(ctx, TriggerProcessInput); fireErr != nil {
		logger.L.Warn("FSM initial fire error", "error", fireErr)
	}

	// Transitions run synchronously inside Fire; activation drives the
	// initial state's OnEntry and the loop runs to a terminal state.
	if err := fsm.ActivateCtx(ctx); err != nil {
		logger.L.Error("FSM activation failed", "error", err)
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", fmt.Errorf("FSM activation error: %w", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		logger.L.Error("FSM error when retrieving state", "error", err)
		return "", fmt.Errorf("FSM internal error: %w", err)
	}

	switch currentState {
	case StateDone:
		if fsmCtx.lastError != nil && fsmCtx.finalContent == "" {
			return "", fsmCtx.lastError
		}
		req.emit(Event{Type: EventAnswer, Content: fsmCtx.finalContent, Turn: fsmCtx.currentTurn})
		return fsmCtx.finalContent, nil
	case StateError:
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", errors.New("conversation ended in error state without a specific error")
	}
	if fsmCtx.lastError != nil {
		return "", fsmCtx.lastError
	}
	return "", fmt.Errorf("FSM ended in an unexpected state: %v", currentState)
}

// executeTool runs a single tool call, preferring built-in registry tools
// and falling back to MCP-provided ones. Failures become error text so the
// loop continues and the model can adjust.
func (a *Agent) executeTool(ctx context.Context, toolName string, args json.RawMessage) string {
	if t, ok := a.registry.Get(toolName); ok {
		logger.L.Debug("executing built-in tool", "tool", toolName, "args", string(args))
		out, err := t.Run(ctx, args)
		if err != nil {
			logger.L.Warn("tool execution failed", "tool", toolName, "error", err)
			return fmt.Sprintf("Error: tool %s failed: %v", toolName, err)
		}
		return out
	}

	mcpC, ok := a.mcpToolsByName[toolName]
	if !ok {
		logger.L.Warn("LLM requested unknown tool", "tool", toolName)
		return "Error: unknown tool " + toolName
	}

	var toolArgs map[string]any
	if err := json.Unmarshal(args, &toolArgs); err != nil {
		logger.L.Error("failed to unmarshal tool arguments", "tool", toolName, "error", err)
		return "Error: could not parse arguments for tool " + toolName
	}

	logger.L.Debug("executing MCP tool", "tool", toolName, "arguments", toolArgs)
	mcpResult, err := mcpC.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: toolName, Arguments: toolArgs},
	})
	if err != nil {
		logger.L.Warn("MCP CallTool failed", "tool", toolName, "error", err)
		return fmt.Sprintf("Error: tool %s failed: %v", toolName, err)
	}
	if mcpResult == nil {
		return "Error: tool " + toolName + " returned no result"
	}

	for _, contentItem := range mcpResult.Content {
		if textContent, ok := contentItem.(mcp.TextContent); ok {
			return textContent.Text
		}
	}
	if mcpResult.IsError {
		return "Tool execution resulted in an error without specific text."
	}
	resultBytes, merr := json.Marshal(mcpResult)
	if merr != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(resultBytes)
}
