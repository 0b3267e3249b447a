package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Registry stores tools by unique name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new Registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register registers a new tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = t
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	ts := make([]Tool, 0, len(names))
	for _, name := range names {
		ts = append(ts, r.tools[name])
	}
	return ts
}

// Definitions renders the registered tools as LLM function definitions.
// When only is non-empty, the set is filtered to those names.
func (r *Registry) Definitions(only []string) []openai.Tool {
	allowed := map[string]bool{}
	for _, name := range only {
		allowed[name] = true
	}

	var defs []openai.Tool
	for _, t := range r.List() {
		if len(allowed) > 0 && !allowed[t.Name()] {
			continue
		}
		schema := t.Schema()
		if len(schema) == 0 {
			schema = emptySchema
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  json.RawMessage(schema),
			},
		})
	}
	return defs
}
