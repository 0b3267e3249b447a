package agent

// Event types streamed to the UI while a request is processed.
const (
	EventThinking   = "thinking"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventAnswer     = "answer"
	EventError      = "error"
)

// Event is one step of the reasoning trace.
type Event struct {
	Type    string `json:"type"`
	Tool    string `json:"tool,omitempty"`
	Content string `json:"content,omitempty"`
	Turn    int    `json:"turn"`
}

// emit sends an event to the request's sink when one is attached.
func (r *Request) emit(ev Event) {
	if r.Emit != nil {
		r.Emit(ev)
	}
}
