package domain

import (
	"encoding/json"
	"time"
)

// ToolExecution records one tool invocation attempt, success or failure. These
// are held in a bounded in-memory history for observability and never persisted.
type ToolExecution struct {
	ID        string          `json:"id"`
	ServerID  string          `json:"serverId"`
	ToolName  string          `json:"toolName"`
	Arguments map[string]any  `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Duration  time.Duration   `json:"duration"`
}
