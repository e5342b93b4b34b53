// Package dispatcher exposes the execution engine over stdio (newline-
// delimited JSON, and an mcp-go server for MCP-speaking orchestrators) and
// HTTP/SSE, applying request-shape validation and per-caller rate limiting
// ahead of the engine.
package dispatcher

import (
	"fmt"

	"github.com/nextlevelbuilder/scangate/internal/engine"
)

// ExecuteBody is the validated shape of an execute request body, shared by
// both the stdio and HTTP transports.
type ExecuteBody struct {
	Target        string  `json:"target"`
	ExtraArgs     string  `json:"extra_args"`
	TimeoutSec    float64 `json:"timeout_sec,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// Validate enforces the request body's length and range constraints,
// independent of transport.
func (b ExecuteBody) Validate() error {
	if l := len(b.Target); l < 1 || l > 255 {
		return fmt.Errorf("target must be 1..255 bytes, got %d", l)
	}
	if len(b.ExtraArgs) > 2048 {
		return fmt.Errorf("extra_args must be at most 2048 bytes, got %d", len(b.ExtraArgs))
	}
	if b.TimeoutSec != 0 && (b.TimeoutSec < 1 || b.TimeoutSec > 3600) {
		return fmt.Errorf("timeout_sec must be in [1, 3600], got %v", b.TimeoutSec)
	}
	if len(b.CorrelationID) > 64 {
		return fmt.Errorf("correlation_id must be at most 64 bytes, got %d", len(b.CorrelationID))
	}
	return nil
}

// toRequest converts a validated body plus a resolved tool name and the
// configured allow_intrusive policy toggle into an engine.Request.
func toRequest(tool string, body ExecuteBody, allowIntrusive bool) engine.Request {
	return engine.Request{
		Tool:           tool,
		Target:         body.Target,
		ExtraArgs:      body.ExtraArgs,
		AllowIntrusive: allowIntrusive,
		TimeoutSec:     body.TimeoutSec,
		CorrelationID:  body.CorrelationID,
	}
}
