// Package errs defines the typed error taxonomy attached to failing
// ToolResults, as described by the execution engine's error model.
package errs

import "time"

// Kind classifies why a tool execution failed.
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindNotFound           Kind = "not_found"
	KindValidationError    Kind = "validation_error"
	KindExecutionError     Kind = "execution_error"
	KindResourceExhausted  Kind = "resource_exhausted"
	KindCircuitBreakerOpen Kind = "circuit_breaker_open"
	KindUnknown            Kind = "unknown"
)

// Context carries a failing result's structured error details. It is
// attached to a ToolResult and never mutated after construction.
type Context struct {
	Kind         Kind                   `json:"kind"`
	Message      string                 `json:"message"`
	RecoveryHint string                 `json:"recovery_hint,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	ToolName     string                 `json:"tool_name,omitempty"`
	Target       string                 `json:"target,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// New builds an ErrorContext stamped with the current UTC time.
func New(kind Kind, message string) *Context {
	return &Context{Kind: kind, Message: message, Timestamp: time.Now().UTC()}
}

// WithHint sets the recovery hint and returns the context for chaining.
func (c *Context) WithHint(hint string) *Context {
	c.RecoveryHint = hint
	return c
}

// WithTool sets the tool name and returns the context for chaining.
func (c *Context) WithTool(name string) *Context {
	c.ToolName = name
	return c
}

// WithTarget sets the target and returns the context for chaining.
func (c *Context) WithTarget(target string) *Context {
	c.Target = target
	return c
}

// WithMeta attaches a single metadata key and returns the context for chaining.
func (c *Context) WithMeta(key string, value interface{}) *Context {
	if c.Metadata == nil {
		c.Metadata = make(map[string]interface{})
	}
	c.Metadata[key] = value
	return c
}

// Error implements the error interface so a *Context can be returned
// directly from validation functions.
func (c *Context) Error() string {
	return string(c.Kind) + ": " + c.Message
}

// recoveryHints maps common validation failures to actionable operator text.
var recoveryHints = map[string]string{
	"cidr_too_large": "Use a CIDR no larger than /22",
	"not_private":    "Use an RFC1918 address, loopback, or *.lab.internal hostname",
	"tool_not_found": "Install the scanner binary or check PATH",
	"breaker_open":   "Wait for the recovery timeout or check upstream tool health",
	"args_too_long":  "Shorten extra_args to 2048 bytes or fewer",
	"forbidden_char": "Remove shell metacharacters from extra_args",
	"unknown_token":  "Only allow-listed flags and their values are accepted",
	"slot_exhausted": "Retry when an execution slot frees up, or raise the tool's concurrency cap",
}

// Hint looks up a canned recovery hint by key, returning "" if unknown.
func Hint(key string) string {
	return recoveryHints[key]
}
