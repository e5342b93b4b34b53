package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/scangate/internal/breaker"
	"github.com/nextlevelbuilder/scangate/internal/errs"
	"github.com/nextlevelbuilder/scangate/internal/grammar"
	"github.com/nextlevelbuilder/scangate/internal/metrics"
	"github.com/nextlevelbuilder/scangate/internal/policy"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
)

var tracer = otel.Tracer("scangate/engine")

// Engine ties admission control, process spawn, and result assembly
// together for every tool execution the dispatcher accepts.
type Engine struct {
	tools   *toolreg.Registry
	metrics *metrics.Registry
	prom    *metrics.PrometheusBridge
	sems    *semaphoreCache

	maxArgsLen     int
	maxStdoutBytes int
	maxStderrBytes int

	resolvePath func(command string) (string, error)
}

// New constructs an Engine wired against a tool registry and metrics
// registry. resolvePath defaults to exec.LookPath and is overridable in
// tests.
func New(tools *toolreg.Registry, metricsReg *metrics.Registry) *Engine {
	return &Engine{
		tools:          tools,
		metrics:        metricsReg,
		sems:           newSemaphoreCache(),
		maxStdoutBytes: maxStdoutBytes,
		maxStderrBytes: maxStderrBytes,
		resolvePath:    exec.LookPath,
	}
}

// WithLimits overrides the extra_args length cap and the stdout/stderr
// capture ceilings; zero values keep the built-in defaults.
func (e *Engine) WithLimits(maxArgsLen, maxStdout, maxStderr int) *Engine {
	if maxArgsLen > 0 {
		e.maxArgsLen = maxArgsLen
	}
	if maxStdout > 0 {
		e.maxStdoutBytes = maxStdout
	}
	if maxStderr > 0 {
		e.maxStderrBytes = maxStderr
	}
	return e
}

// WithPrometheus mirrors execution outcomes into the Prometheus bridge.
func (e *Engine) WithPrometheus(b *metrics.PrometheusBridge) *Engine {
	e.prom = b
	return e
}

// Execute runs one tool invocation end to end: grammar validation,
// circuit-breaker and concurrency admission, resource-limited spawn,
// bounded output capture, and result assembly. It never panics or
// returns a Go error — every failure is encoded in the returned Result.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	descriptor, known := e.tools.Descriptor(req.Tool)
	if !known {
		return e.fail(start, correlationID, errs.New(errs.KindNotFound, "unknown tool: "+req.Tool).WithTool(req.Tool))
	}
	if !e.tools.Enabled(req.Tool) {
		return e.fail(start, correlationID, errs.New(errs.KindNotFound, "tool is disabled: "+req.Tool).WithTool(req.Tool))
	}

	argv, ec := grammar.Validate(req.Tool, req.Target, req.ExtraArgs, req.AllowIntrusive, e.maxArgsLen)
	if ec != nil {
		return e.fail(start, correlationID, ec)
	}

	toolBreaker, _ := e.tools.Breaker(req.Tool)
	decision := toolBreaker.Allow()
	if !decision.Allow {
		ec := errs.New(errs.KindCircuitBreakerOpen, fmt.Sprintf("circuit open, retry after %s", decision.RetryAfter)).
			WithTool(req.Tool).WithTarget(req.Target).WithHint(errs.Hint("breaker_open")).
			WithMeta("retry_after_sec", decision.RetryAfter.Seconds())
		return e.fail(start, correlationID, ec)
	}

	timeout := req.TimeoutSec
	if timeout <= 0 {
		timeout = descriptor.DefaultTimeoutSec
	}
	timeoutDur := time.Duration(timeout * float64(time.Second))

	sem := e.sems.get(req.Tool, descriptor.ConcurrencyCap)
	if !sem.acquireCtx(ctx) {
		toolBreaker.Cancel()
		ec := errs.New(errs.KindResourceExhausted, "request canceled while waiting for an execution slot").
			WithTool(req.Tool).WithTarget(req.Target).WithHint(errs.Hint("slot_exhausted"))
		return e.fail(start, correlationID, ec)
	}
	e.prom.SetActive(req.Tool, float64(sem.inFlight()))
	defer func() {
		sem.release()
		e.prom.SetActive(req.Tool, float64(sem.inFlight()))
	}()

	result := e.spawn(ctx, descriptor, req.Target, argv, timeoutDur, toolBreaker.Snapshot().State)

	result.CorrelationID = correlationID
	result.ExecutionTime = time.Since(start)

	if result.Error != "" {
		toolBreaker.RecordFailure(result.Error)
	} else {
		toolBreaker.RecordSuccess()
	}

	rec := e.metrics.GetOrCreate(req.Tool)
	rec.Observe(result.Error == "", result.TimedOut, result.ExecutionTime, result.ErrorKind)
	e.prom.ObserveExecution(req.Tool, promStatus(result), result.ErrorKind, result.ExecutionTime.Seconds())

	return result
}

func promStatus(r Result) string {
	if r.Error == "" {
		return "success"
	}
	return "failure"
}

// fail builds a Result for a request that never reached process spawn,
// carrying the error context's hint and metadata so callers can act on it.
func (e *Engine) fail(start time.Time, correlationID string, ec *errs.Context) Result {
	meta := make(map[string]interface{}, len(ec.Metadata)+1)
	for k, v := range ec.Metadata {
		meta[k] = v
	}
	if ec.RecoveryHint != "" {
		meta["recovery_hint"] = ec.RecoveryHint
	}
	if len(meta) == 0 {
		meta = nil
	}
	return Result{
		ReturnCode:    1,
		Error:         ec.Message,
		ErrorKind:     string(ec.Kind),
		ExecutionTime: time.Since(start),
		CorrelationID: correlationID,
		Metadata:      meta,
	}
}

// spawn resolves the tool binary, applies resource limits and a process
// group, runs it to completion or timeout, and assembles the Result. A
// missing binary or spawn-time OS error is encoded directly on the
// Result rather than returned as a Go error, per the engine's "never
// return a bare error" contract.
func (e *Engine) spawn(ctx context.Context, descriptor toolreg.Descriptor, target string, argv []string, timeout time.Duration, circuitState breaker.State) Result {
	spanCtx, span := tracer.Start(ctx, "engine.execute", trace.WithAttributes(
		attribute.String("tool", descriptor.Name),
		attribute.String("circuit_state", string(circuitState)),
	))
	defer span.End()

	binPath, err := e.resolvePath(descriptor.Command)
	if err != nil {
		ec := errs.New(errs.KindNotFound, "binary not found: "+descriptor.Command).WithHint(errs.Hint("tool_not_found"))
		span.SetStatus(codes.Error, ec.Message)
		return Result{
			ReturnCode: 127, Error: ec.Message, ErrorKind: string(ec.Kind),
			Metadata: map[string]interface{}{"recovery_hint": ec.RecoveryHint},
		}
	}

	limits := defaultRlimits(timeout)
	fullArgv := append([]string{binPath}, argv...)
	wrapped := wrapWithRlimits(fullArgv, limits)

	runCtx, cancel := context.WithTimeout(spanCtx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, wrapped[0], wrapped[1:]...)
	configureProcessGroup(cmd)
	cmd.Env = []string{"PATH=/usr/bin:/usr/local/bin", "LANG=C.UTF-8", "LC_ALL=C.UTF-8"}

	var stdoutBuf, stderrBuf boundedBuffer
	stdoutBuf.limit = e.maxStdoutBytes
	stderrBuf.limit = e.maxStderrBytes
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Start()
	if runErr != nil {
		ec := errs.New(errs.KindExecutionError, "failed to start process: "+runErr.Error())
		span.SetStatus(codes.Error, ec.Message)
		return Result{ReturnCode: 1, Error: ec.Message, ErrorKind: string(ec.Kind)}
	}

	waitErr := cmd.Wait()
	timedOut := runCtx.Err() == context.DeadlineExceeded

	if timedOut && cmd.Process != nil {
		_ = killProcessGroup(cmd.Process.Pid)
	}

	result := Result{
		Stdout:          sanitizeUTF8(stdoutBuf.String()),
		Stderr:          sanitizeUTF8(stderrBuf.String()),
		TruncatedStdout: stdoutBuf.truncated,
		TruncatedStderr: stderrBuf.truncated,
	}
	result.Stdout = policy.ScrubCredentials(result.Stdout)
	result.Stderr = policy.ScrubCredentials(result.Stderr)

	switch {
	case timedOut:
		result.TimedOut = true
		result.ReturnCode = 124
		result.Error = "execution exceeded timeout"
		result.ErrorKind = string(errs.KindTimeout)
	case waitErr != nil:
		result.ReturnCode = exitCode(waitErr)
		result.Error = waitErr.Error()
		result.ErrorKind = string(errs.KindExecutionError)
	default:
		result.ReturnCode = 0
	}

	span.SetAttributes(
		attribute.String("target_redacted", policy.RedactTarget(target)),
		attribute.Bool("timed_out", result.TimedOut),
		attribute.Int("return_code", result.ReturnCode),
	)
	if result.Error != "" {
		span.SetStatus(codes.Error, result.Error)
	}

	return result
}

// exitCode extracts a process's exit status from the error Wait returns,
// defaulting to 1 for errors that carry no exit status (signal death,
// I/O failure).
func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

// sanitizeUTF8 replaces invalid byte sequences so captured output is
// always valid UTF-8 before it is attached to a ToolResult.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return string(bytes.ToValidUTF8([]byte(s), []byte("�")))
}

// boundedBuffer caps how much output it retains, recording whether the
// stream was truncated rather than growing without bound.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.buf.Len() >= b.limit {
		b.truncated = true
		return n, nil
	}
	remaining := b.limit - b.buf.Len()
	if len(p) > remaining {
		b.truncated = true
		p = p[:remaining]
	}
	_, err := b.buf.Write(p)
	return n, err
}

func (b *boundedBuffer) String() string { return b.buf.String() }

var _ io.Writer = (*boundedBuffer)(nil)
