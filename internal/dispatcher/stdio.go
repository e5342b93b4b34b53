package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/nextlevelbuilder/scangate/internal/engine"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
)

// stdioRequest is one line of the newline-delimited stdio protocol: the
// execute body shape augmented with the target tool name.
type stdioRequest struct {
	Tool string `json:"tool"`
	ExecuteBody
}

// StdioServer reads one JSON request per line from r and writes one JSON
// ToolResult per line to w, until r is exhausted or ctx is canceled.
type StdioServer struct {
	engine         *engine.Engine
	tools          *toolreg.Registry
	allowIntrusive bool
}

// NewStdioServer constructs a StdioServer.
func NewStdioServer(eng *engine.Engine, tools *toolreg.Registry, allowIntrusive bool) *StdioServer {
	return &StdioServer{engine: eng, tools: tools, allowIntrusive: allowIntrusive}
}

// Serve runs the read-execute-write loop until ctx is canceled or r returns
// io.EOF. It never returns an error for a single malformed line — that line
// gets an error response and the loop continues.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			if len(line) == 0 {
				continue
			}
			if err := enc.Encode(s.handleLine(ctx, line)); err != nil {
				return err
			}
		}
	}
}

func (s *StdioServer) handleLine(ctx context.Context, line string) engine.Result {
	var req stdioRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return engine.Result{Error: "malformed request: " + err.Error(), ErrorKind: "validation_error"}
	}
	if req.Tool == "" {
		return engine.Result{Error: "tool is required", ErrorKind: "validation_error"}
	}
	if _, known := s.tools.Descriptor(req.Tool); !known {
		return engine.Result{Error: "unknown tool: " + req.Tool, ErrorKind: "not_found"}
	}
	if !s.tools.Enabled(req.Tool) {
		return engine.Result{Error: "tool is disabled: " + req.Tool, ErrorKind: "not_found"}
	}
	if err := req.ExecuteBody.Validate(); err != nil {
		return engine.Result{Error: err.Error(), ErrorKind: "validation_error"}
	}

	slog.Debug("dispatcher.stdio_request", "tool", req.Tool, "correlation_id", req.CorrelationID)
	return s.engine.Execute(ctx, toRequest(req.Tool, req.ExecuteBody, s.allowIntrusive))
}
