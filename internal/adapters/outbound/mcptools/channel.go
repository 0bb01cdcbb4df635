// Package mcptools implements domain.ToolChannel over a stdio MCP session.
// The session is owned by a single worker goroutine; callers submit requests
// through a channel, so at most one tool call is in flight on the session.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/symbiont/depend"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type toolRequest struct {
	name      string
	arguments map[string]any
	reply     chan toolReply
}

type toolReply struct {
	text string
	err  error
}

// Channel is the worker-owned MCP tool channel.
type Channel struct {
	catalog     []domain.ToolDescriptor
	requests    chan toolRequest
	done        chan struct{}
	closed      chan struct{}
	callTimeout time.Duration
}

// toolSession is the subset of the MCP client session the worker uses.
type toolSession interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// NewChannel connects to the tool server, discovers its tools once and starts
// the worker goroutine. Shut the channel down with Close.
func NewChannel(ctx context.Context, command string, args []string, callTimeout time.Duration) (*Channel, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "epm-copilot", Version: "1.0.0"}, nil)
	transport := &mcp.CommandTransport{Command: exec.Command(command, args...)}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("tool server connect failed: %w", err)
	}

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("tool discovery failed: %w", err)
	}

	catalog := make([]domain.ToolDescriptor, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		catalog = append(catalog, domain.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}

	c := &Channel{
		catalog:     catalog,
		requests:    make(chan toolRequest),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
		callTimeout: callTimeout,
	}
	go c.serve(session)
	return c, nil
}

// serve owns the session for its whole lifetime.
func (c *Channel) serve(session toolSession) {
	defer close(c.closed)
	defer session.Close() //nolint:errcheck

	for {
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      req.name,
				Arguments: req.arguments,
			})
			cancel()
			if err != nil {
				req.reply <- toolReply{err: err}
				continue
			}
			text := resultText(res.Content)
			if res.IsError {
				req.reply <- toolReply{err: errors.New(text)}
				continue
			}
			req.reply <- toolReply{text: text}
		}
	}
}

// ListTools returns the catalog discovered at connection time.
func (c *Channel) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	_, span := telemetry.Start(ctx)
	defer span.End()

	select {
	case <-c.closed:
		err := errors.New("tool channel is closed")
		telemetry.RecordErrorAndStatus(span, err)
		return nil, err
	default:
	}
	return c.catalog, nil
}

// CallTool submits one tool call to the worker and waits for its reply.
func (c *Channel) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	_, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("tool.name", name)),
	)
	defer span.End()

	req := toolRequest{name: name, arguments: arguments, reply: make(chan toolReply, 1)}
	select {
	case c.requests <- req:
	case <-c.closed:
		err := errors.New("tool channel is closed")
		telemetry.RecordErrorAndStatus(span, err)
		return "", err
	case <-ctx.Done():
		telemetry.RecordErrorAndStatus(span, ctx.Err())
		return "", ctx.Err()
	}

	select {
	case reply := <-req.reply:
		telemetry.RecordErrorAndStatus(span, reply.err)
		return reply.text, reply.err
	case <-ctx.Done():
		telemetry.RecordErrorAndStatus(span, ctx.Err())
		return "", ctx.Err()
	}
}

// Close stops the worker and closes the session. It blocks until the worker exits.
func (c *Channel) Close() {
	select {
	case <-c.closed:
		return
	default:
	}
	close(c.done)
	<-c.closed
}

// resultText converts tool result content to canonical text: text parts are
// joined, anything else falls back to its JSON serialization.
func resultText(content []mcp.Content) string {
	var parts []string
	for _, block := range content {
		if txt, ok := block.(*mcp.TextContent); ok && txt.Text != "" {
			parts = append(parts, txt.Text)
		}
	}
	if joined := strings.TrimSpace(strings.Join(parts, "\n")); joined != "" {
		return joined
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(raw)
}

// schemaToMap flattens a tool input schema to a plain map through its JSON form.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

var _ domain.ToolChannel = (*Channel)(nil)

// InitToolChannel initializes the MCP tool channel host-side dependency.
type InitToolChannel struct {
	Command string `config:"MCP_COMMAND"`
	// Args is the argument string of the tool server command, split on whitespace.
	Args        string        `config:"MCP_ARGS" default:""`
	CallTimeout time.Duration `config:"MCP_CALL_TIMEOUT" default:"120s"`

	channel *Channel
}

// Initialize connects the tool channel and registers it in the dependency container.
func (i *InitToolChannel) Initialize(ctx context.Context) (context.Context, error) {
	if i.Command == "" {
		return ctx, domain.NewConfigurationErr("missing required settings: MCP_COMMAND")
	}
	channel, err := NewChannel(ctx, i.Command, strings.Fields(i.Args), i.CallTimeout)
	if err != nil {
		return ctx, err
	}
	i.channel = channel
	depend.Register[domain.ToolChannel](channel)
	return ctx, nil
}

// Close shuts the tool channel down.
func (i *InitToolChannel) Close() {
	if i.channel != nil {
		i.channel.Close()
	}
}
