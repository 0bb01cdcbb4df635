package usecases

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.yaml.in/yaml/v3"
)

//go:embed prompts/system.yml
var systemPrompt embed.FS

// ErrToolCycleLimit is returned when the assistant keeps requesting tools
// past the configured cycle budget without producing a final answer.
var ErrToolCycleLimit = errors.New("tool cycle limit reached without a final answer")

// ToolUseOrchestrator defines the interface for the conversation loop: it
// alternates assistant turns with tool executions until the assistant
// produces a turn without tool calls.
type ToolUseOrchestrator interface {
	Execute(ctx context.Context, conversation *domain.Conversation, userMessage string) (string, error)
}

// ToolUseOrchestratorImpl is the implementation of the ToolUseOrchestrator use case.
type ToolUseOrchestratorImpl struct {
	completions   domain.CompletionService
	tools         domain.ToolChannel
	timeProvider  domain.CurrentTimeProvider
	model         string
	maxTokens     int
	maxToolCycles int
}

// NewToolUseOrchestratorImpl creates a new instance of ToolUseOrchestratorImpl.
func NewToolUseOrchestratorImpl(
	completions domain.CompletionService,
	tools domain.ToolChannel,
	timeProvider domain.CurrentTimeProvider,
	model string,
	maxTokens, maxToolCycles int,
) ToolUseOrchestratorImpl {
	return ToolUseOrchestratorImpl{
		completions:   completions,
		tools:         tools,
		timeProvider:  timeProvider,
		model:         model,
		maxTokens:     maxTokens,
		maxToolCycles: maxToolCycles,
	}
}

// Execute appends the user message to the conversation and runs the loop to a
// final text answer. The conversation is owned exclusively for the whole run.
func (o ToolUseOrchestratorImpl) Execute(ctx context.Context, conversation *domain.Conversation, userMessage string) (string, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("conversation.id", conversation.ID.String())),
	)
	defer span.End()

	conversation.Acquire()
	defer conversation.Release()

	system, err := o.buildSystemPrompt()
	if telemetry.RecordErrorAndStatus(span, err) {
		return "", err
	}

	catalog, err := o.tools.ListTools(spanCtx)
	if telemetry.RecordErrorAndStatus(span, err) {
		return "", err
	}
	if len(catalog) == 0 {
		catalog = nil
	}

	conversation.Append(domain.Turn{
		Role:     domain.ChatRole_User,
		Segments: []domain.Segment{domain.TextSegment(userMessage)},
	})

	for cycle := 0; cycle < o.maxToolCycles; cycle++ {
		turn, err := o.completions.CreateTurn(spanCtx, domain.CompletionRequest{
			Model:     o.model,
			MaxTokens: o.maxTokens,
			System:    system,
			Turns:     conversation.Turns(),
			Tools:     catalog,
		})
		if telemetry.RecordErrorAndStatus(span, err) {
			return "", err
		}
		conversation.Append(turn)

		calls := turn.ToolCalls()
		if len(calls) == 0 {
			return turn.JoinedText(), nil
		}

		// One result per call, assembled in request order into a single user turn.
		results := make([]domain.Segment, 0, len(calls))
		for _, call := range calls {
			results = append(results, o.executeToolCall(spanCtx, call))
		}
		conversation.Append(domain.Turn{Role: domain.ChatRole_User, Segments: results})
	}

	err = ErrToolCycleLimit
	telemetry.RecordErrorAndStatus(span, err)
	return "", err
}

// executeToolCall invokes one tool and folds any failure into an in-band
// error result, so a single tool failure never aborts the conversation.
func (o ToolUseOrchestratorImpl) executeToolCall(ctx context.Context, call domain.ToolCall) domain.Segment {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("tool.name", call.Name)),
	)
	defer span.End()

	content, err := o.tools.CallTool(spanCtx, call.Name, call.Arguments)
	if telemetry.RecordErrorAndStatus(span, err) {
		RecordToolInvocation(spanCtx, call.Name, false)
		return domain.Segment{ToolResult: &domain.ToolResult{
			CallID:  call.ID,
			Content: "Tool error: " + err.Error(),
			IsError: true,
		}}
	}
	RecordToolInvocation(spanCtx, call.Name, true)
	return domain.Segment{ToolResult: &domain.ToolResult{CallID: call.ID, Content: content}}
}

// buildSystemPrompt loads the embedded prompt and injects the current date.
func (o ToolUseOrchestratorImpl) buildSystemPrompt() (string, error) {
	file, err := systemPrompt.Open("prompts/system.yml")
	if err != nil {
		return "", fmt.Errorf("failed to open system prompt: %w", err)
	}
	defer file.Close() //nolint:errcheck

	var prompt struct {
		System string `yaml:"system"`
	}
	if err := yaml.NewDecoder(file).Decode(&prompt); err != nil {
		return "", fmt.Errorf("failed to decode system prompt: %w", err)
	}
	return fmt.Sprintf(prompt.System, o.timeProvider.Now().Format(time.DateOnly)), nil
}

// InitToolUseOrchestrator is the initializer for the ToolUseOrchestrator use case.
type InitToolUseOrchestrator struct {
	Completions  domain.CompletionService   `resolve:""`
	Tools        domain.ToolChannel         `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
	Model        string                     `config:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-latest"`
	MaxTokens    int                        `config:"COPILOT_MAX_TOKENS" default:"1400"`
	// MaxToolCycles bounds assistant/tool alternations in a single run.
	// It guarantees termination when the model keeps requesting tools.
	MaxToolCycles int `config:"COPILOT_MAX_TOOL_CYCLES" default:"25"`
}

// Initialize registers the ToolUseOrchestrator use case in the dependency container.
func (i InitToolUseOrchestrator) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[ToolUseOrchestrator](NewToolUseOrchestratorImpl(
		i.Completions,
		i.Tools,
		i.TimeProvider,
		i.Model,
		i.MaxTokens,
		i.MaxToolCycles,
	))
	return ctx, nil
}
