// Package claude adapts the Anthropic Messages API to the domain
// CompletionService interface.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CompletionAdapter implements domain.CompletionService on the Anthropic API.
type CompletionAdapter struct {
	client anthropic.Client
}

// NewCompletionAdapter creates a new adapter around a configured client.
func NewCompletionAdapter(client anthropic.Client) CompletionAdapter {
	return CompletionAdapter{client: client}
}

// CreateTurn sends the conversation and returns the assistant's next turn.
func (a CompletionAdapter) CreateTurn(ctx context.Context, req domain.CompletionRequest) (domain.Turn, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("llm.model", req.Model)),
	)
	defer span.End()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  buildMessages(req.Turns),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	msg, err := a.client.Messages.New(spanCtx, params)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.Turn{}, fmt.Errorf("message creation failed: %w", err)
	}

	RecordTokensUsed(spanCtx, msg.Usage.InputTokens, msg.Usage.OutputTokens)
	return parseMessage(msg), nil
}

// buildMessages converts the turn history into API message params. Turns whose
// segments all convert to nothing are dropped rather than sent empty.
func buildMessages(turns []domain.Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Segments))
		for _, seg := range turn.Segments {
			switch {
			case seg.ToolCall != nil:
				blocks = append(blocks, anthropic.NewToolUseBlock(seg.ToolCall.ID, seg.ToolCall.Arguments, seg.ToolCall.Name))
			case seg.ToolResult != nil:
				blocks = append(blocks, anthropic.NewToolResultBlock(seg.ToolResult.CallID, seg.ToolResult.Content, seg.ToolResult.IsError))
			default:
				if txt := strings.TrimSpace(seg.Text); txt != "" {
					blocks = append(blocks, anthropic.NewTextBlock(txt))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if turn.Role == domain.ChatRole_Assistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func buildTools(descriptors []domain.ToolDescriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		properties, required := splitSchema(d.InputSchema)
		param := anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}

// splitSchema pulls properties and required out of a JSON-schema object map.
func splitSchema(schema map[string]any) (any, []string) {
	properties := schema["properties"]
	if properties == nil {
		properties = map[string]any{}
	}
	var required []string
	if raw, ok := schema["required"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	return properties, required
}

// parseMessage converts the response content blocks into a domain turn,
// preserving block order so tool calls replay in request order.
func parseMessage(msg *anthropic.Message) domain.Turn {
	turn := domain.Turn{Role: domain.ChatRole_Assistant}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Segments = append(turn.Segments, domain.TextSegment(variant.Text))
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(variant.Input) > 0 {
				_ = json.Unmarshal(variant.Input, &args)
			}
			turn.Segments = append(turn.Segments, domain.Segment{ToolCall: &domain.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			}})
		}
	}
	return turn
}

// InitCompletionAdapter initializes the Anthropic-backed completion service.
type InitCompletionAdapter struct {
	HttpClient *http.Client `resolve:""`
	APIKey     string       `config:"ANTHROPIC_API_KEY"`
}

// Initialize registers the completion service in the dependency container.
func (i InitCompletionAdapter) Initialize(ctx context.Context) (context.Context, error) {
	if i.APIKey == "" {
		return ctx, domain.NewConfigurationErr("missing required settings: ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(
		option.WithAPIKey(i.APIKey),
		option.WithHTTPClient(i.HttpClient),
	)
	depend.Register[domain.CompletionService](NewCompletionAdapter(client))
	return ctx, nil
}
