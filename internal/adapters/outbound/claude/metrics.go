package claude

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter      = otel.Meter("claude")
	TokensUsed metric.Int64Counter
)

func init() {
	var err error
	TokensUsed, err = meter.Int64Counter(
		"llm_tokens_used_total",
		metric.WithDescription("Total LLM tokens consumed"),
	)
	if err != nil {
		panic(err)
	}
}

// RecordTokensUsed records the token usage of one completion call.
func RecordTokensUsed(ctx context.Context, inputTokens, outputTokens int64) {
	TokensUsed.Add(ctx, inputTokens, metric.WithAttributes(
		attribute.String("token_type", "input"),
	))
	TokensUsed.Add(ctx, outputTokens, metric.WithAttributes(
		attribute.String("token_type", "output"),
	))
}
