// Package enhancer is a reference implementation of the automation webhook
// the enhancement relay calls. It accepts {taskId, title, userEmail}, asks a
// Rewriter for a clearer title and writes it to the task's enhanced_title.
package enhancer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/quillworks/taskboard/internal/telemetry"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-latest"

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no Anthropic API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// Rewriter turns a terse task title into a clearer one.
type Rewriter interface {
	Rewrite(ctx context.Context, title string) (string, error)
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(ctx context.Context, title string) (string, error)

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(ctx context.Context, title string) (string, error) {
	return f(ctx, title)
}

// AnthropicRewriter rewrites titles with the Anthropic Messages API.
type AnthropicRewriter struct {
	client         anthropic.Client
	model          anthropic.Model
	prompt         *template.Template
	maxRetries     uint64
	initialBackoff time.Duration
}

// NewAnthropicRewriter creates a rewriter. Extra request options (base URL,
// HTTP client) are passed through to the SDK.
func NewAnthropicRewriter(apiKey, model string, opts ...option.RequestOption) (*AnthropicRewriter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api-key", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}

	tmpl, err := template.New("rewrite").Parse(rewritePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	// Retries are handled here, not by the SDK.
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	aiMetricsOnce.Do(initAIMetrics)

	return &AnthropicRewriter{
		client:         anthropic.NewClient(clientOpts...),
		model:          anthropic.Model(model),
		prompt:         tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/quillworks/taskboard/enhancer")
	aiMetrics.inputTokens, _ = m.Int64Counter("taskboard.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("taskboard.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("taskboard.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Rewrite implements Rewriter.
func (a *AnthropicRewriter) Rewrite(ctx context.Context, title string) (string, error) {
	var buf bytes.Buffer
	if err := a.prompt.Execute(&buf, struct{ Title string }{Title: title}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	tracer := telemetry.Tracer("github.com/quillworks/taskboard/enhancer")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	modelAttr := attribute.String("taskboard.ai.model", string(a.model))
	span.SetAttributes(modelAttr, attribute.String("taskboard.ai.operation", "enhance_title"))

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buf.String())),
		},
	}

	attempts := 0
	call := func() (string, error) {
		attempts++
		t0 := time.Now()
		message, err := a.client.Messages.New(ctx, params)
		if err != nil {
			if !isRetryable(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		if aiMetrics.inputTokens != nil {
			aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.duration.Record(ctx, float64(time.Since(t0).Milliseconds()), metric.WithAttributes(modelAttr))
		}
		span.SetAttributes(
			attribute.Int64("taskboard.ai.input_tokens", message.Usage.InputTokens),
			attribute.Int64("taskboard.ai.output_tokens", message.Usage.OutputTokens),
		)

		if len(message.Content) == 0 {
			return "", backoff.Permanent(errors.New("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return "", backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		return content.Text, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.initialBackoff
	bo.MaxElapsedTime = 0
	text, err := backoff.RetryWithData(call, backoff.WithContext(backoff.WithMaxRetries(bo, a.maxRetries), ctx))
	span.SetAttributes(attribute.Int("taskboard.ai.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("rewrite title after %d attempt(s): %w", attempts, err)
	}

	rewritten := cleanTitle(text)
	if rewritten == "" {
		return "", errors.New("model returned an empty title")
	}
	return rewritten, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}

// cleanTitle keeps the first line and strips quotes the model tends to add.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if line, _, ok := strings.Cut(s, "\n"); ok {
		s = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Trim(s, "\"'`"))
}

const rewritePromptTemplate = `You are improving the title of an item on a personal to-do list.

Original title: {{.Title}}

Rewrite it as one short, specific, actionable sentence in the same language as the original.
Keep the user's intent; do not invent details that change what has to be done.
Reply with the new title only, no quotes and no explanation.`
