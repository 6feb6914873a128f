package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
	"github.com/capitalize-ai/corpus-generator/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	emailInstructions = "You are an AI assistant for generating simulated corporate emails for a fictional story. " +
		"Return a single, valid JSON object and nothing else. " +
		"The JSON object must have the keys: 'subject', 'body', 'sender_name', 'sender_email', 'recipients'. " +
		"'recipients' must be a list of lists, like [['Recipient Name', 'recipient@email.com']]. " +
		"You can OPTIONALLY include 'cc_recipients' and 'bcc_recipients' keys, following the same format as 'recipients'. " +
		"When asked to reply, your 'body' should ONLY contain the new reply content."

	calendarInstructions = "You are an AI assistant for generating simulated corporate calendar events for a fictional story. " +
		"Return a single, valid JSON object and nothing else. " +
		"The JSON object must have the keys: 'summary' (the event title), 'description' (event details), " +
		"'organizer_name', 'organizer_email', and 'attendees'. " +
		"'attendees' must be a list of lists, like [['Attendee Name', 'attendee@email.com']]."

	chatInstructions = "You are an AI assistant for generating simulated corporate chat logs (Slack/Teams). " +
		"Return a single, valid JSON object and nothing else. " +
		"The JSON object must have a key 'messages', which is a list of objects. " +
		"Each object in the list must have: 'sender_name', 'sender_email', 'body' (the text), " +
		"and optional 'thread_ts' (for threaded replies).\n" +
		"CHAT REALISM REQUIREMENTS:\n" +
		"1. Most messages are 1-3 sentences. Simulate rapid-fire texting, not email paragraphs.\n" +
		"2. Break multi-point thoughts into separate messages sent seconds apart.\n" +
		"3. People reply before others finish their thought.\n" +
		"4. Casual tone: lowercase, abbreviations (btw, fyi), occasional typos and emoji.\n" +
		"5. Quick responses like 'ok', 'got it', 'on it' are common.\n" +
		"6. For a reply inside a thread, set 'thread_ts' to the zero-based index of the parent message."
)

// Instructions returns the system instructions for kind.
func Instructions(kind model.ContentKind) string {
	switch kind {
	case model.ContentEmail:
		return emailInstructions
	case model.ContentCalendar:
		return calendarInstructions
	case model.ContentChat:
		return chatInstructions
	}
	return ""
}

// Request is a structured generation request.
type Request struct {
	Kind        model.ContentKind
	Prompt      string
	Temperature float64
}

// Generator turns prompts into validated content payloads.
type Generator struct {
	client Client
	model  string
	log    *logger.Logger
	tracer trace.Tracer
}

// NewGenerator creates a Generator. client is usually a RetryClient.
func NewGenerator(client Client, modelName string, log *logger.Logger) *Generator {
	return &Generator{
		client: client,
		model:  modelName,
		log:    log,
		tracer: otel.Tracer("corpusgen/llm"),
	}
}

// Generate requests content of the given kind. Rate-limit and provider
// failures come back wrapped in ErrRateLimited or ErrProvider; a payload of
// the wrong shape yields ErrMalformedResponse.
func (g *Generator) Generate(ctx context.Context, req Request) (model.Content, error) {
	ctx, span := g.tracer.Start(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.provider", g.client.Name()),
			attribute.String("llm.kind", string(req.Kind)),
			attribute.Float64("llm.temperature", req.Temperature),
		),
	)
	defer span.End()

	instructions := Instructions(req.Kind)
	if instructions == "" {
		return nil, fmt.Errorf("unsupported content kind %q", req.Kind)
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, &CompletionRequest{
		Model:       g.model,
		System:      instructions,
		Messages:    []ChatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		JSON:        true,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordGeneration(g.client.Name(), string(req.Kind), statusOf(err), elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}

	content, err := Decode(req.Kind, resp.Content)
	status := "ok"
	if err != nil {
		status = "malformed"
	}
	metrics.RecordGeneration(g.client.Name(), string(req.Kind), status, elapsed, resp.TokensIn, resp.TokensOut)
	span.SetAttributes(
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
	)
	if err != nil {
		g.log.Warn("generation returned malformed content",
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response")
		return nil, err
	}
	return content, nil
}

func statusOf(err error) string {
	if errors.Is(err, ErrRateLimited) {
		return "rate_limited"
	}
	return "error"
}

// Decode parses a raw completion into the payload for kind, checking that
// every required key is present before validating the typed value.
func Decode(kind model.ContentKind, raw string) (model.Content, error) {
	body := stripCodeFence(raw)

	var keys map[string]jsoniter.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %w", ErrMalformedResponse, err)
	}
	var missing []string
	for _, k := range kind.RequiredKeys() {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	content, err := model.NewContent(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), content); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return content, nil
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
