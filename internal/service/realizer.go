// Package service realizes scheduled scenario units into persisted artifacts.
package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/conversation"
	"github.com/capitalize-ai/corpus-generator/internal/export"
	"github.com/capitalize-ai/corpus-generator/internal/identity"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/internal/scheduler"
	"github.com/capitalize-ai/corpus-generator/internal/stats"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
	"github.com/capitalize-ai/corpus-generator/pkg/metrics"
)

// BlastStressTest names the stress test recorded for blast emails.
const BlastStressTest = "Blast Email Expansion"

var tracer = otel.Tracer("corpusgen/service")

// Publisher receives an event for every persisted artifact.
type Publisher interface {
	Publish(ctx context.Context, event model.ArtifactEvent) error
}

// ChatSink persists a chat conversation in one or more formats.
type ChatSink interface {
	Export(conv *model.ChatConversation) ([]model.Artifact, error)
}

// Realizer turns scheduler units into artifacts on disk. It implements
// scheduler.Worker.
type Realizer struct {
	builder   *conversation.Builder
	email     export.EmailEncoder
	calendar  export.CalendarEncoder
	chat      ChatSink
	stats     *stats.Aggregator
	publisher Publisher
	runID     string
	seed      int64
	logger    *logger.Logger
}

// Option configures a Realizer.
type Option func(*Realizer)

// WithPublisher mirrors artifact events to p.
func WithPublisher(p Publisher) Option {
	return func(r *Realizer) { r.publisher = p }
}

// WithRunID tags published events with id.
func WithRunID(id string) Option {
	return func(r *Realizer) { r.runID = id }
}

// WithSeed makes unit randomness reproducible.
func WithSeed(seed int64) Option {
	return func(r *Realizer) { r.seed = seed }
}

// NewRealizer creates a Realizer.
func NewRealizer(
	builder *conversation.Builder,
	email export.EmailEncoder,
	calendar export.CalendarEncoder,
	chat ChatSink,
	agg *stats.Aggregator,
	log *logger.Logger,
	opts ...Option,
) *Realizer {
	r := &Realizer{
		builder:  builder,
		email:    email,
		calendar: calendar,
		chat:     chat,
		stats:    agg,
		logger:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ scheduler.Worker = (*Realizer)(nil)

// BaseName returns the per-unit file stem <base>_r<pass>_<6 hex>.
func (r *Realizer) BaseName(u scheduler.Unit) string {
	suffix := strings.ToLower(identity.DeriveN(r.unitKey(u), "", 6, identity.HexAlphabet))
	return fmt.Sprintf("%s_r%d_%s", u.Scenario.BaseName, u.Pass, suffix)
}

func (r *Realizer) unitKey(u scheduler.Unit) string {
	return fmt.Sprintf("%d|%s|%d|%d", r.seed, u.Scenario.ID, u.Pass, u.Occurrence)
}

// Realize realizes one unit and returns the number of artifacts written.
func (r *Realizer) Realize(ctx context.Context, u scheduler.Unit) (int, error) {
	sc := u.Scenario
	ctx, span := tracer.Start(ctx, "service.realize")
	span.SetAttributes(
		attribute.String("scenario.id", sc.ID),
		attribute.String("scenario.kind", string(sc.Kind)),
		attribute.Int("unit.pass", u.Pass),
		attribute.Int("unit.occurrence", u.Occurrence),
	)
	defer span.End()

	log := r.logger.WithScenario(sc.ID, u.Pass, u.Occurrence)
	session := r.builder.NewSession(identity.Seed(r.unitKey(u)), log)
	base := r.BaseName(u)

	r.stats.TriggerScenario(sc.Description)
	if sc.IsBlast() {
		r.stats.AddStressTest(BlastStressTest)
	}

	var (
		n   int
		err error
	)
	switch sc.Kind {
	case model.KindThread:
		n, err = r.thread(ctx, session, u, base)
	case model.KindStandalone:
		n, err = r.standalone(ctx, session, u, base)
	case model.KindCalendar:
		n, err = r.calendarEvent(ctx, session, u, base)
	case model.KindChat:
		n, err = r.chatConversation(ctx, session, u, base)
	default:
		err = fmt.Errorf("unknown scenario kind %q", sc.Kind)
	}

	span.SetAttributes(attribute.Int("artifacts", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return n, err
	}
	log.Info("scenario realized", zap.String("base_name", base), zap.Int("artifacts", n))
	return n, nil
}

func (r *Realizer) thread(ctx context.Context, s *conversation.Session, u scheduler.Unit, base string) (int, error) {
	msgs, genErr := s.Thread(ctx, u.Scenario, u.Occurrence)
	n := 0
	for i, msg := range msgs {
		if err := r.persistEmail(ctx, u, msg, fmt.Sprintf("%s_%d", base, i+1)); err != nil {
			return n, err
		}
		n++
	}
	return n, genErr
}

func (r *Realizer) standalone(ctx context.Context, s *conversation.Session, u scheduler.Unit, base string) (int, error) {
	msg, err := s.Standalone(ctx, u.Scenario, u.Occurrence)
	if err != nil {
		return 0, err
	}
	if err := r.persistEmail(ctx, u, msg, base); err != nil {
		return 0, err
	}
	return 1, nil
}

func (r *Realizer) persistEmail(ctx context.Context, u scheduler.Unit, msg *model.Message, name string) error {
	a, err := r.email.Encode(msg, name, u.Scenario.Description)
	if err != nil {
		return fmt.Errorf("failed to persist email %s: %w", name, err)
	}
	r.stats.AddCustodians(msg.Sender.Email)
	r.record(ctx, u, a)
	return nil
}

func (r *Realizer) calendarEvent(ctx context.Context, s *conversation.Session, u scheduler.Unit, base string) (int, error) {
	ev, err := s.Calendar(ctx, u.Scenario, u.Occurrence)
	if err != nil {
		return 0, err
	}
	a, err := r.calendar.Encode(ev, base)
	if err != nil {
		return 0, fmt.Errorf("failed to persist calendar event %s: %w", base, err)
	}
	r.stats.AddCustodians(a.Custodians...)
	r.record(ctx, u, a)
	return 1, nil
}

func (r *Realizer) chatConversation(ctx context.Context, s *conversation.Session, u scheduler.Unit, base string) (int, error) {
	conv, err := s.Chat(ctx, u.Scenario, u.Occurrence)
	if err != nil {
		return 0, err
	}
	conv.Name = base

	artifacts, exportErr := r.chat.Export(conv)
	for _, a := range artifacts {
		switch model.ChatFormat(a.Format) {
		case model.ChatSlack:
			r.stats.TriggerScenario("Slack: " + export.ChannelName(conv.Name))
		case model.ChatWebex:
			r.stats.TriggerScenario("Webex: " + export.RoomTitle(conv.Name))
		}
		r.stats.AddCustodians(a.Custodians...)
		r.record(ctx, u, a)
	}
	// One conversation counts once toward the target however many formats
	// it was exported to; stats keep the per-format count.
	if len(artifacts) == 0 {
		return 0, exportErr
	}
	return 1, exportErr
}

// record counts an artifact and publishes its event.
func (r *Realizer) record(ctx context.Context, u scheduler.Unit, a model.Artifact) {
	r.stats.AddArtifact(a.Kind)
	r.stats.AddTimestamp(a.Timestamp)
	metrics.RecordArtifact(string(a.Kind))

	if r.publisher == nil {
		return
	}
	event := model.NewArtifactEvent(r.runID, u.Scenario.ID, u.Pass, u.Occurrence, a)
	if err := r.publisher.Publish(ctx, event); err != nil {
		metrics.PublishFailures.Inc()
		r.logger.WithArtifact(string(a.Kind), a.ID).Warn("failed to publish artifact event",
			zap.String("scenario_id", u.Scenario.ID),
			zap.Error(err),
		)
	}
}
