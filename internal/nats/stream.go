package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/corpus-generator/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// StreamName is the name of the artifact stream.
	StreamName = "CORPUS"

	// SubjectPrefix is the prefix for all artifact subjects.
	SubjectPrefix = "corpus"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the artifact stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Artifacts written by corpus generation runs",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// subjectToken replaces characters NATS reserves in subject tokens.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// ArtifactSubject returns the subject an artifact event is published on.
func ArtifactSubject(runID string, kind model.ArtifactKind, scenarioID string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, subjectToken(runID), kind, subjectToken(scenarioID))
}

// RunFilter returns the filter subject for all artifacts of a run.
func RunFilter(runID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(runID))
}

// Publish publishes an artifact event to JetStream. Events without a run
// are attributed to the connection's run.
func (m *StreamManager) Publish(ctx context.Context, event model.ArtifactEvent) error {
	if event.RunID == "" {
		event.RunID = m.client.RunID()
	}
	subject := ArtifactSubject(event.RunID, event.Kind, event.ScenarioID)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact event: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish artifact event: %w", err)
	}

	return nil
}

// Artifacts retrieves artifact events of a run starting after a stream
// sequence. It returns the events, the last sequence seen and whether more
// may be available.
func (m *StreamManager) Artifacts(ctx context.Context, runID string, afterSequence uint64, limit int) ([]model.ArtifactEvent, uint64, bool, error) {
	js := m.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: RunFilter(runID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch artifacts: %w", err)
	}

	var (
		events       []model.ArtifactEvent
		lastSequence uint64
	)
	for msg := range batch.Messages() {
		var event model.ArtifactEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			lastSequence = meta.Sequence.Stream
		}
		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, len(events) == limit, nil
}
