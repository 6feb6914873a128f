package model

import (
	"time"
)

// ArtifactKind is the category an artifact is counted under.
type ArtifactKind string

const (
	ArtifactEmail      ArtifactKind = "email"
	ArtifactCalendar   ArtifactKind = "calendar"
	ArtifactChat       ArtifactKind = "chat"
	ArtifactAttachment ArtifactKind = "attachment"
)

// Artifact is one persisted output.
type Artifact struct {
	ID         string       `json:"id"`
	Kind       ArtifactKind `json:"kind"`
	Format     string       `json:"format,omitempty"`
	Paths      []string     `json:"paths"`
	Custodians []string     `json:"custodians"`
	Timestamp  time.Time    `json:"timestamp"`
}

// ArtifactEvent is published after an artifact has been written.
type ArtifactEvent struct {
	RunID      string       `json:"run_id"`
	ScenarioID string       `json:"scenario_id"`
	Pass       int          `json:"pass"`
	Occurrence int          `json:"occurrence"`
	Kind       ArtifactKind `json:"kind"`
	ArtifactID string       `json:"artifact_id"`
	Format     string       `json:"format,omitempty"`
	Paths      []string     `json:"paths"`
	Custodians []string     `json:"custodians"`
	Timestamp  time.Time    `json:"timestamp"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewArtifactEvent wraps an artifact with its run coordinates.
func NewArtifactEvent(runID, scenarioID string, pass, occurrence int, a Artifact) ArtifactEvent {
	return ArtifactEvent{
		RunID:      runID,
		ScenarioID: scenarioID,
		Pass:       pass,
		Occurrence: occurrence,
		Kind:       a.Kind,
		ArtifactID: a.ID,
		Format:     a.Format,
		Paths:      a.Paths,
		Custodians: a.Custodians,
		Timestamp:  a.Timestamp,
		CreatedAt:  time.Now().UTC(),
	}
}
