// Package stats aggregates run statistics from concurrent workers.
package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/capitalize-ai/corpus-generator/internal/model"
)

// Aggregator collects counters under a single mutex. The lock is held only
// for the update itself.
type Aggregator struct {
	mu              sync.Mutex
	artifacts       map[model.ArtifactKind]int
	attachmentTypes map[string]int
	triggers        map[string]int
	custodians      map[string]struct{}
	timestamps      []time.Time
	stressTests     []string
	total           int
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		artifacts:       make(map[model.ArtifactKind]int),
		attachmentTypes: make(map[string]int),
		triggers:        make(map[string]int),
		custodians:      make(map[string]struct{}),
	}
}

// AddArtifact counts one artifact of kind.
func (a *Aggregator) AddArtifact(kind model.ArtifactKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.artifacts[kind]++
	a.total++
}

// AddAttachment counts an attachment by file extension.
func (a *Aggregator) AddAttachment(ext string) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.artifacts[model.ArtifactAttachment]++
	a.attachmentTypes[ext]++
	a.total++
}

// TriggerScenario counts one realization of the named scenario.
func (a *Aggregator) TriggerScenario(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.triggers[name]++
}

// AddCustodians records addresses. Values without an "@" are ignored.
func (a *Aggregator) AddCustodians(addrs ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, addr := range addrs {
		if strings.Contains(addr, "@") {
			a.custodians[addr] = struct{}{}
		}
	}
}

// AddTimestamp records an artifact date.
func (a *Aggregator) AddTimestamp(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timestamps = append(a.timestamps, t)
}

// AddStressTest records a stress test name once.
func (a *Aggregator) AddStressTest(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.stressTests {
		if s == name {
			return
		}
	}
	a.stressTests = append(a.stressTests, name)
}

// Total returns the number of artifacts counted so far.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Snapshot is a point-in-time copy of the aggregated statistics.
type Snapshot struct {
	Artifacts       map[model.ArtifactKind]int `json:"artifacts"`
	AttachmentTypes map[string]int             `json:"attachment_types"`
	Triggers        map[string]int             `json:"scenarios_triggered"`
	Custodians      []string                   `json:"custodians"`
	StressTests     []string                   `json:"stress_tests"`
	Timestamps      int                        `json:"timestamps"`
	Earliest        time.Time                  `json:"earliest"`
	Latest          time.Time                  `json:"latest"`
	Total           int                        `json:"total"`
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Artifacts:       make(map[model.ArtifactKind]int, len(a.artifacts)),
		AttachmentTypes: make(map[string]int, len(a.attachmentTypes)),
		Triggers:        make(map[string]int, len(a.triggers)),
		Custodians:      make([]string, 0, len(a.custodians)),
		StressTests:     append([]string(nil), a.stressTests...),
		Timestamps:      len(a.timestamps),
		Total:           a.total,
	}
	for k, v := range a.artifacts {
		s.Artifacts[k] = v
	}
	for k, v := range a.attachmentTypes {
		s.AttachmentTypes[k] = v
	}
	for k, v := range a.triggers {
		s.Triggers[k] = v
	}
	for c := range a.custodians {
		s.Custodians = append(s.Custodians, c)
	}
	sort.Strings(s.Custodians)

	for i, t := range a.timestamps {
		if i == 0 || t.Before(s.Earliest) {
			s.Earliest = t
		}
		if i == 0 || t.After(s.Latest) {
			s.Latest = t
		}
	}
	return s
}

// HasDateRange reports whether any timestamp was recorded.
func (s Snapshot) HasDateRange() bool {
	return s.Timestamps > 0
}

// SpanDays returns the whole days between the earliest and latest dates.
func (s Snapshot) SpanDays() int {
	if !s.HasDateRange() {
		return 0
	}
	return int(s.Latest.Sub(s.Earliest).Hours() / 24)
}
