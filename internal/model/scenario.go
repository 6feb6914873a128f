// Package model defines data structures for the corpus generator.
package model

import (
	"strings"
)

// ScenarioKind is the kind of communication a scenario realizes.
type ScenarioKind string

const (
	KindThread     ScenarioKind = "thread"
	KindStandalone ScenarioKind = "standalone"
	KindCalendar   ScenarioKind = "calendar_event"
	KindChat       ScenarioKind = "chat"
)

// Valid reports whether k is a known scenario kind.
func (k ScenarioKind) Valid() bool {
	switch k {
	case KindThread, KindStandalone, KindCalendar, KindChat:
		return true
	}
	return false
}

// EmployeePool is the variable pool sampled for {sender} and {recipient}.
const EmployeePool = "employee_pool"

// PromptStep is one scheduled step of a scenario.
type PromptStep struct {
	// Probability is the chance the step is realized. Loaders default it to 1.
	Probability float64
	// Templates holds alternative prompt texts; one is chosen per realization.
	Templates []string
}

// Inclusion returns the step probability clamped to [0, 1].
func (p PromptStep) Inclusion() float64 {
	switch {
	case p.Probability < 0:
		return 0
	case p.Probability > 1:
		return 1
	}
	return p.Probability
}

// Scenario is a declarative unit describing one recurring kind of simulated
// communication. It is immutable once loaded.
type Scenario struct {
	ID                       string
	Kind                     ScenarioKind
	BaseName                 string
	Description              string
	Prompts                  []PromptStep
	Variables                map[string][]string
	NearDuplicateProbability float64
	Noise                    bool
	Temperature              *float64
	Tags                     []Tag
}

// IsBlast reports whether the scenario expands recipients for stress testing.
func (s *Scenario) IsBlast() bool {
	return strings.Contains(strings.ToLower(s.BaseName), "blast_email")
}

// HasMarker reports whether the description carries a tag marker like "(S1)".
func (s *Scenario) HasMarker(marker string) bool {
	return strings.Contains(s.Description, marker)
}
