package model

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is an investigation category a scenario can belong to.
type Tag string

const (
	TagAntitrust    Tag = "antitrust"
	TagSafetyFraud  Tag = "safety_fraud"
	TagHRMisconduct Tag = "hr_misconduct"
)

// tagMarkers maps each tag to the description markers that identify it.
var tagMarkers = map[Tag][]string{
	TagAntitrust:    {"(S1)", "(S1A)", "(S1B)"},
	TagSafetyFraud:  {"(S2)"},
	TagHRMisconduct: {"(S_HR)"},
}

// noiseMarkers identify contextual scenarios, privilege review included.
var noiseMarkers = []string{
	"(S3)", "(S4)", "(S5)", "(S6)", "(S7)", "(S8)", "(S9)",
	"(S10)", "(S11)", "(S12)", "(S13)", "(S14)", "(S15)",
}

// signalMarkers decide which triggers the report counts as evidence.
var signalMarkers = []string{"(S1)", "(S1A)", "(S1B)", "(S2)", "(S3)", "(S_HR)"}

// KnownTags returns all tags in sorted order.
func KnownTags() []Tag {
	tags := make([]Tag, 0, len(tagMarkers))
	for t := range tagMarkers {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// TagsOf returns the tags whose markers appear in a scenario description.
func TagsOf(description string) []Tag {
	var out []Tag
	for _, t := range KnownTags() {
		for _, m := range tagMarkers[t] {
			if strings.Contains(description, m) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// IsSignal reports whether a trigger name refers to an evidence scenario.
func IsSignal(name string) bool {
	for _, m := range signalMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Filter selects scenarios by investigation tag. An empty tag set selects
// every scenario.
type Filter struct {
	Tags         map[Tag]bool
	IncludeNoise bool
}

// AllScenarios is the filter that keeps everything.
func AllScenarios() Filter {
	return Filter{IncludeNoise: true}
}

// IsAll reports whether the filter keeps every scenario.
func (f Filter) IsAll() bool {
	return len(f.Tags) == 0
}

// Match reports whether the scenario passes the filter.
func (f Filter) Match(s *Scenario) bool {
	if f.IsAll() {
		return true
	}
	for t := range f.Tags {
		for _, m := range tagMarkers[t] {
			if s.HasMarker(m) {
				return true
			}
		}
	}
	if f.IncludeNoise {
		for _, m := range noiseMarkers {
			if s.HasMarker(m) {
				return true
			}
		}
	}
	return false
}

// Apply returns the scenarios that pass the filter, in input order.
func (f Filter) Apply(scenarios []*Scenario) []*Scenario {
	if f.IsAll() {
		return scenarios
	}
	out := make([]*Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// String renders the filter in the form ParseFilter accepts.
func (f Filter) String() string {
	if f.IsAll() {
		return "all"
	}
	tags := make([]string, 0, len(f.Tags))
	for t := range f.Tags {
		tags = append(tags, string(t))
	}
	sort.Strings(tags)
	s := strings.Join(tags, ",")
	if !f.IncludeNoise {
		s += "_only"
	}
	return s
}

// ParseFilter parses "all", a comma-separated tag list, or tags carrying an
// "_only" suffix. Any "_only" item turns noise off for the whole filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllScenarios(), nil
	}

	f := Filter{Tags: make(map[Tag]bool), IncludeNoise: true}
	for _, item := range strings.Split(s, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if trimmed, ok := strings.CutSuffix(item, "_only"); ok {
			f.IncludeNoise = false
			item = trimmed
		}
		t := Tag(item)
		if _, ok := tagMarkers[t]; !ok {
			return Filter{}, fmt.Errorf("unknown scenario filter %q", item)
		}
		f.Tags[t] = true
	}
	if len(f.Tags) == 0 {
		return AllScenarios(), nil
	}
	return f, nil
}

// ChatFormat selects which chat exporters run.
type ChatFormat string

const (
	ChatSlack ChatFormat = "slack"
	ChatTeams ChatFormat = "teams"
	ChatWebex ChatFormat = "webex"
	ChatAll   ChatFormat = "all"
)

// ParseChatFormat validates a chat format name.
func ParseChatFormat(s string) (ChatFormat, error) {
	switch f := ChatFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case ChatSlack, ChatTeams, ChatWebex, ChatAll:
		return f, nil
	case "":
		return ChatAll, nil
	}
	return "", fmt.Errorf("unknown chat format %q", s)
}

// Includes reports whether format f enables exporter x.
func (f ChatFormat) Includes(x ChatFormat) bool {
	return f == ChatAll || f == x
}
