package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/internal/stats"
)

func TestRender(t *testing.T) {
	// arrange
	agg := stats.New()
	for i := 0; i < 3; i++ {
		agg.AddArtifact(model.ArtifactEmail)
	}
	agg.AddArtifact(model.ArtifactChat)
	agg.AddCustodians("jamie@acme.com", "taylor@acme.com")
	agg.AddTimestamp(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	agg.AddTimestamp(time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC))
	agg.TriggerScenario("(S1) Pricing coordination")
	agg.TriggerScenario("(S1) Pricing coordination")
	agg.TriggerScenario("(S3) Privileged legal advice")
	agg.TriggerScenario("(S4) Sales pipeline update")
	agg.AddStressTest("Blast Email Expansion")

	filter, err := model.ParseFilter("antitrust")
	require.NoError(t, err)

	// act
	var buf bytes.Buffer
	err = Render(&buf, agg.Snapshot(), Options{
		OutputDir: "/tmp/corpus",
		Filter:    filter,
		Now:       time.Date(2024, time.April, 1, 8, 30, 0, 0, time.UTC),
	})

	// assert
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "CERTIFICATION REPORT   |   2024-04-01 08:30")
	assert.Contains(t, out, "Total Readable Documents: 4")
	assert.Contains(t, out, "Mar 01, 2024 - Mar 10, 2024 (10 days)")
	assert.Contains(t, out, "Active Custodians:        2")
	assert.Contains(t, out, "Emails (.eml):             3 ")
	assert.Contains(t, out, "Scenario filter: antitrust")
	assert.Contains(t, out, "THE NEEDLES (Critical Evidence): 3 events")
	assert.Contains(t, out, "Includes: Price-Fixing (Antitrust), Privilege (Attorney-Client)")
	assert.Contains(t, out, "THE HAYSTACK (Contextual Noise): 1 events")
	assert.Contains(t, out, "Includes: Sales chatter")
	assert.Contains(t, out, "[X] Metadata Explosion")
	assert.Contains(t, out, "Directory: /tmp/corpus")
}

func TestRender_EmptyRun(t *testing.T) {
	var buf bytes.Buffer

	err := Render(&buf, stats.New().Snapshot(), Options{OutputDir: "/out", Filter: model.AllScenarios()})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Simulated Date Range:     N/A")
	assert.Contains(t, out, "Includes: Various investigation scenarios")
	assert.Contains(t, out, "Includes: Business noise")
	assert.Contains(t, out, "[ ] No specific stress-test artifacts")
	assert.NotContains(t, out, "Scenario filter:")
}

func TestSplit(t *testing.T) {
	signal, noise := Split(map[string]int{
		"(S1A) Bid rigging":  2,
		"(S_HR) Complaint":   1,
		"(S9) Lunch":         4,
		"Slack: pricing-war": 1,
	})

	assert.Equal(t, map[string]int{"(S1A) Bid rigging": 2, "(S_HR) Complaint": 1}, signal)
	assert.Equal(t, map[string]int{"(S9) Lunch": 4, "Slack: pricing-war": 1}, noise)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRender_PropagatesWriteError(t *testing.T) {
	err := Render(failingWriter{}, stats.New().Snapshot(), Options{})
	assert.Error(t, err)
}
