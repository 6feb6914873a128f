package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioWith(desc string) *Scenario {
	return &Scenario{ID: desc, Description: desc}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in        string
		wantAll   bool
		wantTags  []Tag
		wantNoise bool
	}{
		{in: "", wantAll: true, wantNoise: true},
		{in: "all", wantAll: true, wantNoise: true},
		{in: "antitrust", wantTags: []Tag{TagAntitrust}, wantNoise: true},
		{in: "antitrust_only", wantTags: []Tag{TagAntitrust}, wantNoise: false},
		{in: "antitrust, safety_fraud", wantTags: []Tag{TagAntitrust, TagSafetyFraud}, wantNoise: true},
		{in: "antitrust,hr_misconduct_only", wantTags: []Tag{TagAntitrust, TagHRMisconduct}, wantNoise: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := ParseFilter(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAll, f.IsAll())
			assert.Equal(t, tt.wantNoise, f.IncludeNoise)
			for _, tag := range tt.wantTags {
				assert.True(t, f.Tags[tag], "missing tag %s", tag)
			}
			assert.Len(t, f.Tags, len(tt.wantTags))
		})
	}
}

func TestParseFilter_UnknownTag(t *testing.T) {
	_, err := ParseFilter("legal_privilege")
	assert.Error(t, err)
}

func TestFilter_Apply(t *testing.T) {
	// arrange
	signal := scenarioWith("(S1A) Price coordination call")
	fraud := scenarioWith("(S2) Shred the test data")
	noise := scenarioWith("(S7) Lunch order thread")
	untagged := scenarioWith("Misc")
	all := []*Scenario{signal, fraud, noise, untagged}

	withNoise, err := ParseFilter("antitrust")
	require.NoError(t, err)
	signalOnly, err := ParseFilter("antitrust_only")
	require.NoError(t, err)

	// act / assert
	assert.Equal(t, []*Scenario{signal, noise}, withNoise.Apply(all))
	assert.Equal(t, []*Scenario{signal}, signalOnly.Apply(all))
	assert.Equal(t, all, AllScenarios().Apply(all))
}

func TestFilter_StringRoundTrip(t *testing.T) {
	f, err := ParseFilter("safety_fraud,antitrust_only")
	require.NoError(t, err)

	again, err := ParseFilter(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestTagsOf(t *testing.T) {
	assert.Equal(t, []Tag{TagAntitrust}, TagsOf("(S1B) Follow-up"))
	assert.Empty(t, TagsOf("(S9) Noise"))
	assert.True(t, IsSignal("(S3) Privileged advice"))
	assert.False(t, IsSignal("(S9) Noise"))
}

func TestAddress_UnmarshalJSON(t *testing.T) {
	var got []Address
	err := json.Unmarshal([]byte(`[["Jamie Chen","jamie@acme.com"],{"name":"Drew","email":"drew@acme.com"},"ops@acme.com"]`), &got)
	require.NoError(t, err)

	assert.Equal(t, []Address{
		{Name: "Jamie Chen", Email: "jamie@acme.com"},
		{Name: "Drew", Email: "drew@acme.com"},
		{Email: "ops@acme.com"},
	}, got)
}

func TestThreadRef_AcceptsNumbers(t *testing.T) {
	var lines []ChatLine
	err := json.Unmarshal([]byte(`[{"body":"a","thread_ts":0},{"body":"b","thread_ts":"1"},{"body":"c","thread_ts":null}]`), &lines)
	require.NoError(t, err)

	assert.Equal(t, ThreadRef("0"), lines[0].ThreadRef)
	assert.Equal(t, ThreadRef("1"), lines[1].ThreadRef)
	assert.Equal(t, ThreadRef(""), lines[2].ThreadRef)
}

func TestContent_Validate(t *testing.T) {
	assert.ErrorIs(t, (&EmailContent{Body: "hi"}).Validate(), ErrInvalidContent)
	assert.NoError(t, (&EmailContent{Body: "hi", Recipients: []Address{{Email: "a@b.c"}}}).Validate())
	assert.ErrorIs(t, (&ChatContent{}).Validate(), ErrInvalidContent)
	assert.ErrorIs(t, (&CalendarContent{}).Validate(), ErrInvalidContent)
}

func TestDirectory(t *testing.T) {
	// arrange
	dir := NewDirectory([]Company{
		{Name: "ACME", Personnel: []Profile{
			{Name: "Jamie Chen", Email: "jamie@acme.com", Title: "Director"},
			{Name: "Taylor Brooks", Email: "taylor@acme.com", Title: "CEO"},
		}},
	})

	// act
	p, ok := dir.Lookup("taylor@acme.com")

	// assert
	require.True(t, ok)
	assert.Equal(t, "Taylor Brooks", p.Name)
	assert.Equal(t, "ACME", p.Company)
	assert.Equal(t, "jamie@acme.com", dir.ResolveEmail("Jamie Chen"))
	assert.Equal(t, "", dir.ResolveEmail("Nobody"))
	assert.Equal(t, []string{"jamie@acme.com", "taylor@acme.com"}, dir.Emails())
	assert.Contains(t, dir.ContextBlock(), "- Jamie Chen, Director (jamie@acme.com)")
}

func TestMessage_Custodians(t *testing.T) {
	m := Message{
		Sender:     Participant{Email: "a@x.com"},
		Recipients: []Participant{{Email: "b@x.com"}, {Email: "a@x.com"}, {Email: "broken"}},
		Cc:         []Participant{{Email: "c@x.com"}},
	}
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, m.Custodians())
}
