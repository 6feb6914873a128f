package conversation

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

func newRenderer(seed int64) *Renderer {
	return NewRenderer(rand.New(rand.NewSource(seed)), testDirectory(), logger.Nop())
}

func TestRender_SenderAndRecipientResolveToDifferentPeople(t *testing.T) {
	// "Taylor Brooks" and "T. Brooks" share one address.
	pool := []string{"Taylor Brooks", "T. Brooks", "Jamie Chen"}
	step := model.PromptStep{Templates: []string{"Write from {sender} to {recipient}"}}

	for seed := int64(0); seed < 50; seed++ {
		r := newRenderer(seed)
		out := r.Render(step, map[string][]string{model.EmployeePool: pool}, 1)

		parts := strings.SplitN(strings.TrimPrefix(out, "Write from "), " to ", 2)
		require.Len(t, parts, 2, out)
		dir := testDirectory()
		assert.NotEqual(t, dir.ResolveEmail(parts[0]), dir.ResolveEmail(parts[1]), out)
	}
}

func TestRender_UnknownNamesArePresumedDistinct(t *testing.T) {
	r := newRenderer(1)
	out := r.Render(model.PromptStep{Templates: []string{"{sender}>{recipient}"}},
		map[string][]string{model.EmployeePool: {"Ghost A", "Ghost B"}}, 1)

	assert.Contains(t, []string{"Ghost A>Ghost B", "Ghost B>Ghost A"}, out)
}

func TestRender_SubstitutesOtherVariables(t *testing.T) {
	r := newRenderer(3)
	out := r.Render(model.PromptStep{Templates: []string{"Discuss {topic} with {topic} focus by {day}"}},
		map[string][]string{"topic": {"pricing"}, "day": {"Friday"}}, 1)

	assert.Equal(t, "Discuss pricing with pricing focus by Friday", out)
}

func TestRender_FirstOccurrenceIsUnchanged(t *testing.T) {
	r := newRenderer(3)
	out := r.Render(model.PromptStep{Templates: []string{"Draft a note"}}, nil, 1)
	assert.Equal(t, "Draft a note", out)
}

func TestVary_ReplacesLeadingVerb(t *testing.T) {
	allowed := append([]string{}, starters["high"]...)
	for seed := int64(0); seed < 30; seed++ {
		out := newRenderer(seed).Vary("Write an update to the team", "high")
		require.True(t, strings.HasSuffix(out, " an update to the team"), out)

		head := strings.TrimSuffix(out, " an update to the team")
		matched := false
		for _, s := range allowed {
			if strings.HasPrefix(head, s) {
				matched = true
			}
		}
		assert.True(t, matched, out)
	}
	assert.Equal(t, "Reply to Jamie", newRenderer(1).Vary("Reply to Jamie", "high"))
}

func TestSenderFromPrompt(t *testing.T) {
	r := newRenderer(1)

	p, ok := r.SenderFromPrompt("An email from Jamie Chen")
	require.True(t, ok)
	assert.Equal(t, "jamie@acme.com", p.Email)

	p, ok = r.SenderFromPrompt("Casey Bennett writes to the board")
	require.True(t, ok)
	assert.Equal(t, "Casey Bennett", p.Name)

	_, ok = r.SenderFromPrompt("Nobody in particular")
	assert.False(t, ok)

	assert.Equal(t, "\n\nIMPORTANT: Write this email in the style of Jamie Chen: terse",
		r.StyleInstruction("Write from Jamie Chen"))
}

func TestQuoteBlock(t *testing.T) {
	msg := &model.Message{
		Sender:     model.Participant{Name: "Jamie Chen", Email: "jamie@acme.com"},
		Recipients: []model.Participant{{Name: "Taylor Brooks", Email: "taylor@acme.com"}},
		Cc:         []model.Participant{{Name: "Casey Bennett", Email: "casey@acme.com"}},
		Subject:    "Pricing",
		Body:       "line one\nline two\n",
		CreatedAt:  time.Date(2024, time.July, 8, 14, 5, 0, 0, time.UTC),
	}

	want := "\n\n-----Original Message-----\n" +
		"From: Jamie Chen <jamie@acme.com>\n" +
		"Sent: Monday, July 08, 2024 02:05 PM\n" +
		"To: Taylor Brooks <taylor@acme.com>\n" +
		"Cc: Casey Bennett <casey@acme.com>\n" +
		"Subject: Pricing\n\n" +
		"> line one\n> line two"
	assert.Equal(t, want, QuoteBlock(msg))
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Pricing", ReplySubject("Pricing"))
	assert.Equal(t, "re: Pricing", ReplySubject("re: Pricing"))
}

func TestNearDuplicate_ChangesOnlyFormatting(t *testing.T) {
	body := "Hello\n\nSee below"
	for seed := int64(0); seed < 20; seed++ {
		out := NearDuplicate(rand.New(rand.NewSource(seed)), body)
		assert.NotEqual(t, body, out)
		assert.Contains(t, out, "Hello")
		assert.Contains(t, out, "See below")
	}
}
