package conversation

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

const (
	senderPlaceholder    = "{sender}"
	recipientPlaceholder = "{recipient}"
	maxPairAttempts      = 10
)

var (
	starters = map[string][]string{
		"medium": {"Draft", "Write", "Compose", "Create", "Generate", "Produce"},
		"high":   {"Draft", "Write", "Compose", "Create", "Generate", "Produce", "Put together", "Craft"},
	}
	fillers = map[string][]string{
		"medium": {"", "", "a brief", "a concise", "a professional"},
		"high":   {"", "", "a brief", "a concise", "a professional", "an appropriate", "a clear", "a well-written"},
	}
	originalStarters = []string{"Draft", "Write", "Compose", "Create"}

	fromPattern = regexp.MustCompile(`from\s+([A-Za-z\s.]+)`)
)

// Renderer turns prompt steps into concrete prompt text.
type Renderer struct {
	rng *rand.Rand
	dir *model.Directory
	log *logger.Logger
}

// NewRenderer creates a Renderer drawing from rng.
func NewRenderer(rng *rand.Rand, dir *model.Directory, log *logger.Logger) *Renderer {
	return &Renderer{rng: rng, dir: dir, log: log}
}

// Render picks a template, varies its wording for repeated occurrences and
// fills in variables.
func (r *Renderer) Render(step model.PromptStep, vars map[string][]string, occurrence int) string {
	if len(step.Templates) == 0 {
		return ""
	}
	prompt := step.Templates[r.rng.Intn(len(step.Templates))]

	if occurrence > 1 {
		level := "medium"
		if occurrence > 3 {
			level = "high"
		}
		prompt = r.Vary(prompt, level)
	}

	return r.substitute(prompt, vars)
}

// Vary swaps a leading imperative verb for a synonym, optionally followed
// by a filler adjective.
func (r *Renderer) Vary(prompt, level string) string {
	s, ok := starters[level]
	if !ok {
		s, level = starters["medium"], "medium"
	}
	for _, starter := range originalStarters {
		if !strings.HasPrefix(prompt, starter) {
			continue
		}
		next := s[r.rng.Intn(len(s))]
		f := fillers[level]
		if filler := f[r.rng.Intn(len(f))]; filler != "" {
			next += " " + filler
		}
		return next + strings.TrimPrefix(prompt, starter)
	}
	return prompt
}

func (r *Renderer) substitute(prompt string, vars map[string][]string) string {
	if len(vars) == 0 {
		return prompt
	}

	if pool := vars[model.EmployeePool]; len(pool) > 0 {
		hasSender := strings.Contains(prompt, senderPlaceholder)
		hasRecipient := strings.Contains(prompt, recipientPlaceholder)
		switch {
		case hasSender && hasRecipient:
			sender, recipient := r.samplePair(pool)
			prompt = strings.ReplaceAll(prompt, senderPlaceholder, sender)
			prompt = strings.ReplaceAll(prompt, recipientPlaceholder, recipient)
		case hasSender:
			prompt = strings.ReplaceAll(prompt, senderPlaceholder, pool[r.rng.Intn(len(pool))])
		case hasRecipient:
			prompt = strings.ReplaceAll(prompt, recipientPlaceholder, pool[r.rng.Intn(len(pool))])
		}
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		if k != model.EmployeePool {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := vars[k]
		placeholder := "{" + k + "}"
		if len(values) == 0 || !strings.Contains(prompt, placeholder) {
			continue
		}
		prompt = strings.ReplaceAll(prompt, placeholder, values[r.rng.Intn(len(values))])
	}
	return prompt
}

// samplePair draws two distinct pool entries whose addresses differ. Names
// missing from the directory are presumed distinct. After a bounded number
// of attempts the last pair is kept.
func (r *Renderer) samplePair(pool []string) (string, string) {
	if len(pool) < 2 {
		return pool[0], pool[0]
	}
	var sender, recipient string
	for attempt := 0; attempt < maxPairAttempts; attempt++ {
		i := r.rng.Intn(len(pool))
		j := r.rng.Intn(len(pool) - 1)
		if j >= i {
			j++
		}
		sender, recipient = pool[i], pool[j]

		se, re := r.dir.ResolveEmail(sender), r.dir.ResolveEmail(recipient)
		if se == "" || re == "" || !strings.EqualFold(se, re) {
			return sender, recipient
		}
	}
	r.log.Warn("could not sample distinct sender and recipient",
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.Int("attempts", maxPairAttempts),
	)
	return sender, recipient
}

// SenderFromPrompt guesses who the prompt is written by: first a
// "from <Name>" phrase, then the first directory entry named in the text.
func (r *Renderer) SenderFromPrompt(prompt string) (*model.Profile, bool) {
	if m := fromPattern.FindStringSubmatch(prompt); m != nil {
		name := strings.TrimSpace(strings.ReplaceAll(m[1], ".", ""))
		if p, ok := r.dir.Lookup(name); ok {
			return p, true
		}
	}
	for _, p := range r.dir.Profiles() {
		if (p.Name != "" && strings.Contains(prompt, p.Name)) || (p.Email != "" && strings.Contains(prompt, p.Email)) {
			return p, true
		}
	}
	return nil, false
}

// StyleInstruction returns the per-author writing style suffix, or "".
func (r *Renderer) StyleInstruction(prompt string) string {
	p, ok := r.SenderFromPrompt(prompt)
	if !ok || p.Style == "" {
		return ""
	}
	return fmt.Sprintf("\n\nIMPORTANT: Write this email in the style of %s: %s", p.Name, p.Style)
}
