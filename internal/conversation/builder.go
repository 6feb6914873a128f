// Package conversation realizes scenarios into linked messages, meeting
// invites and chat logs.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/llm"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/internal/timestamp"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

const (
	// FallbackDomain scopes message IDs when the sender address is unusable.
	FallbackDomain = "synthetic.local"

	blastRecipientCount = 500
	signatureChance     = 0.6
	calendarDuration    = time.Hour
	calendarUIDDomain   = "corpus-generator.local"
	unknownChatSender   = "unknown@chat.com"
	unknownChatName     = "Unknown User"
	chatPromptSuffix    = "\n\nGenerate a conversation history between these participants."
	replyPromptTemplate = "%s\n\nYou are drafting a reply to the following email:\n\n---\n%s\n---\n\nYour task: %s%s"
	firstPromptTemplate = "%s\n\nTask: %s%s"
)

// ContentGenerator produces validated content for a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, req llm.Request) (model.Content, error)
}

// Builder holds what every realization shares. It is safe for concurrent
// use; per-unit randomness lives in a Session.
type Builder struct {
	gen          ContentGenerator
	dir          *model.Directory
	contextBlock string
	log          *logger.Logger
	timeOpts     []timestamp.Option
}

// Option configures a Builder.
type Option func(*Builder)

// WithTimestampOptions passes options to every session's simulator.
func WithTimestampOptions(opts ...timestamp.Option) Option {
	return func(b *Builder) { b.timeOpts = append(b.timeOpts, opts...) }
}

// NewBuilder creates a Builder.
func NewBuilder(gen ContentGenerator, dir *model.Directory, log *logger.Logger, opts ...Option) *Builder {
	b := &Builder{
		gen:          gen,
		dir:          dir,
		contextBlock: dir.ContextBlock(),
		log:          log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Session realizes scenarios for one unit of work. It must not be shared
// between goroutines.
type Session struct {
	b      *Builder
	rng    *rand.Rand
	times  *timestamp.Simulator
	render *Renderer
	log    *logger.Logger
}

// NewSession starts a session whose random choices derive from seed.
func (b *Builder) NewSession(seed int64, log *logger.Logger) *Session {
	if log == nil {
		log = b.log
	}
	rng := rand.New(rand.NewSource(seed))
	return &Session{
		b:      b,
		rng:    rng,
		times:  timestamp.New(rng, b.timeOpts...),
		render: NewRenderer(rng, b.dir, log),
		log:    log,
	}
}

// Rand exposes the session generator for callers that need draws in the
// same deterministic stream.
func (s *Session) Rand() *rand.Rand {
	return s.rng
}

// Thread walks the scenario's prompt steps, each realized with its own
// probability, and links every realized message to the last one. Steps
// with malformed content are skipped. Any other failure stops the thread
// and returns the messages realized so far along with the error.
func (s *Session) Thread(ctx context.Context, sc *model.Scenario, occurrence int) ([]*model.Message, error) {
	temperature := llm.TemperatureFor(sc.Kind, sc.Noise, sc.Temperature, s.rng)
	category := timestamp.Categorize(sc.Description)

	var (
		thread []*model.Message
		prev   *model.Message
	)
	for i, step := range sc.Prompts {
		if s.rng.Float64() > step.Inclusion() {
			s.log.Debug("skipping thread step", zap.Int("step", i), zap.Float64("probability", step.Inclusion()))
			continue
		}

		prompt := s.render.Render(step, sc.Variables, occurrence)
		style := s.render.StyleInstruction(prompt)
		var full string
		if prev != nil {
			full = fmt.Sprintf(replyPromptTemplate, s.b.contextBlock, QuoteBlock(prev), prompt, style)
		} else {
			full = fmt.Sprintf(firstPromptTemplate, s.b.contextBlock, prompt, style)
		}

		content, err := s.generateEmail(ctx, full, temperature)
		if errors.Is(err, llm.ErrMalformedResponse) {
			s.log.Warn("skipping thread step with malformed content", zap.Int("step", i), zap.Error(err))
			continue
		}
		if err != nil {
			return thread, fmt.Errorf("failed to generate thread step %d: %w", i, err)
		}

		msg := s.compose(content, sc, prev)

		var hint *int
		var prevAt *time.Time
		if prev != nil {
			h := s.rng.Intn(48) + 1
			hint, prevAt = &h, &prev.CreatedAt
		}
		msg.CreatedAt = s.times.Next(prevAt, hint, category, timestamp.DetectUrgency(msg.Subject, msg.Body))

		thread = append(thread, msg)
		prev = msg
	}
	return thread, nil
}

// Standalone realizes a single email from the scenario's first step.
func (s *Session) Standalone(ctx context.Context, sc *model.Scenario, occurrence int) (*model.Message, error) {
	if len(sc.Prompts) == 0 {
		return nil, fmt.Errorf("scenario %s has no prompts", sc.ID)
	}
	prompt := s.render.Render(sc.Prompts[0], sc.Variables, occurrence)
	full := fmt.Sprintf(firstPromptTemplate, s.b.contextBlock, prompt, s.render.StyleInstruction(prompt))

	content, err := s.generateEmail(ctx, full, llm.TemperatureFor(sc.Kind, sc.Noise, sc.Temperature, s.rng))
	if err != nil {
		return nil, fmt.Errorf("failed to generate email: %w", err)
	}

	msg := s.compose(content, sc, nil)
	if sc.IsBlast() {
		msg.Recipients = append(msg.Recipients, s.blastRecipients(msg.Sender)...)
		s.log.Info("expanded blast recipients", zap.Int("recipients", len(msg.Recipients)))
	}
	msg.CreatedAt = s.times.Next(nil, nil, timestamp.Categorize(sc.Description), timestamp.DetectUrgency(msg.Subject, msg.Body))
	return msg, nil
}

// Calendar realizes a one-hour meeting invite.
func (s *Session) Calendar(ctx context.Context, sc *model.Scenario, occurrence int) (*model.CalendarEvent, error) {
	if len(sc.Prompts) == 0 {
		return nil, fmt.Errorf("scenario %s has no prompts", sc.ID)
	}
	prompt := s.render.Render(sc.Prompts[0], sc.Variables, occurrence)
	content, err := s.b.gen.Generate(ctx, llm.Request{
		Kind:        model.ContentCalendar,
		Prompt:      fmt.Sprintf(firstPromptTemplate, s.b.contextBlock, prompt, ""),
		Temperature: llm.TemperatureFor(sc.Kind, sc.Noise, sc.Temperature, s.rng),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate calendar event: %w", err)
	}
	cal, ok := content.(*model.CalendarContent)
	if !ok {
		return nil, fmt.Errorf("%w: expected calendar content, got %s", llm.ErrMalformedResponse, content.Kind())
	}

	start := s.times.Next(nil, nil, timestamp.CategoryNormal, false)
	return &model.CalendarEvent{
		UID:         uuid.NewString() + "@" + calendarUIDDomain,
		Summary:     cal.Summary,
		Description: cal.Description,
		Organizer:   model.Participant{Name: cal.OrganizerName, Email: cal.OrganizerEmail},
		Attendees:   model.Participants(cal.Attendees),
		Start:       start,
		End:         start.Add(calendarDuration),
	}, nil
}

// Chat realizes a chat conversation. Event times advance with message
// length so short replies arrive in quick succession.
func (s *Session) Chat(ctx context.Context, sc *model.Scenario, occurrence int) (*model.ChatConversation, error) {
	if len(sc.Prompts) == 0 {
		return nil, fmt.Errorf("scenario %s has no prompts", sc.ID)
	}
	prompt := s.render.Render(sc.Prompts[0], sc.Variables, occurrence)
	content, err := s.b.gen.Generate(ctx, llm.Request{
		Kind:        model.ContentChat,
		Prompt:      fmt.Sprintf(firstPromptTemplate, s.b.contextBlock, prompt, chatPromptSuffix),
		Temperature: llm.TemperatureFor(sc.Kind, sc.Noise, sc.Temperature, s.rng),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate chat: %w", err)
	}
	chat, ok := content.(*model.ChatContent)
	if !ok {
		return nil, fmt.Errorf("%w: expected chat content, got %s", llm.ErrMalformedResponse, content.Kind())
	}

	start := s.times.Next(nil, nil, timestamp.CategoryNormal, false)
	conv := &model.ChatConversation{Start: start}
	current := start
	for i, line := range chat.Messages {
		current = current.Add(s.chatGap(len(line.Body)))
		sender := model.Participant{Name: line.SenderName, Email: line.SenderEmail}
		if sender.Email == "" {
			sender.Email = unknownChatSender
		}
		if sender.Name == "" {
			sender.Name = unknownChatName
		}
		conv.Events = append(conv.Events, model.ChatEvent{
			Sender:    sender,
			Body:      line.Body,
			Timestamp: current,
			Parent:    parentIndex(line.ThreadRef, i),
		})
	}
	return conv, nil
}

// chatGap models typing and thinking time before a message of n bytes.
func (s *Session) chatGap(n int) time.Duration {
	var lo, hi int
	switch {
	case n < 30:
		lo, hi = 5, 30
	case n < 100:
		lo, hi = 20, 120
	default:
		lo, hi = 60, 300
	}
	return time.Duration(lo+s.rng.Intn(hi-lo+1)) * time.Second
}

// parentIndex resolves a thread reference to an earlier event index, or -1.
func parentIndex(ref model.ThreadRef, current int) int {
	if ref == "" {
		return -1
	}
	idx, err := strconv.Atoi(strings.TrimSpace(string(ref)))
	if err != nil || idx < 0 || idx >= current {
		return -1
	}
	return idx
}

func (s *Session) generateEmail(ctx context.Context, prompt string, temperature float64) (*model.EmailContent, error) {
	content, err := s.b.gen.Generate(ctx, llm.Request{
		Kind:        model.ContentEmail,
		Prompt:      prompt,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}
	email, ok := content.(*model.EmailContent)
	if !ok {
		return nil, fmt.Errorf("%w: expected email content, got %s", llm.ErrMalformedResponse, content.Kind())
	}
	return email, nil
}

// compose turns generated content into a Message linked to prev.
func (s *Session) compose(content *model.EmailContent, sc *model.Scenario, prev *model.Message) *model.Message {
	sender := content.Sender()
	body := content.Body
	if s.rng.Float64() < sc.NearDuplicateProbability {
		body = NearDuplicate(s.rng, body)
	}
	if p, ok := s.b.dir.Lookup(sender.Email); ok && p.Signature != "" && s.rng.Float64() < signatureChance {
		body += "\n\n-- \n" + p.Signature
	}

	msg := &model.Message{
		Sender:     sender,
		Recipients: s.withoutSender(sender, model.Participants(content.Recipients)),
		Cc:         s.withoutSender(sender, model.Participants(content.Cc)),
		Bcc:        s.withoutSender(sender, model.Participants(content.Bcc)),
		Subject:    content.Subject,
		Body:       body,
		MessageID:  s.messageID(sender),
	}

	if prev != nil {
		if !HasReplyPrefix(msg.Subject) {
			msg.Subject = ReplySubject(prev.Subject)
		}
		msg.Body += QuoteBlock(prev)
		msg.InReplyTo = prev.MessageID
		msg.References = append(append([]string(nil), prev.References...), prev.MessageID)
	}
	return msg
}

// withoutSender drops entries that resolve to the sender's address. If
// that would leave the list empty it is returned unchanged.
func (s *Session) withoutSender(sender model.Participant, ps []model.Participant) []model.Participant {
	if len(ps) == 0 {
		return ps
	}
	self := strings.ToLower(sender.Email)
	if resolved := s.b.dir.ResolveEmail(sender.Name); resolved != "" && self == "" {
		self = strings.ToLower(resolved)
	}
	if self == "" {
		return ps
	}
	out := make([]model.Participant, 0, len(ps))
	for _, p := range ps {
		addr := p.Email
		if addr == "" {
			addr = s.b.dir.ResolveEmail(p.Name)
		}
		if strings.EqualFold(addr, self) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		s.log.Warn("every recipient resolved to the sender", zap.String("sender", sender.Email))
		return ps
	}
	return out
}

func (s *Session) messageID(sender model.Participant) string {
	domain := sender.Domain()
	if domain == "" {
		s.log.Warn("invalid sender address, using fallback domain",
			zap.String("sender_email", sender.Email),
			zap.String("domain", FallbackDomain),
		)
		domain = FallbackDomain
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// blastRecipients cycles through the directory, skipping the sender, until
// the stress-test recipient count is reached.
func (s *Session) blastRecipients(sender model.Participant) []model.Participant {
	var emails []string
	for _, e := range s.b.dir.Emails() {
		if !strings.EqualFold(e, sender.Email) {
			emails = append(emails, e)
		}
	}
	if len(emails) == 0 {
		return nil
	}
	out := make([]model.Participant, 0, blastRecipientCount)
	for i := 0; i < blastRecipientCount; i++ {
		addr := emails[i%len(emails)]
		name := "Employee"
		if p, ok := s.b.dir.Lookup(addr); ok && p.Name != "" {
			name = p.Name
		}
		out = append(out, model.Participant{Name: name, Email: addr})
	}
	return out
}
