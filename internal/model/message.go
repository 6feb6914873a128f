package model

import (
	"fmt"
	"strings"
	"time"
)

// Participant is a named address.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// String formats the participant as a mail address.
func (p Participant) String() string {
	return fmt.Sprintf("%s <%s>", p.Name, p.Email)
}

// Domain returns the domain part of the address, or "" if malformed.
func (p Participant) Domain() string {
	local, domain, ok := strings.Cut(p.Email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return domain
}

// LocalPart returns the mailbox part of the address.
func (p Participant) LocalPart() string {
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}

// ValidAddress reports whether the participant carries a usable address.
func (p Participant) ValidAddress() bool {
	return p.Domain() != ""
}

// FormatList joins participants as a header value.
func FormatList(ps []Participant) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// Message is one realized email.
type Message struct {
	MessageID  string        `json:"message_id"`
	InReplyTo  string        `json:"in_reply_to,omitempty"`
	References []string      `json:"references,omitempty"`
	Sender     Participant   `json:"sender"`
	Recipients []Participant `json:"recipients"`
	Cc         []Participant `json:"cc,omitempty"`
	Bcc        []Participant `json:"bcc,omitempty"`
	Subject    string        `json:"subject"`
	Body       string        `json:"body"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Custodians returns the unique valid addresses that touched the message,
// sender first.
func (m *Message) Custodians() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p Participant) {
		if p.ValidAddress() && !seen[p.Email] {
			seen[p.Email] = true
			out = append(out, p.Email)
		}
	}
	add(m.Sender)
	for _, group := range [][]Participant{m.Recipients, m.Cc, m.Bcc} {
		for _, p := range group {
			add(p)
		}
	}
	return out
}

// CalendarEvent is one realized meeting invite.
type CalendarEvent struct {
	UID         string        `json:"uid"`
	Summary     string        `json:"summary"`
	Description string        `json:"description"`
	Organizer   Participant   `json:"organizer"`
	Attendees   []Participant `json:"attendees"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
}

// ChatEvent is one message inside a chat conversation.
type ChatEvent struct {
	Sender    Participant `json:"sender"`
	Body      string      `json:"body"`
	Timestamp time.Time   `json:"timestamp"`
	// Parent is the index of the event this one replies to, or -1.
	Parent int `json:"parent"`
}

// HasParent reports whether the event is a threaded reply.
func (e ChatEvent) HasParent() bool {
	return e.Parent >= 0
}

// ChatConversation is an ordered chat log with non-decreasing timestamps.
type ChatConversation struct {
	Name   string      `json:"name"`
	Start  time.Time   `json:"start"`
	Events []ChatEvent `json:"events"`
}

// Participants returns unique senders in order of first appearance.
func (c *ChatConversation) Participants() []Participant {
	seen := make(map[string]bool)
	var out []Participant
	for _, e := range c.Events {
		if seen[e.Sender.Email] {
			continue
		}
		seen[e.Sender.Email] = true
		out = append(out, e.Sender)
	}
	return out
}
