package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ContentKind identifies the shape of a generated payload.
type ContentKind string

const (
	ContentEmail    ContentKind = "email"
	ContentCalendar ContentKind = "calendar"
	ContentChat     ContentKind = "chat"
)

// RequiredKeys returns the top-level keys a payload of kind k must carry.
func (k ContentKind) RequiredKeys() []string {
	switch k {
	case ContentEmail:
		return []string{"subject", "body", "sender_name", "sender_email", "recipients"}
	case ContentCalendar:
		return []string{"summary", "description", "organizer_name", "organizer_email", "attendees"}
	case ContentChat:
		return []string{"messages"}
	}
	return nil
}

// Content is a validated generation payload. The concrete type is one of
// *EmailContent, *CalendarContent or *ChatContent.
type Content interface {
	Kind() ContentKind
	Validate() error
}

// ErrInvalidContent is returned by Validate when a payload has the wrong shape.
var ErrInvalidContent = errors.New("invalid content")

// Address is a [name, address] pair as produced by the generator.
type Address struct {
	Name  string
	Email string
}

// UnmarshalJSON accepts ["Name", "email"], {"name": ..., "email": ...}
// or a bare "email" string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		switch len(pair) {
		case 0:
			return fmt.Errorf("%w: empty address pair", ErrInvalidContent)
		case 1:
			a.Email = pair[0]
		default:
			a.Name, a.Email = pair[0], pair[1]
		}
		return nil
	}

	var obj struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		a.Name, a.Email = obj.Name, obj.Email
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: unsupported address %s", ErrInvalidContent, string(data))
	}
	a.Email = s
	return nil
}

// MarshalJSON writes the pair form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{a.Name, a.Email})
}

// Participant converts the pair into a Participant.
func (a Address) Participant() Participant {
	return Participant{Name: a.Name, Email: a.Email}
}

// Participants converts a slice of pairs.
func Participants(addrs []Address) []Participant {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]Participant, len(addrs))
	for i, a := range addrs {
		out[i] = a.Participant()
	}
	return out
}

// EmailContent is the generated payload for one email.
type EmailContent struct {
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	SenderName  string    `json:"sender_name"`
	SenderEmail string    `json:"sender_email"`
	Recipients  []Address `json:"recipients"`
	Cc          []Address `json:"cc_recipients,omitempty"`
	Bcc         []Address `json:"bcc_recipients,omitempty"`
}

func (c *EmailContent) Kind() ContentKind { return ContentEmail }

func (c *EmailContent) Validate() error {
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("%w: email body is empty", ErrInvalidContent)
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("%w: email has no recipients", ErrInvalidContent)
	}
	return nil
}

// Sender returns the sending participant.
func (c *EmailContent) Sender() Participant {
	return Participant{Name: c.SenderName, Email: c.SenderEmail}
}

// CalendarContent is the generated payload for one meeting invite.
type CalendarContent struct {
	Summary        string    `json:"summary"`
	Description    string    `json:"description"`
	OrganizerName  string    `json:"organizer_name"`
	OrganizerEmail string    `json:"organizer_email"`
	Attendees      []Address `json:"attendees"`
}

func (c *CalendarContent) Kind() ContentKind { return ContentCalendar }

func (c *CalendarContent) Validate() error {
	if strings.TrimSpace(c.Summary) == "" {
		return fmt.Errorf("%w: calendar summary is empty", ErrInvalidContent)
	}
	return nil
}

// ThreadRef holds a chat thread reference, which generators emit either as
// a number or as a string.
type ThreadRef string

// UnmarshalJSON accepts strings, numbers and null.
func (r *ThreadRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ThreadRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: unsupported thread reference %s", ErrInvalidContent, string(data))
	}
	*r = ThreadRef(n.String())
	return nil
}

// ChatLine is one generated chat message.
type ChatLine struct {
	SenderName  string    `json:"sender_name"`
	SenderEmail string    `json:"sender_email"`
	Body        string    `json:"body"`
	ThreadRef   ThreadRef `json:"thread_ts,omitempty"`
}

// ChatContent is the generated payload for one chat conversation.
type ChatContent struct {
	Messages []ChatLine `json:"messages"`
}

func (c *ChatContent) Kind() ContentKind { return ContentChat }

func (c *ChatContent) Validate() error {
	if len(c.Messages) == 0 {
		return fmt.Errorf("%w: chat has no messages", ErrInvalidContent)
	}
	for i, m := range c.Messages {
		if m.Body == "" {
			return fmt.Errorf("%w: chat message %d has no body", ErrInvalidContent, i)
		}
	}
	return nil
}

// NewContent returns an empty payload for kind.
func NewContent(kind ContentKind) (Content, error) {
	switch kind {
	case ContentEmail:
		return &EmailContent{}, nil
	case ContentCalendar:
		return &CalendarContent{}, nil
	case ContentChat:
		return &ChatContent{}, nil
	}
	return nil, fmt.Errorf("unknown content kind %q", kind)
}
