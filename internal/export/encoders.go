package export

import (
	"bytes"
	"fmt"
	"math/rand"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/identity"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

const (
	// EmailDateLayout is the Date header layout.
	EmailDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"
	// CalendarTimeLayout is the UTC layout of DTSTART, DTEND and DTSTAMP.
	CalendarTimeLayout = "20060102T150405Z"

	crlf          = "\r\n"
	maxHeaderLine = 78
	highPriority  = 0.1
)

var (
	mailers     = []string{"Microsoft Outlook 16.0", "Apple Mail (16.0.3)", "Mozilla Thunderbird 115.3.1", "Google Mail"}
	hotKeywords = []string{"confidential", "privileged", "fraud", "urgent", "legal", "price-fixing", "safety"}
)

// EmailEncoder persists one realized email.
type EmailEncoder interface {
	Encode(msg *model.Message, baseName, description string) (model.Artifact, error)
}

// CalendarEncoder persists one realized meeting invite.
type CalendarEncoder interface {
	Encode(ev *model.CalendarEvent, baseName string) (model.Artifact, error)
}

// EMLEncoder writes RFC 5322 messages, one copy per custodian folder.
type EMLEncoder struct {
	root string
	seed int64
	log  *logger.Logger
}

// NewEMLEncoder creates an encoder rooted at root.
func NewEMLEncoder(root string, seed int64, log *logger.Logger) *EMLEncoder {
	return &EMLEncoder{root: root, seed: seed, log: log}
}

// Encode writes <custodian>/<baseName>.eml for every custodian and returns
// the Message-ID as the artifact identifier.
func (e *EMLEncoder) Encode(msg *model.Message, baseName, description string) (model.Artifact, error) {
	custodians := msg.Custodians()
	if len(custodians) == 0 {
		return model.Artifact{}, fmt.Errorf("message %s has no valid custodian", msg.MessageID)
	}

	data, err := e.Render(msg, description)
	if err != nil {
		return model.Artifact{}, err
	}

	paths := make([]string, 0, len(custodians))
	for _, c := range custodians {
		path := filepath.Join(e.root, CustodianFolder(c), baseName+".eml")
		if err := writeFile(path, data); err != nil {
			return model.Artifact{}, err
		}
		paths = append(paths, path)
	}

	e.log.Debug("email written",
		zap.String("message_id", msg.MessageID),
		zap.Int("copies", len(paths)),
	)

	return model.Artifact{
		ID:         msg.MessageID,
		Kind:       model.ArtifactEmail,
		Format:     "eml",
		Paths:      paths,
		Custodians: custodians,
		Timestamp:  msg.CreatedAt,
	}, nil
}

// Render returns the encoded message.
func (e *EMLEncoder) Render(msg *model.Message, description string) ([]byte, error) {
	rng := rand.New(rand.NewSource(e.seed ^ identity.Seed(msg.MessageID)))

	var b bytes.Buffer
	header := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString(crlf)
	}

	header("From", formatAddress(msg.Sender))
	header("To", formatAddressList(msg.Recipients))
	header("Cc", formatAddressList(msg.Cc))
	header("Bcc", formatAddressList(msg.Bcc))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", msg.CreatedAt.Format(EmailDateLayout))
	header("Message-ID", msg.MessageID)
	header("In-Reply-To", msg.InReplyTo)
	header("References", strings.Join(msg.References, crlf+" "))
	header("X-Mailer", mailers[rng.Intn(len(mailers))])
	if rng.Float64() < highPriority {
		header("X-Priority", "1 (Highest)")
	} else {
		header("X-Priority", "3 (Normal)")
	}
	importance, sensitivity := Classify(description)
	header("Importance", importance)
	header("Sensitivity", sensitivity)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	b.WriteString(crlf)

	qp := quotedprintable.NewWriter(&b)
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	if _, err := qp.Write([]byte(strings.ReplaceAll(body, "\n", crlf))); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	b.WriteString(crlf)
	return b.Bytes(), nil
}

// Classify returns the Importance and Sensitivity header values for a
// scenario description. Empty values mean the header is omitted.
func Classify(description string) (importance, sensitivity string) {
	d := strings.ToLower(description)
	for _, k := range hotKeywords {
		if strings.Contains(d, k) {
			importance = "High"
			break
		}
	}
	if importance != "" && (strings.Contains(d, "legal") || strings.Contains(d, "privilege")) {
		sensitivity = "Private"
	}
	return importance, sensitivity
}

func formatAddress(p model.Participant) string {
	if p.Email == "" {
		return ""
	}
	a := mail.Address{Name: p.Name, Address: p.Email}
	return a.String()
}

// formatAddressList folds long lists one address per continuation line.
func formatAddressList(ps []model.Participant) string {
	parts := make([]string, 0, len(ps))
	total := 0
	for _, p := range ps {
		if s := formatAddress(p); s != "" {
			parts = append(parts, s)
			total += len(s) + 2
		}
	}
	if total <= maxHeaderLine {
		return strings.Join(parts, ", ")
	}
	return strings.Join(parts, ","+crlf+" ")
}

// ICSEncoder writes iCalendar invites into the output root.
type ICSEncoder struct {
	root  string
	log   *logger.Logger
	clock func() time.Time
}

// NewICSEncoder creates an encoder rooted at root.
func NewICSEncoder(root string, log *logger.Logger) *ICSEncoder {
	return &ICSEncoder{root: root, log: log, clock: time.Now}
}

// Encode writes <baseName>.ics and returns the event UID.
func (e *ICSEncoder) Encode(ev *model.CalendarEvent, baseName string) (model.Artifact, error) {
	if ev.UID == "" {
		ev.UID = uuid.NewString()
	}
	path := filepath.Join(e.root, baseName+".ics")
	if err := writeFile(path, []byte(e.Render(ev))); err != nil {
		return model.Artifact{}, err
	}

	e.log.Debug("calendar invite written", zap.String("uid", ev.UID), zap.String("path", path))

	var custodians []string
	if ev.Organizer.ValidAddress() {
		custodians = append(custodians, ev.Organizer.Email)
	}
	return model.Artifact{
		ID:         ev.UID,
		Kind:       model.ArtifactCalendar,
		Format:     "ics",
		Paths:      []string{path},
		Custodians: custodians,
		Timestamp:  ev.Start,
	}, nil
}

// Render returns the VCALENDAR text for ev.
func (e *ICSEncoder) Render(ev *model.CalendarEvent) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Corpus Generator//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + ev.UID,
		"DTSTAMP:" + e.clock().UTC().Format(CalendarTimeLayout),
		fmt.Sprintf("ORGANIZER;CN=%s:mailto:%s", paramValue(ev.Organizer.Name), ev.Organizer.Email),
	}
	for _, a := range ev.Attendees {
		lines = append(lines, fmt.Sprintf("ATTENDEE;CN=%s;ROLE=REQ-PARTICIPANT:mailto:%s", paramValue(a.Name), a.Email))
	}
	lines = append(lines,
		"DTSTART:"+ev.Start.UTC().Format(CalendarTimeLayout),
		"DTEND:"+ev.End.UTC().Format(CalendarTimeLayout),
		"SUMMARY:"+EscapeText(ev.Summary),
		"DESCRIPTION:"+EscapeText(ev.Description),
		"END:VEVENT",
		"END:VCALENDAR",
	)
	return strings.Join(lines, crlf) + crlf
}

// EscapeText escapes an iCalendar TEXT value.
func EscapeText(s string) string {
	return strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	).Replace(s)
}

// paramValue quotes a parameter value that contains separators.
func paramValue(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	if strings.ContainsAny(s, ";:,") {
		return `"` + s + `"`
	}
	return s
}
