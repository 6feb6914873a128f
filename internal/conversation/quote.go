package conversation

import (
	"math/rand"
	"strings"

	"github.com/capitalize-ai/corpus-generator/internal/model"
)

const (
	sentLayout   = "Monday, January 02, 2006 03:04 PM"
	mobileFooter = "\n\nSent from my iPhone"
	disclaimer   = "\n\n---\nThis email and any attachments are confidential and intended solely for the use of the individual or entity to whom they are addressed."
)

// QuoteBlock renders msg as an Outlook-style quoted reply block.
func QuoteBlock(msg *model.Message) string {
	var b strings.Builder
	b.WriteString("\n\n-----Original Message-----\n")
	b.WriteString("From: " + msg.Sender.String() + "\n")
	b.WriteString("Sent: " + msg.CreatedAt.Format(sentLayout) + "\n")
	b.WriteString("To: " + model.FormatList(msg.Recipients))
	if len(msg.Cc) > 0 {
		b.WriteString("\nCc: " + model.FormatList(msg.Cc))
	}
	b.WriteString("\nSubject: " + msg.Subject + "\n\n")

	body := strings.TrimRight(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n")
	for i, line := range strings.Split(body, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("> " + line)
	}
	return b.String()
}

// HasReplyPrefix reports whether subject already starts with "Re:".
func HasReplyPrefix(subject string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:")
}

// ReplySubject returns the subject of a reply to a message with subject.
func ReplySubject(subject string) string {
	if HasReplyPrefix(subject) {
		return subject
	}
	return "Re: " + subject
}

// NearDuplicate applies one non-substantive edit to body: a mobile footer
// toggle, a confidentiality disclaimer, or paragraph spacing changes.
func NearDuplicate(rng *rand.Rand, body string) string {
	switch rng.Intn(3) {
	case 0:
		if strings.Contains(body, mobileFooter) {
			return strings.Replace(body, mobileFooter, "", 1)
		}
		return body + mobileFooter
	case 1:
		if strings.Contains(body, disclaimer) {
			return body
		}
		return body + disclaimer
	default:
		if strings.Contains(body, "\n\n") {
			return strings.ReplaceAll(body, "\n\n", "\n")
		}
		return strings.ReplaceAll(body, "\n", "\n\n")
	}
}
