package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/identity"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

const (
	hostedDir    = "webex_export"
	hostedPrefix = "Y2lzY"
	// HostedTimeLayout is the timestamp layout used by hosted exports.
	HostedTimeLayout = "2006-01-02T15:04:05.000Z"
)

var hostedReactions = []string{"thumbsup", "heart", "smile", "surprised", "celebrate"}

type hostedRoom struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	IsLocked     bool   `json:"isLocked"`
	LastActivity string `json:"lastActivity"`
	CreatorID    string `json:"creatorId"`
	Created      string `json:"created"`
}

type hostedPerson struct {
	ID          string   `json:"id"`
	Emails      []string `json:"emails"`
	DisplayName string   `json:"displayName"`
	Created     string   `json:"created"`
}

type hostedReaction struct {
	Emoji    string   `json:"emoji"`
	Count    int      `json:"count"`
	PersonID []string `json:"personIds"`
}

type hostedMessage struct {
	ID          string           `json:"id"`
	RoomID      string           `json:"roomId"`
	RoomType    string           `json:"roomType"`
	Text        string           `json:"text"`
	PersonID    string           `json:"personId"`
	PersonEmail string           `json:"personEmail"`
	Created     string           `json:"created"`
	ParentID    string           `json:"parentId,omitempty"`
	Updated     string           `json:"updated,omitempty"`
	Reactions   []hostedReaction `json:"reactions,omitempty"`
}

// Hosted writes one folder per conversation holding room, participant and
// message registries.
type Hosted struct {
	root string
	seed int64
	log  *logger.Logger

	mu sync.Mutex
}

// NewHosted creates a hosted exporter rooted at root.
func NewHosted(root string, seed int64, log *logger.Logger) *Hosted {
	return &Hosted{root: root, seed: seed, log: log}
}

// Format returns model.ChatWebex.
func (h *Hosted) Format() model.ChatFormat {
	return model.ChatWebex
}

// RoomTitle turns a conversation name into a display title.
func RoomTitle(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Export merges the conversation into webex_export/<name>/.
func (h *Hosted) Export(conv *model.ChatConversation) (model.Artifact, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(conv.Events) == 0 {
		return model.Artifact{}, fmt.Errorf("conversation %q has no events", conv.Name)
	}

	dir := filepath.Join(h.root, hostedDir, conv.Name)
	roomID := identity.Derive(conv.Name, hostedPrefix)
	participants := conv.Participants()
	last := conv.Events[len(conv.Events)-1].Timestamp

	roomType := "direct"
	if len(participants) > 2 {
		roomType = "group"
	}
	room := hostedRoom{
		ID:           roomID,
		Title:        RoomTitle(conv.Name),
		Type:         roomType,
		LastActivity: hostedTime(last),
		CreatorID:    identity.Derive(participants[0].Email, hostedPrefix),
		Created:      hostedTime(conv.Start),
	}

	people := make([]hostedPerson, 0, len(participants))
	personIDs := make([]string, 0, len(participants))
	for _, p := range participants {
		id := identity.Derive(p.Email, hostedPrefix)
		personIDs = append(personIDs, id)
		people = append(people, hostedPerson{
			ID:          id,
			Emails:      []string{p.Email},
			DisplayName: p.Name,
			Created:     hostedTime(conv.Start),
		})
	}

	emb := newEmbellisher(h.seed, conv.Name)
	messages := make([]hostedMessage, 0, len(conv.Events))
	for i, ev := range conv.Events {
		personID := identity.Derive(ev.Sender.Email, hostedPrefix)
		created := hostedTime(ev.Timestamp)
		m := hostedMessage{
			ID:          messageID(roomID, ev.Sender.Email, created, ev.Body),
			RoomID:      roomID,
			RoomType:    roomType,
			Text:        ev.Body,
			PersonID:    personID,
			PersonEmail: ev.Sender.Email,
			Created:     created,
		}
		if ev.HasParent() && ev.Parent < i {
			m.ParentID = messages[ev.Parent].ID
		}

		others := make([]string, 0, len(personIDs))
		for _, id := range personIDs {
			if id != personID {
				others = append(others, id)
			}
		}
		if reactors := emb.reaction(ev.Body, others); reactors != nil {
			m.Reactions = []hostedReaction{{Emoji: emb.pick(hostedReactions), Count: len(reactors), PersonID: reactors}}
		}
		if at, ok := emb.edit(ev.Body, ev.Timestamp); ok {
			m.Updated = hostedTime(at)
		}
		messages = append(messages, m)
	}

	paths := []string{
		filepath.Join(dir, "rooms.json"),
		filepath.Join(dir, "participants.json"),
		filepath.Join(dir, "messages.json"),
	}
	if _, err := mergeFile(paths[0], []hostedRoom{room}, func(r hostedRoom) string { return r.ID }); err != nil {
		return model.Artifact{}, err
	}
	if _, err := mergeFile(paths[1], people, func(p hostedPerson) string { return p.ID }); err != nil {
		return model.Artifact{}, err
	}
	if err := mergeMessages(paths[2], messages); err != nil {
		return model.Artifact{}, err
	}

	h.log.Debug("hosted export written", zap.String("room", room.Title), zap.Int("messages", len(messages)))

	custodians := make([]string, 0, len(participants))
	for _, p := range participants {
		custodians = append(custodians, p.Email)
	}
	return model.Artifact{
		ID:         roomID,
		Kind:       model.ArtifactChat,
		Format:     string(model.ChatWebex),
		Paths:      paths,
		Custodians: custodians,
		Timestamp:  conv.Start,
	}, nil
}

// mergeMessages folds messages into the log at path, kept in creation
// order whichever conversation was merged first.
func mergeMessages(path string, messages []hostedMessage) error {
	existing, err := readJSON[hostedMessage](path)
	if err != nil {
		return err
	}
	merged := mergeByKey(existing, messages, func(m hostedMessage) string { return m.ID })
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Created != merged[j].Created {
			return merged[i].Created < merged[j].Created
		}
		return merged[i].ID < merged[j].ID
	})
	return writeJSON(path, merged)
}

func hostedTime(t time.Time) string {
	return t.UTC().Format(HostedTimeLayout)
}

// messageID is stable for the same room, sender, time and text.
func messageID(roomID, email, created, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join([]string{roomID, email, created, text}, "|"))).String()
}
