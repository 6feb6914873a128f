package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

const (
	portableVersion  = "1.0.0"
	portablePlatform = "Microsoft Teams"
	// ManifestName is the manifest entry inside a portable archive.
	ManifestName = "rsmf_manifest.json"
)

var portableReactions = []string{"like", "heart", "laugh", "surprised", "sad"}

type portableParticipant struct {
	ID      string `json:"id"`
	Display string `json:"display"`
	Email   string `json:"email"`
	Type    string `json:"type"`
}

type portableConversation struct {
	ID           string   `json:"id"`
	Display      string   `json:"display"`
	Platform     string   `json:"platform"`
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
}

type portableReaction struct {
	Value        string   `json:"value"`
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
}

type portableEvent struct {
	ID              string             `json:"id"`
	Type            string             `json:"type"`
	Participant     string             `json:"participant"`
	Conversation    string             `json:"conversation"`
	Body            string             `json:"body"`
	Timestamp       string             `json:"timestamp"`
	Parent          string             `json:"parent,omitempty"`
	Reactions       []portableReaction `json:"reactions,omitempty"`
	EditedTimestamp string             `json:"editedTimestamp,omitempty"`
}

// PortableManifest is the document stored inside a portable archive.
type PortableManifest struct {
	Version       string                 `json:"version"`
	Participants  []portableParticipant  `json:"participants"`
	Conversations []portableConversation `json:"conversations"`
	Events        []portableEvent        `json:"events"`
}

// Portable writes each conversation as a self-contained zip archive with a
// JSON manifest, filed under the first participant's folder.
type Portable struct {
	root string
	seed int64
	log  *logger.Logger

	mu sync.Mutex
}

// NewPortable creates a portable exporter rooted at root.
func NewPortable(root string, seed int64, log *logger.Logger) *Portable {
	return &Portable{root: root, seed: seed, log: log}
}

// Format returns model.ChatTeams.
func (p *Portable) Format() model.ChatFormat {
	return model.ChatTeams
}

// Export writes <custodian>/<name>.rsmf.
func (p *Portable) Export(conv *model.ChatConversation) (model.Artifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(conv.Events) == 0 {
		return model.Artifact{}, fmt.Errorf("conversation %q has no events", conv.Name)
	}

	manifest := p.manifest(conv)
	data, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to encode manifest: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestName,
		Method:   zip.Deflate,
		Modified: conv.Start,
	})
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to create manifest entry: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to write manifest entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to finish archive: %w", err)
	}

	participants := conv.Participants()
	path := filepath.Join(p.root, CustodianFolder(participants[0].Email), conv.Name+".rsmf")
	if err := writeFile(path, buf.Bytes()); err != nil {
		return model.Artifact{}, err
	}

	p.log.Debug("portable export written", zap.String("path", path), zap.Int("events", len(manifest.Events)))

	custodians := make([]string, 0, len(participants))
	for _, pt := range participants {
		custodians = append(custodians, pt.Email)
	}
	return model.Artifact{
		ID:         manifest.Conversations[0].ID,
		Kind:       model.ArtifactChat,
		Format:     string(model.ChatTeams),
		Paths:      []string{path},
		Custodians: custodians,
		Timestamp:  conv.Start,
	}, nil
}

func (p *Portable) manifest(conv *model.ChatConversation) PortableManifest {
	emb := newEmbellisher(p.seed, conv.Name)
	convID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("conversation:"+conv.Name)).String()

	participants := conv.Participants()
	m := PortableManifest{Version: portableVersion}
	ids := make([]string, 0, len(participants))
	for _, pt := range participants {
		m.Participants = append(m.Participants, portableParticipant{
			ID:      pt.Email,
			Display: pt.Name,
			Email:   pt.Email,
			Type:    "User",
		})
		ids = append(ids, pt.Email)
	}
	kind := "Direct"
	if len(participants) > 2 {
		kind = "Channel"
	}
	m.Conversations = []portableConversation{{
		ID:           convID,
		Display:      "Chat - " + strings.ReplaceAll(conv.Name, "_", " "),
		Platform:     portablePlatform,
		Type:         kind,
		Participants: ids,
	}}

	eventIDs := make([]string, len(conv.Events))
	for i, ev := range conv.Events {
		eventIDs[i] = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d:%s", convID, i, ev.Sender.Email))).String()

		e := portableEvent{
			ID:           eventIDs[i],
			Type:         "message",
			Participant:  ev.Sender.Email,
			Conversation: convID,
			Body:         ev.Body,
			Timestamp:    ev.Timestamp.Format(time.RFC3339),
		}
		if ev.HasParent() && ev.Parent < i {
			e.Parent = eventIDs[ev.Parent]
		}

		others := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != ev.Sender.Email {
				others = append(others, id)
			}
		}
		if reactors := emb.reaction(ev.Body, others); reactors != nil {
			e.Reactions = []portableReaction{{Value: emb.pick(portableReactions), Count: len(reactors), Participants: reactors}}
		}
		if at, ok := emb.edit(ev.Body, ev.Timestamp); ok {
			e.EditedTimestamp = at.Format(time.RFC3339)
		}
		m.Events = append(m.Events, e)
	}
	return m
}
