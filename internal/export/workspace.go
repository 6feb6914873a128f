package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/identity"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

const (
	workspaceDir       = "slack_export"
	maxChannelName     = 21
	joinMessageMaxSize = 50
)

var workspaceReactions = []string{"thumbsup", "heart", "joy", "fire", "eyes", "white_check_mark", "100"}

type workspaceProfile struct {
	Title       string `json:"title"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Team        string `json:"team"`
}

type workspaceUser struct {
	ID       string           `json:"id"`
	TeamID   string           `json:"team_id"`
	Name     string           `json:"name"`
	Deleted  bool             `json:"deleted"`
	RealName string           `json:"real_name"`
	TZ       string           `json:"tz"`
	Profile  workspaceProfile `json:"profile"`
	IsAdmin  bool             `json:"is_admin"`
	IsBot    bool             `json:"is_bot"`
}

type workspaceTopic struct {
	Value   string `json:"value"`
	Creator string `json:"creator"`
	LastSet int64  `json:"last_set"`
}

type workspaceChannel struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Created    int64          `json:"created"`
	Creator    string         `json:"creator"`
	IsArchived bool           `json:"is_archived"`
	IsGeneral  bool           `json:"is_general"`
	Members    []string       `json:"members"`
	Topic      workspaceTopic `json:"topic"`
	Purpose    workspaceTopic `json:"purpose"`
}

type workspaceElement struct {
	Type     string             `json:"type"`
	Text     string             `json:"text,omitempty"`
	Elements []workspaceElement `json:"elements,omitempty"`
}

type workspaceBlock struct {
	Type     string             `json:"type"`
	BlockID  string             `json:"block_id"`
	Elements []workspaceElement `json:"elements"`
}

type workspaceReaction struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type workspaceEdit struct {
	User string `json:"user"`
	Ts   string `json:"ts"`
}

type workspaceMessage struct {
	ClientMsgID  string              `json:"client_msg_id,omitempty"`
	Type         string              `json:"type"`
	Subtype      string              `json:"subtype,omitempty"`
	Text         string              `json:"text"`
	User         string              `json:"user"`
	Ts           string              `json:"ts"`
	Team         string              `json:"team"`
	UserTeam     string              `json:"user_team"`
	SourceTeam   string              `json:"source_team"`
	Blocks       []workspaceBlock    `json:"blocks,omitempty"`
	ThreadTs     string              `json:"thread_ts,omitempty"`
	ParentUserID string              `json:"parent_user_id,omitempty"`
	Reactions    []workspaceReaction `json:"reactions,omitempty"`
	Edited       *workspaceEdit      `json:"edited,omitempty"`
}

// key identifies a daily log entry across repeated exports.
func (m workspaceMessage) key() string {
	if m.ClientMsgID != "" {
		return m.ClientMsgID
	}
	return m.Ts + "|" + m.User + "|" + m.Subtype
}

// Workspace writes a channel-based workspace export: shared user and
// channel registries plus one message log per channel per day.
type Workspace struct {
	root   string
	dir    *model.Directory
	teamID string
	log    *logger.Logger

	seed int64

	mu sync.Mutex
}

// NewWorkspace creates a workspace exporter rooted at root.
func NewWorkspace(root string, dir *model.Directory, seed int64, log *logger.Logger) *Workspace {
	return &Workspace{
		root:   root,
		dir:    dir,
		teamID: identity.DeriveN(root, "T", 10, identity.AlnumAlphabet),
		log:    log,
		seed:   seed,
	}
}

// Format returns model.ChatSlack.
func (w *Workspace) Format() model.ChatFormat {
	return model.ChatSlack
}

// ChannelName turns a conversation name into a channel name.
func ChannelName(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxChannelName {
		out = out[:maxChannelName]
	}
	if out == "" {
		out = "general"
	}
	return out
}

// SlackTimestamp formats t as seconds with microsecond precision.
func SlackTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// Export merges the conversation into the workspace tree.
func (w *Workspace) Export(conv *model.ChatConversation) (model.Artifact, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(conv.Events) == 0 {
		return model.Artifact{}, fmt.Errorf("conversation %q has no events", conv.Name)
	}

	base := filepath.Join(w.root, workspaceDir)
	channel := ChannelName(conv.Name)
	channelID := identity.Derive(channel, "C")
	participants := conv.Participants()

	users := w.users(participants)
	if _, err := mergeFile(filepath.Join(base, "users.json"), users, func(u workspaceUser) string { return u.ID }); err != nil {
		return model.Artifact{}, err
	}

	members := make([]string, 0, len(participants))
	for _, p := range participants {
		members = append(members, identity.Derive(p.Email, "U"))
	}
	ch := workspaceChannel{
		ID:      channelID,
		Name:    channel,
		Created: conv.Start.Unix(),
		Creator: members[0],
		Members: members,
		Topic:   workspaceTopic{Creator: members[0], LastSet: conv.Start.Unix()},
		Purpose: workspaceTopic{Value: "Discussion for " + strings.ReplaceAll(conv.Name, "_", " "), Creator: members[0], LastSet: conv.Start.Unix()},
	}
	if err := mergeChannel(filepath.Join(base, "channels.json"), ch); err != nil {
		return model.Artifact{}, err
	}

	byDay := make(map[string][]workspaceMessage)
	var days []string
	for _, m := range w.messages(conv, channel, members) {
		day := m.day
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], m.workspaceMessage)
	}
	sort.Strings(days)

	var paths []string
	for _, day := range days {
		path := filepath.Join(base, channel, day+".json")
		existing, err := readJSON[workspaceMessage](path)
		if err != nil {
			return model.Artifact{}, err
		}
		merged := mergeByKey(existing, byDay[day], workspaceMessage.key)
		sort.SliceStable(merged, func(i, j int) bool {
			if merged[i].Ts != merged[j].Ts {
				return merged[i].Ts < merged[j].Ts
			}
			return merged[i].key() < merged[j].key()
		})
		if err := writeJSON(path, merged); err != nil {
			return model.Artifact{}, err
		}
		paths = append(paths, path)
	}

	w.log.Debug("workspace export written",
		zap.String("channel", channel),
		zap.Int("events", len(conv.Events)),
		zap.Int("days", len(days)),
	)

	custodians := make([]string, 0, len(participants))
	for _, p := range participants {
		custodians = append(custodians, p.Email)
	}
	return model.Artifact{
		ID:         channelID,
		Kind:       model.ArtifactChat,
		Format:     string(model.ChatSlack),
		Paths:      paths,
		Custodians: custodians,
		Timestamp:  conv.Start,
	}, nil
}

// mergeChannel adds ch to the registry, or folds its members into an
// existing channel with the same ID.
func mergeChannel(path string, ch workspaceChannel) error {
	channels, err := readJSON[workspaceChannel](path)
	if err != nil {
		return err
	}
	found := false
	for i := range channels {
		if channels[i].ID != ch.ID {
			continue
		}
		found = true
		known := make(map[string]bool, len(channels[i].Members))
		for _, m := range channels[i].Members {
			known[m] = true
		}
		for _, m := range ch.Members {
			if !known[m] {
				channels[i].Members = append(channels[i].Members, m)
			}
		}
		if ch.Created < channels[i].Created {
			channels[i].Created = ch.Created
		}
	}
	if !found {
		channels = append(channels, ch)
	}
	return writeJSON(path, channels)
}

// users returns registry entries for the whole directory plus any
// participant it does not know.
func (w *Workspace) users(participants []model.Participant) []workspaceUser {
	var out []workspaceUser
	add := func(name, email, title string) {
		handle, _, _ := strings.Cut(email, "@")
		out = append(out, workspaceUser{
			ID:       identity.Derive(email, "U"),
			TeamID:   w.teamID,
			Name:     strings.ToLower(handle),
			RealName: name,
			TZ:       "America/New_York",
			Profile: workspaceProfile{
				Title:       title,
				RealName:    name,
				DisplayName: name,
				Email:       email,
				Team:        w.teamID,
			},
		})
	}
	known := make(map[string]bool)
	for _, p := range w.dir.Profiles() {
		if p.Email == "" {
			continue
		}
		known[p.Email] = true
		add(p.Name, p.Email, p.Title)
	}
	for _, p := range participants {
		if !known[p.Email] {
			known[p.Email] = true
			add(p.Name, p.Email, "")
		}
	}
	return out
}

type datedMessage struct {
	workspaceMessage
	day string
}

func (w *Workspace) messages(conv *model.ChatConversation, channel string, members []string) []datedMessage {
	emb := newEmbellisher(w.seed, conv.Name)
	out := make([]datedMessage, 0, len(conv.Events))
	for i, ev := range conv.Events {
		user := identity.Derive(ev.Sender.Email, "U")
		ts := SlackTimestamp(ev.Timestamp)
		m := workspaceMessage{
			Type:       "message",
			Text:       ev.Body,
			User:       user,
			Ts:         ts,
			Team:       w.teamID,
			UserTeam:   w.teamID,
			SourceTeam: w.teamID,
		}

		if isJoinMessage(ev.Body) {
			m.Subtype = "channel_join"
			out = append(out, datedMessage{m, ev.Timestamp.Format(time.DateOnly)})
			continue
		}

		m.ClientMsgID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join([]string{channel, user, ts, ev.Body}, "|"))).String()
		m.Blocks = []workspaceBlock{{
			Type:    "rich_text",
			BlockID: identity.DeriveN(m.ClientMsgID, "", 5, identity.AlnumAlphabet),
			Elements: []workspaceElement{{
				Type:     "rich_text_section",
				Elements: []workspaceElement{{Type: "text", Text: ev.Body}},
			}},
		}}
		if ev.HasParent() && ev.Parent < i {
			parent := conv.Events[ev.Parent]
			m.ThreadTs = SlackTimestamp(parent.Timestamp)
			m.ParentUserID = identity.Derive(parent.Sender.Email, "U")
		}

		others := make([]string, 0, len(members))
		for _, id := range members {
			if id != user {
				others = append(others, id)
			}
		}
		if reactors := emb.reaction(ev.Body, others); reactors != nil {
			m.Reactions = []workspaceReaction{{Name: emb.pick(workspaceReactions), Users: reactors, Count: len(reactors)}}
		}
		if at, ok := emb.edit(ev.Body, ev.Timestamp); ok {
			m.Edited = &workspaceEdit{User: user, Ts: SlackTimestamp(at)}
		}
		out = append(out, datedMessage{m, ev.Timestamp.Format(time.DateOnly)})
	}
	return out
}

// isJoinMessage reports whether a body is a short "joined" notice.
func isJoinMessage(body string) bool {
	return len(body) < joinMessageMaxSize && strings.Contains(strings.ToLower(body), "joined")
}
