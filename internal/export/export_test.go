package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

var (
	jamie  = model.Participant{Name: "Jamie Chen", Email: "jamie@acme.com"}
	taylor = model.Participant{Name: "Taylor Brooks", Email: "taylor@acme.com"}
	casey  = model.Participant{Name: "Casey Bennett", Email: "casey@rival.com"}
)

func testDirectory() *model.Directory {
	return model.NewDirectory([]model.Company{
		{Name: "Acme", Personnel: []model.Profile{
			{Name: jamie.Name, Email: jamie.Email, Title: "VP Sales"},
			{Name: taylor.Name, Email: taylor.Email, Title: "Analyst"},
		}},
	})
}

func conversation(name string, start time.Time, bodies ...string) *model.ChatConversation {
	conv := &model.ChatConversation{Name: name, Start: start}
	senders := []model.Participant{jamie, taylor, casey}
	at := start
	for i, body := range bodies {
		parent := -1
		if i == 2 {
			parent = 0
		}
		conv.Events = append(conv.Events, model.ChatEvent{
			Sender:    senders[i%len(senders)],
			Body:      body,
			Timestamp: at,
			Parent:    parent,
		})
		at = at.Add(90 * time.Minute)
	}
	return conv
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "pricing-call_notes", ChannelName("Pricing Call_Notes!"))
	assert.Equal(t, "abcdefghijklmnopqrstu", ChannelName("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "general", ChannelName("!!!"))
}

func TestSlackTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	assert.Equal(t, "1700000000.123456", SlackTimestamp(ts))
}

func TestMergeByKey_KeepsExistingAndSkipsDuplicates(t *testing.T) {
	key := func(s string) string { return s }
	got := mergeByKey([]string{"b", "a"}, []string{"a", "c", "c"}, key)
	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestWorkspace_ExportWritesRegistriesAndDailyLogs(t *testing.T) {
	// arrange
	root := t.TempDir()
	w := NewWorkspace(root, testDirectory(), 7, logger.Nop())
	start := time.Date(2024, time.March, 4, 22, 0, 0, 0, time.UTC)
	conv := conversation("pricing_sync_r1_abc123", start, "hey", "numbers look off this quarter", "agreed")

	// act
	a, err := w.Export(conv)

	// assert
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactChat, a.Kind)
	assert.Len(t, a.Paths, 2, "events span two days")
	assert.ElementsMatch(t, []string{jamie.Email, taylor.Email, casey.Email}, a.Custodians)

	users, err := readJSON[workspaceUser](filepath.Join(root, workspaceDir, "users.json"))
	require.NoError(t, err)
	assert.Len(t, users, 3, "directory profiles plus the unknown participant")

	channels, err := readJSON[workspaceChannel](filepath.Join(root, workspaceDir, "channels.json"))
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "pricing_sync_r1_abc12", channels[0].Name)
	assert.Len(t, channels[0].Members, 3)

	day2, err := readJSON[workspaceMessage](filepath.Join(root, workspaceDir, channels[0].Name, "2024-03-05.json"))
	require.NoError(t, err)
	require.Len(t, day2, 1)
	reply := day2[0]
	assert.Equal(t, "agreed", reply.Text)
	assert.Equal(t, SlackTimestamp(start), reply.ThreadTs)
	assert.NotEmpty(t, reply.ParentUserID)
	assert.NotEmpty(t, reply.ClientMsgID)
	require.Len(t, reply.Blocks, 1)
	assert.Equal(t, "rich_text", reply.Blocks[0].Type)
}

func TestWorkspace_ReexportIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w := NewWorkspace(root, testDirectory(), 7, logger.Nop())
	conv := conversation("dup", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), "one", "two")

	_, err := w.Export(conv)
	require.NoError(t, err)
	_, err = w.Export(conv)
	require.NoError(t, err)

	log, err := readJSON[workspaceMessage](filepath.Join(root, workspaceDir, "dup", "2024-03-04.json"))
	require.NoError(t, err)
	assert.Len(t, log, 2)
	users, err := readJSON[workspaceUser](filepath.Join(root, workspaceDir, "users.json"))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestWorkspace_MergeOrderDoesNotMatter(t *testing.T) {
	// arrange: both names truncate to the same channel
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	a := conversation("quarterly_pricing_call_a", start, "first", "second point here", "reply")
	b := conversation("quarterly_pricing_call_b", start.Add(45*time.Minute), "other", "another thing", "ok")

	export := func(order ...*model.ChatConversation) []workspaceMessage {
		root := t.TempDir()
		w := NewWorkspace(root, testDirectory(), 11, logger.Nop())
		for _, c := range order {
			_, err := w.Export(c)
			require.NoError(t, err)
		}
		log, err := readJSON[workspaceMessage](filepath.Join(root, workspaceDir, ChannelName(a.Name), "2024-03-04.json"))
		require.NoError(t, err)
		return log
	}

	// act
	ab := export(a, b)
	ba := export(b, a)

	// assert
	require.Len(t, ab, 6)
	require.Len(t, ba, 6)
	for i := range ab {
		assert.Equal(t, ab[i].ClientMsgID, ba[i].ClientMsgID)
		assert.Equal(t, ab[i].Text, ba[i].Text)
		assert.Equal(t, ab[i].Reactions, ba[i].Reactions)
		assert.Equal(t, ab[i].Edited, ba[i].Edited)
	}
	for i := 1; i < len(ab); i++ {
		assert.LessOrEqual(t, ab[i-1].Ts, ab[i].Ts)
	}
}

func TestWorkspace_JoinNoticeUsesSubtype(t *testing.T) {
	root := t.TempDir()
	w := NewWorkspace(root, testDirectory(), 1, logger.Nop())
	conv := conversation("joins", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), "Taylor joined the channel", "hello")

	_, err := w.Export(conv)
	require.NoError(t, err)

	log, err := readJSON[workspaceMessage](filepath.Join(root, workspaceDir, "joins", "2024-03-04.json"))
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "channel_join", log[0].Subtype)
	assert.Empty(t, log[0].ClientMsgID)
	assert.Empty(t, log[0].Blocks)
}

func TestPortable_WritesManifestArchive(t *testing.T) {
	// arrange
	root := t.TempDir()
	p := NewPortable(root, 3, logger.Nop())
	conv := conversation("safety_chat_r2_0a1b2c", time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC), "saw the report?", "yes", "we need to talk")

	// act
	a, err := p.Export(conv)

	// assert
	require.NoError(t, err)
	require.Len(t, a.Paths, 1)
	assert.Equal(t, filepath.Join(root, "jamie", "safety_chat_r2_0a1b2c.rsmf"), a.Paths[0])

	zr, err := zip.OpenReader(a.Paths[0])
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, ManifestName, zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)

	var m PortableManifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "1.0.0", m.Version)
	require.Len(t, m.Conversations, 1)
	assert.Equal(t, "Chat - safety chat r2 0a1b2c", m.Conversations[0].Display)
	assert.Equal(t, "Microsoft Teams", m.Conversations[0].Platform)
	assert.Equal(t, "Channel", m.Conversations[0].Type)
	assert.Len(t, m.Participants, 3)
	require.Len(t, m.Events, 3)
	assert.Equal(t, "2024-05-01T10:00:00Z", m.Events[0].Timestamp)
	assert.Equal(t, m.Events[0].ID, m.Events[2].Parent)
	assert.Equal(t, a.ID, m.Conversations[0].ID)
}

func TestHosted_ReexportKeepsIdentifiers(t *testing.T) {
	// arrange
	root := t.TempDir()
	h := NewHosted(root, 5, logger.Nop())
	conv := conversation("hr_complaint_r1_ffffff", time.Date(2024, time.June, 3, 14, 0, 0, 0, time.UTC), "ping", "pong", "thread reply")

	// act
	first, err := h.Export(conv)
	require.NoError(t, err)
	second, err := h.Export(conv)
	require.NoError(t, err)

	// assert
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, strings.HasPrefix(first.ID, "Y2lzY"))

	dir := filepath.Join(root, hostedDir, conv.Name)
	rooms, err := readJSON[hostedRoom](filepath.Join(dir, "rooms.json"))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Hr Complaint R1 Ffffff", rooms[0].Title)
	assert.Equal(t, "2024-06-03T14:00:00.000Z", rooms[0].Created)
	assert.Equal(t, "2024-06-03T17:00:00.000Z", rooms[0].LastActivity)

	messages, err := readJSON[hostedMessage](filepath.Join(dir, "messages.json"))
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, messages[0].ID, messages[2].ParentID)

	people, err := readJSON[hostedPerson](filepath.Join(dir, "participants.json"))
	require.NoError(t, err)
	assert.Len(t, people, 3)
}

func TestHosted_MergeOrderDoesNotMatter(t *testing.T) {
	// arrange: a later session and an earlier one land in the same room
	later := conversation("pricing_sync", time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), "a1", "a2")
	earlier := conversation("pricing_sync", time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC), "b1", "b2", "b3")

	export := func(order ...*model.ChatConversation) []byte {
		root := t.TempDir()
		h := NewHosted(root, 5, logger.Nop())
		for _, c := range order {
			_, err := h.Export(c)
			require.NoError(t, err)
		}
		data, err := os.ReadFile(filepath.Join(root, hostedDir, "pricing_sync", "messages.json"))
		require.NoError(t, err)
		return data
	}

	// act
	ab := export(later, earlier)
	ba := export(earlier, later)

	// assert
	assert.Equal(t, string(ba), string(ab))
	var messages []hostedMessage
	require.NoError(t, json.Unmarshal(ab, &messages))
	require.Len(t, messages, 5)
	for i := 1; i < len(messages); i++ {
		assert.LessOrEqual(t, messages[i-1].Created, messages[i].Created)
	}
	assert.Equal(t, "b1", messages[0].Text)
	assert.Equal(t, "a2", messages[4].Text)
}

func TestRoomTitle(t *testing.T) {
	assert.Equal(t, "Pricing Call Notes", RoomTitle("pricing_call_NOTES"))
}

func TestSet_SelectsFormats(t *testing.T) {
	root := t.TempDir()
	dir := testDirectory()

	assert.Len(t, NewSet(model.ChatAll, root, dir, 1, logger.Nop()).Exporters(), 3)
	only := NewSet(model.ChatWebex, root, dir, 1, logger.Nop()).Exporters()
	require.Len(t, only, 1)
	assert.Equal(t, model.ChatWebex, only[0].Format())
}

func TestSet_ExportReturnsEveryArtifact(t *testing.T) {
	root := t.TempDir()
	set := NewSet(model.ChatAll, root, testDirectory(), 1, logger.Nop())
	conv := conversation("all_formats", time.Date(2024, time.June, 3, 14, 0, 0, 0, time.UTC), "a", "b")

	artifacts, err := set.Export(conv)

	require.NoError(t, err)
	assert.Len(t, artifacts, 3)
}

func TestSet_EmptyConversationFails(t *testing.T) {
	set := NewSet(model.ChatAll, t.TempDir(), testDirectory(), 1, logger.Nop())

	artifacts, err := set.Export(&model.ChatConversation{Name: "empty"})

	assert.Error(t, err)
	assert.Empty(t, artifacts)
}

func TestCustodianFolder(t *testing.T) {
	assert.Equal(t, "jamie", CustodianFolder("jamie@acme.com"))
	assert.Equal(t, "a_b", CustodianFolder("a/b@acme.com"))
	assert.Equal(t, "unknown", CustodianFolder("@acme.com"))
}

func TestEMLEncoder_WritesOneCopyPerCustodian(t *testing.T) {
	// arrange
	root := t.TempDir()
	enc := NewEMLEncoder(root, 9, logger.Nop())
	msg := &model.Message{
		MessageID:  "<abc@acme.com>",
		InReplyTo:  "<prev@acme.com>",
		References: []string{"<first@acme.com>", "<prev@acme.com>"},
		Sender:     jamie,
		Recipients: []model.Participant{taylor},
		Bcc:        []model.Participant{casey},
		Subject:    "Re: Pricing",
		Body:       "Let's hold at 15%.\nThanks",
		CreatedAt:  time.Date(2024, time.July, 8, 14, 5, 0, 0, time.UTC),
	}

	// act
	a, err := enc.Encode(msg, "pricing_r1_000001_2", "(S1) Price-fixing with legal review")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "<abc@acme.com>", a.ID)
	assert.Equal(t, []string{jamie.Email, taylor.Email, casey.Email}, a.Custodians)
	require.Len(t, a.Paths, 3)
	for _, folder := range []string{"jamie", "taylor", "casey"} {
		assert.FileExists(t, filepath.Join(root, folder, "pricing_r1_000001_2.eml"))
	}

	raw, err := os.ReadFile(a.Paths[0])
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "From: \"Jamie Chen\" <jamie@acme.com>\r\n")
	assert.Contains(t, text, "Bcc: \"Casey Bennett\" <casey@rival.com>\r\n")
	assert.Contains(t, text, "Date: Mon, 08 Jul 2024 14:05:00 +0000\r\n")
	assert.Contains(t, text, "In-Reply-To: <prev@acme.com>\r\n")
	assert.Contains(t, text, "References: <first@acme.com>\r\n <prev@acme.com>\r\n")
	assert.Contains(t, text, "Importance: High\r\n")
	assert.Contains(t, text, "Sensitivity: Private\r\n")
	assert.Contains(t, text, "X-Mailer: ")
	assert.Contains(t, text, "15%.")
}

func TestEMLEncoder_FoldsLongRecipientLists(t *testing.T) {
	enc := NewEMLEncoder(t.TempDir(), 1, logger.Nop())
	msg := &model.Message{MessageID: "<x@acme.com>", Sender: jamie, Subject: "Blast", Body: "all hands"}
	for i := 0; i < 20; i++ {
		msg.Recipients = append(msg.Recipients, taylor)
	}

	raw, err := enc.Render(msg, "")

	require.NoError(t, err)
	assert.Contains(t, string(raw), ",\r\n \"Taylor Brooks\"")
	assert.NotContains(t, string(raw), "Importance:")
}

func TestEMLEncoder_NoCustodianFails(t *testing.T) {
	enc := NewEMLEncoder(t.TempDir(), 1, logger.Nop())
	_, err := enc.Encode(&model.Message{Sender: model.Participant{Name: "Nobody"}}, "x", "")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		desc        string
		importance  string
		sensitivity string
	}{
		{"(S3) Lunch plans", "", ""},
		{"(S2) Safety data fraud", "High", ""},
		{"Privileged legal advice", "High", "Private"},
		{"URGENT: shipment", "High", ""},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			imp, sens := Classify(tc.desc)
			assert.Equal(t, tc.importance, imp)
			assert.Equal(t, tc.sensitivity, sens)
		})
	}
}

func TestICSEncoder_Render(t *testing.T) {
	// arrange
	root := t.TempDir()
	enc := NewICSEncoder(root, logger.Nop())
	enc.clock = func() time.Time { return time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC) }
	start := time.Date(2024, time.January, 10, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	ev := &model.CalendarEvent{
		UID:         "uid-1@acme.com",
		Summary:     "Pricing sync",
		Description: "Agenda:\n1. Rates; 2. Timing, next steps",
		Organizer:   jamie,
		Attendees:   []model.Participant{taylor, casey},
		Start:       start,
		End:         start.Add(time.Hour),
	}

	// act
	a, err := enc.Encode(ev, "pricing_r1_123456")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "uid-1@acme.com", a.ID)
	assert.Equal(t, []string{jamie.Email}, a.Custodians)
	raw, err := os.ReadFile(filepath.Join(root, "pricing_r1_123456.ics"))
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, text, "DTSTAMP:20240102T030405Z\r\n")
	assert.Contains(t, text, "ORGANIZER;CN=Jamie Chen:mailto:jamie@acme.com\r\n")
	assert.Contains(t, text, "ATTENDEE;CN=Casey Bennett;ROLE=REQ-PARTICIPANT:mailto:casey@rival.com\r\n")
	assert.Contains(t, text, "DTSTART:20240110T143000Z\r\n")
	assert.Contains(t, text, "DTEND:20240110T153000Z\r\n")
	assert.Contains(t, text, `DESCRIPTION:Agenda:\n1. Rates\; 2. Timing\, next steps`+"\r\n")
	assert.True(t, strings.HasSuffix(text, "END:VCALENDAR\r\n"))
}
