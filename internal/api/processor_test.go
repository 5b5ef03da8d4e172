package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadline/internal/responder"
	"github.com/leadline/internal/store"
	"github.com/leadline/internal/whatsapp"
)

type fakeSessions struct {
	mu       sync.Mutex
	user     *store.User
	conv     *store.Conversation
	resolves int
	closed   []int64
}

func (f *fakeSessions) Resolve(ctx context.Context, phone, name string) (*store.User, *store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	return f.user, f.conv, nil
}

func (f *fakeSessions) Close(ctx context.Context, conversationID int64, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, conversationID)
	return nil
}

type fakeMessages struct {
	mu       sync.Mutex
	inserted []store.Message
}

func (f *fakeMessages) Insert(ctx context.Context, m *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, *m)
	return nil
}

func (f *fakeMessages) ListByConversation(ctx context.Context, conversationID int64, page, limit int) ([]store.Message, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserted, len(f.inserted), nil
}

func (f *fakeMessages) snapshot() []store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Message, len(f.inserted))
	copy(out, f.inserted)
	return out
}

type fakeLeadSvc struct {
	mu   sync.Mutex
	lead *store.Lead
}

func (f *fakeLeadSvc) GetOrCreate(ctx context.Context, user *store.User) (*store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lead, nil
}

func (f *fakeLeadSvc) Transition(ctx context.Context, id int64, target store.LeadStatus) (*store.Lead, error) {
	return f.lead, nil
}

func (f *fakeLeadSvc) AddNote(ctx context.Context, leadID int64, note, addedBy string) (*store.LeadNote, error) {
	return &store.LeadNote{LeadID: leadID, Note: note}, nil
}

func (f *fakeLeadSvc) List(ctx context.Context, params store.ListLeadsParams) ([]store.Lead, int, error) {
	return nil, 0, nil
}

type fakeReplies struct {
	reply responder.Reply
}

func (f *fakeReplies) Respond(ctx context.Context, sessionID string, userID int64, text string) responder.Reply {
	return f.reply
}

type fakeAPISender struct {
	mu      sync.Mutex
	sent    []string
	read    []string
	sendErr error
}

func (f *fakeAPISender) SendText(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAPISender) MarkRead(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, messageID)
	return nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	initial []int64
	manual  []int64
}

func (f *fakeScheduler) Schedule(ctx context.Context, leadID int64, phone, message string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manual = append(f.manual, leadID)
	return nil
}

func (f *fakeScheduler) ScheduleInitial(ctx context.Context, lead *store.Lead, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initial = append(f.initial, lead.ID)
	return nil
}

type fakeUserFlags struct {
	mu       sync.Mutex
	optedOut []int64
}

func (f *fakeUserFlags) SetOptedOut(ctx context.Context, id int64, optedOut bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if optedOut {
		f.optedOut = append(f.optedOut, id)
	}
	return nil
}

func textEvent(text string) whatsapp.Event {
	return whatsapp.Event{
		MessageID: "wamid.IN",
		From:      "919900112233",
		Name:      "Asha",
		Type:      "text",
		Text:      text,
	}
}

func newTestProcessor() (*Processor, *fakeSessions, *fakeMessages, *fakeAPISender, *fakeScheduler) {
	sessions := &fakeSessions{
		user: &store.User{ID: 7, Phone: "919900112233", Name: "Asha"},
		conv: &store.Conversation{ID: 3, UserID: 7, SessionID: "sess-1"},
	}
	messages := &fakeMessages{}
	leads := &fakeLeadSvc{lead: &store.Lead{ID: 5, UserID: 7, Phone: "919900112233", Status: store.LeadNew}}
	replies := &fakeReplies{reply: responder.Reply{Text: "Hi there!", Intent: "greeting", Source: responder.SourceRule}}
	sender := &fakeAPISender{}
	scheduler := &fakeScheduler{}
	p := NewProcessor(sessions, messages, leads, &fakeUserFlags{}, replies, sender, scheduler, 24*time.Hour)
	return p, sessions, messages, sender, scheduler
}

func TestProcessOptOutFlagsUser(t *testing.T) {
	p, _, _, sender, _ := newTestProcessor()
	flags := &fakeUserFlags{}
	p.users = flags
	p.replies = &fakeReplies{reply: responder.Reply{Text: "You've been unsubscribed.", Intent: "opt_out", Source: responder.SourceRule}}

	p.Process(context.Background(), []whatsapp.Event{textEvent("STOP")})

	assert.Equal(t, []int64{7}, flags.optedOut)
	assert.Equal(t, []string{"You've been unsubscribed."}, sender.sent)
}

func TestProcessTextMessageEndToEnd(t *testing.T) {
	p, sessions, messages, sender, scheduler := newTestProcessor()

	p.Process(context.Background(), []whatsapp.Event{textEvent("hello")})

	assert.Equal(t, 1, sessions.resolves)
	assert.Equal(t, []string{"wamid.IN"}, sender.read)
	assert.Equal(t, []string{"Hi there!"}, sender.sent)
	assert.Equal(t, []int64{5}, scheduler.initial)

	inserted := messages.snapshot()
	require.Len(t, inserted, 2)

	inbound := inserted[0]
	assert.Equal(t, store.DirectionInbound, inbound.Direction)
	assert.Equal(t, "hello", inbound.Content)
	assert.Equal(t, "wamid.IN", inbound.WAMessageID)
	assert.False(t, inbound.GeneratedByAI)

	outbound := inserted[1]
	assert.Equal(t, store.DirectionOutbound, outbound.Direction)
	assert.Equal(t, "Hi there!", outbound.Content)
	assert.False(t, outbound.GeneratedByAI)
	assert.Zero(t, outbound.TokensUsed)
}

func TestProcessRecordsGenerativeUsage(t *testing.T) {
	p, _, messages, _, _ := newTestProcessor()
	p.replies = &fakeReplies{reply: responder.Reply{Text: "Generated answer.", Intent: "ai_fallback", TokensUsed: 91, Source: responder.SourceAI}}

	p.Process(context.Background(), []whatsapp.Event{textEvent("tell me about onboarding")})

	inserted := messages.snapshot()
	require.Len(t, inserted, 2)
	assert.True(t, inserted[1].GeneratedByAI)
	assert.Equal(t, 91, inserted[1].TokensUsed)
}

func TestProcessSkipsNonTextEvents(t *testing.T) {
	p, sessions, messages, sender, _ := newTestProcessor()

	p.Process(context.Background(), []whatsapp.Event{
		{MessageID: "wamid.IMG", From: "919900112233", Type: "image"},
		{MessageID: "wamid.EMPTY", From: "919900112233", Type: "text", Text: "   "},
	})

	assert.Zero(t, sessions.resolves)
	assert.Empty(t, messages.snapshot())
	assert.Empty(t, sender.sent)
}

func TestProcessSendFailureDropsOutboundRecord(t *testing.T) {
	p, _, messages, sender, scheduler := newTestProcessor()
	sender.sendErr = errors.New("upstream 500")

	p.Process(context.Background(), []whatsapp.Event{textEvent("hello")})

	// Inbound is durable even when the reply never leaves.
	inserted := messages.snapshot()
	require.Len(t, inserted, 1)
	assert.Equal(t, store.DirectionInbound, inserted[0].Direction)
	assert.Empty(t, scheduler.initial)
}

func TestProcessWithoutScheduler(t *testing.T) {
	p, _, messages, _, _ := newTestProcessor()
	p.scheduler = nil

	p.Process(context.Background(), []whatsapp.Event{textEvent("hello")})
	assert.Len(t, messages.snapshot(), 2)
}
