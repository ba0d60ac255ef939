package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/waste2worth/backend/internal/data"
)

// fakeThreads is an in-memory ThreadStore mirroring the real store's
// semantics closely enough for the chat core: one thread per
// (post, participant pair), role-specific counters, preview fields.
type fakeThreads struct {
	mu      sync.Mutex
	threads map[string]*data.ChatThread

	recordErr error
	resetErr  error
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{threads: make(map[string]*data.ChatThread)}
}

func (f *fakeThreads) GetOrCreate(_ context.Context, postID, contributorID, collectorID string) (*data.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := data.ParticipantKey(contributorID, collectorID)
	for _, t := range f.threads {
		if t.PostID == postID && t.ParticipantKey == key {
			return copyThread(t), nil
		}
	}

	t := &data.ChatThread{
		ID:             bson.NewObjectID(),
		PostID:         postID,
		ContributorID:  contributorID,
		CollectorID:    collectorID,
		ParticipantKey: key,
		CreatedAt:      time.Now(),
	}
	f.threads[t.ID.Hex()] = t
	return copyThread(t), nil
}

func (f *fakeThreads) Get(_ context.Context, threadID string) (*data.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.threads[threadID]
	if !ok {
		return nil, data.ErrNotFound
	}
	return copyThread(t), nil
}

func (f *fakeThreads) RecordOutgoingMessage(_ context.Context, threadID, senderID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordErr != nil {
		return f.recordErr
	}
	t, ok := f.threads[threadID]
	if !ok {
		return data.ErrNotFound
	}
	if !t.IsParticipant(senderID) {
		return data.ErrPermissionDenied
	}
	t.LastMessage = text
	t.LastMessageTime = time.Now()
	if senderID == t.ContributorID {
		t.UnreadCollector++
	} else {
		t.UnreadContributor++
	}
	return nil
}

func (f *fakeThreads) ResetUnread(_ context.Context, threadID, readerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resetErr != nil {
		return f.resetErr
	}
	t, ok := f.threads[threadID]
	if !ok {
		return data.ErrNotFound
	}
	if readerID == t.ContributorID {
		t.UnreadContributor = 0
	} else if readerID == t.CollectorID {
		t.UnreadCollector = 0
	}
	return nil
}

func (f *fakeThreads) ListForUser(_ context.Context, userID string) ([]*data.ThreadWithRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*data.ThreadWithRole
	for _, t := range f.threads {
		if t.IsParticipant(userID) {
			out = append(out, &data.ThreadWithRole{ChatThread: *copyThread(t), Role: t.RoleOf(userID)})
		}
	}
	return out, nil
}

func (f *fakeThreads) FindForPost(_ context.Context, postID, userID string) (*data.ThreadWithRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.threads {
		if t.PostID == postID && t.IsParticipant(userID) {
			return &data.ThreadWithRole{ChatThread: *copyThread(t), Role: t.RoleOf(userID)}, nil
		}
	}
	return nil, nil
}

func copyThread(t *data.ChatThread) *data.ChatThread {
	c := *t
	return &c
}

// fakeMessages is an in-memory MessageStore with failure injection for
// the ordered query and the insert path.
type fakeMessages struct {
	mu   sync.Mutex
	msgs []*data.Message

	insertErr    error
	orderedErr   error // returned for ordered lists, e.g. data.ErrOrderUnsupported
	listErr      error // returned for every list
	dropInserted bool  // acknowledge inserts without storing them
	stripClient  bool  // store messages without their client id
	reverse      bool  // return unordered lists newest-first
}

func newFakeMessages() *fakeMessages { return &fakeMessages{} }

func (f *fakeMessages) Insert(_ context.Context, msg *data.Message) (*data.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return nil, f.insertErr
	}
	stored := *msg
	stored.ID = bson.NewObjectID()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	if f.stripClient {
		stored.ClientID = ""
	}
	if !f.dropInserted {
		f.msgs = append(f.msgs, &stored)
	}
	out := stored
	return &out, nil
}

func (f *fakeMessages) List(_ context.Context, chatID string, ordered bool) ([]*data.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	if ordered && f.orderedErr != nil {
		return nil, f.orderedErr
	}

	var out []*data.Message
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			c := *m
			out = append(out, &c)
		}
	}
	if ordered {
		SortMessages(out)
	} else if f.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, chatID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, m := range f.msgs {
		if m.ChatID == chatID && m.SenderID != readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func newTestService(t *testing.T) (*Service, *fakeThreads, *fakeMessages, *Hub) {
	t.Helper()
	threads := newFakeThreads()
	msgs := newFakeMessages()
	hub := NewHub()
	return NewService(threads, msgs, hub), threads, msgs, hub
}

func TestSendUpdatesRecipientCounterOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	thread, err := svc.OpenThread(ctx, "post1", "alice", "bob")
	if err != nil {
		t.Fatalf("open thread: %v", err)
	}

	if _, err := svc.Send(ctx, SendRequest{ThreadID: thread.ID.Hex(), SenderID: "alice", Text: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := svc.Thread(ctx, thread.ID.Hex())
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if got.UnreadCollector != 1 {
		t.Errorf("collector unread = %d, want 1", got.UnreadCollector)
	}
	if got.UnreadContributor != 0 {
		t.Errorf("contributor unread = %d, want 0", got.UnreadContributor)
	}
	if got.LastMessage != "hello" {
		t.Errorf("last message = %q, want %q", got.LastMessage, "hello")
	}
}

func TestSendRejectsBlankText(t *testing.T) {
	ctx := context.Background()
	svc, _, msgs, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Send(ctx, SendRequest{ThreadID: thread.ID.Hex(), SenderID: "alice", Text: text}); !errors.Is(err, data.ErrValidation) {
			t.Errorf("send %q: err = %v, want ErrValidation", text, err)
		}
	}
	if len(msgs.msgs) != 0 {
		t.Errorf("blank sends stored %d messages", len(msgs.msgs))
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	if _, err := svc.Send(ctx, SendRequest{ThreadID: thread.ID.Hex(), SenderID: "mallory", Text: "hi"}); !errors.Is(err, data.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestSendSurvivesCounterFailure(t *testing.T) {
	ctx := context.Background()
	svc, threads, _, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	threads.recordErr = errors.New("write conflict")

	msg, err := svc.Send(ctx, SendRequest{ThreadID: thread.ID.Hex(), SenderID: "alice", Text: "hi"})
	if err == nil {
		t.Fatal("expected counter failure to surface")
	}
	if msg == nil {
		t.Fatal("message should still be returned, the send itself persisted")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, msgs, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	id := thread.ID.Hex()
	for i := 0; i < 3; i++ {
		if _, err := svc.Send(ctx, SendRequest{ThreadID: id, SenderID: "alice", Text: "ping"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if err := svc.MarkRead(ctx, id, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := svc.Thread(ctx, id)
	if got.UnreadCollector != 0 {
		t.Fatalf("collector unread after read = %d, want 0", got.UnreadCollector)
	}
	for _, m := range msgs.msgs {
		if !m.Read {
			t.Fatalf("message %q still unread", m.Text)
		}
	}

	// nothing left to mark; must be a no-op, not an error
	if err := svc.MarkRead(ctx, id, "bob"); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
}

func TestMarkReadRejectsNonParticipant(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	if err := svc.MarkRead(ctx, thread.ID.Hex(), "mallory"); !errors.Is(err, data.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

// TestConversationFlow walks a full exchange: two incoming messages,
// the recipient opens the thread, replies, and both sides' totals track
// their own role counters throughout.
func TestConversationFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	id := thread.ID.Hex()

	svc.Send(ctx, SendRequest{ThreadID: id, SenderID: "alice", Text: "is the compost still available?"})
	svc.Send(ctx, SendRequest{ThreadID: id, SenderID: "alice", Text: "I can pick up today"})

	if n, _ := svc.TotalUnread(ctx, "bob"); n != 2 {
		t.Fatalf("bob total unread = %d, want 2", n)
	}
	if n, _ := svc.TotalUnread(ctx, "alice"); n != 0 {
		t.Fatalf("alice total unread = %d, want 0", n)
	}

	if err := svc.MarkRead(ctx, id, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n, _ := svc.TotalUnread(ctx, "bob"); n != 0 {
		t.Fatalf("bob total unread after read = %d, want 0", n)
	}

	svc.Send(ctx, SendRequest{ThreadID: id, SenderID: "bob", Text: "yes, come by anytime"})
	if n, _ := svc.TotalUnread(ctx, "alice"); n != 1 {
		t.Fatalf("alice total unread after reply = %d, want 1", n)
	}
	if n, _ := svc.TotalUnread(ctx, "bob"); n != 0 {
		t.Fatalf("bob total unread after own reply = %d, want 0", n)
	}
}

func TestUnreadForPost(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	badge, err := svc.UnreadForPost(ctx, "post1", "bob")
	if err != nil {
		t.Fatalf("unread for post: %v", err)
	}
	if badge != nil {
		t.Fatalf("badge = %+v, want nil before any thread exists", badge)
	}

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	svc.Send(ctx, SendRequest{ThreadID: thread.ID.Hex(), SenderID: "alice", Text: "hey"})

	badge, err = svc.UnreadForPost(ctx, "post1", "bob")
	if err != nil {
		t.Fatalf("unread for post: %v", err)
	}
	if badge == nil {
		t.Fatal("badge missing after thread exists")
	}
	if badge.UnreadCount != 1 {
		t.Errorf("badge count = %d, want 1", badge.UnreadCount)
	}
	if badge.OtherParticipantID != "alice" {
		t.Errorf("badge peer = %q, want alice", badge.OtherParticipantID)
	}
	if badge.ThreadID != thread.ID.Hex() {
		t.Errorf("badge thread = %q, want %q", badge.ThreadID, thread.ID.Hex())
	}
}

func TestMessagesFallsBackWhenOrderUnsupported(t *testing.T) {
	ctx := context.Background()
	svc, _, msgs, _ := newTestService(t)

	thread, _ := svc.OpenThread(ctx, "post1", "alice", "bob")
	id := thread.ID.Hex()
	svc.Send(ctx, SendRequest{ThreadID: id, SenderID: "alice", Text: "one"})
	svc.Send(ctx, SendRequest{ThreadID: id, SenderID: "bob", Text: "two"})

	msgs.orderedErr = data.ErrOrderUnsupported
	msgs.reverse = true

	got, err := svc.Messages(ctx, id, "alice")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(got) != 2 || got[0].Text != "one" || got[1].Text != "two" {
		t.Fatalf("fallback history out of order: %v", []string{got[0].Text, got[1].Text})
	}

	if _, err := svc.Messages(ctx, id, "mallory"); !errors.Is(err, data.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestOpenThreadReusesExisting(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	a, err := svc.OpenThread(ctx, "post1", "alice", "bob")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	b, err := svc.OpenThread(ctx, "post1", "alice", "bob")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("got two threads %s and %s for the same post and pair", a.ID.Hex(), b.ID.Hex())
	}
}
