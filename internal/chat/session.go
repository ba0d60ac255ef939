package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waste2worth/backend/internal/data"
)

// UserDirectory resolves display fields for chat headers. Failures
// degrade to a placeholder and never block the thread.
type UserDirectory interface {
	GetByID(ctx context.Context, userID string) (*data.User, error)
}

// PostDirectory resolves the post a thread is about, for the
// "Re: <type> (<qty> kg)" context line. Same degradation rule.
type PostDirectory interface {
	Get(ctx context.Context, postID string) (*data.WastePost, error)
}

// DefaultEchoTimeout bounds how long an optimistic echo may stay
// pending before it is marked failed.
const DefaultEchoTimeout = 30 * time.Second

// echoMatchWindow is how far apart an echo and its confirmed message may
// be in time and still be considered the same send, when the client id
// is missing.
const echoMatchWindow = 2 * time.Minute

// ViewMessage is what a session delivers to its view: either a
// confirmed message or a not-yet-confirmed (or failed) optimistic echo.
type ViewMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
	Pending   bool      `json:"pending,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
}

type pendingEcho struct {
	clientID  string
	text      string
	createdAt time.Time
	failed    bool
	timer     *time.Timer
}

// SessionParams configures one open chat view.
type SessionParams struct {
	PostID        string
	ContributorID string
	CollectorID   string
	UserID        string

	// Deliver receives every snapshot, confirmed messages first, then
	// pending echoes in send order. Called with the session lock held;
	// it must not call back into the session.
	Deliver func([]ViewMessage)
	// OnError receives subscription failures that survived the fallback
	// ladder. Optional.
	OnError func(error)

	// EchoTimeout overrides DefaultEchoTimeout; used by tests.
	EchoTimeout time.Duration
}

// Session is one user's open view of a thread. It resolves the thread,
// loads header metadata, subscribes to the live feed, marks messages
// read, and manages optimistic echoes for outgoing sends.
type Session struct {
	svc      *Service
	threadID string
	postID   string
	userID   string

	// display metadata, placeholders when lookups failed
	OtherUserName string
	PostLabel     string

	echoTimeout time.Duration
	deliver     func([]ViewMessage)

	mu          sync.Mutex
	latest      []*data.Message
	pending     []*pendingEcho
	unsubscribe func()
	closed      bool
}

// OpenSession resolves (or lazily creates) the thread for the given post
// and participants, loads display metadata, marks the thread read and
// subscribes to its live feed. The caller must be one of the two
// participants.
func OpenSession(ctx context.Context, svc *Service, stream *Stream, users UserDirectory, posts PostDirectory, p SessionParams) (*Session, error) {
	if p.UserID != p.ContributorID && p.UserID != p.CollectorID {
		return nil, fmt.Errorf("%w: caller is not a participant of this chat", data.ErrPermissionDenied)
	}

	thread, err := svc.OpenThread(ctx, p.PostID, p.ContributorID, p.CollectorID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		svc:         svc,
		threadID:    thread.ID.Hex(),
		postID:      p.PostID,
		userID:      p.UserID,
		echoTimeout: p.EchoTimeout,
		deliver:     p.Deliver,
	}
	if s.echoTimeout <= 0 {
		s.echoTimeout = DefaultEchoTimeout
	}
	if s.deliver == nil {
		s.deliver = func([]ViewMessage) {}
	}

	// header metadata is cosmetic: failures degrade, they never block
	s.OtherUserName = "Unknown User"
	if users != nil {
		if other, err := users.GetByID(ctx, thread.OtherParticipant(p.UserID)); err == nil && other.Name != "" {
			s.OtherUserName = other.Name
		}
	}
	s.PostLabel = "Unknown"
	if posts != nil {
		if post, err := posts.Get(ctx, p.PostID); err == nil {
			s.PostLabel = fmt.Sprintf("Re: %s (%g kg)", post.WasteType, post.Quantity)
		}
	}

	// opening the view reads it
	if err := svc.MarkRead(ctx, s.threadID, p.UserID); err != nil {
		log.Printf("mark read on open failed for thread %s: %v", s.threadID, err)
	}

	s.unsubscribe = stream.Subscribe(ctx, s.threadID, s.onSnapshot, p.OnError)
	return s, nil
}

// ThreadID returns the id of the thread this session is attached to.
func (s *Session) ThreadID() string { return s.threadID }

// Send validates the text, shows an optimistic echo immediately, then
// performs the real send. On failure the echo is removed and the error
// returned so the caller can restore the input for a retry. An echo
// that is neither confirmed nor failed within the echo timeout is
// marked failed rather than left pending forever.
func (s *Session) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: message text is empty", data.ErrValidation)
	}

	echo := &pendingEcho{
		clientID:  uuid.NewString(),
		text:      trimmed,
		createdAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	s.pending = append(s.pending, echo)
	echo.timer = time.AfterFunc(s.echoTimeout, func() { s.failEcho(echo.clientID) })
	s.deliver(s.viewLocked())
	s.mu.Unlock()

	_, err := s.svc.Send(ctx, SendRequest{
		ThreadID: s.threadID,
		SenderID: s.userID,
		Text:     trimmed,
		PostID:   s.postID,
		ClientID: echo.clientID,
	})
	if err != nil {
		s.removeEcho(echo.clientID)
		return err
	}
	return nil
}

// MarkRead records that the view is (still) visible to the reader.
// Idempotent; calling it with nothing unread changes nothing.
func (s *Session) MarkRead(ctx context.Context) error {
	return s.svc.MarkRead(ctx, s.threadID, s.userID)
}

// Close tears down the subscription. No deliveries happen after Close
// returns; in-flight sends complete independently and are reflected the
// next time the thread is opened.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, e := range s.pending {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// onSnapshot receives authoritative snapshots from the stream and
// reconciles pending echoes against them.
func (s *Session) onSnapshot(msgs []*data.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.latest = msgs

	// drop every echo the snapshot confirms
	var remaining []*pendingEcho
	for _, e := range s.pending {
		if s.confirmedLocked(e) {
			if e.timer != nil {
				e.timer.Stop()
			}
			continue
		}
		remaining = append(remaining, e)
	}
	s.pending = remaining

	s.deliver(s.viewLocked())
}

// confirmedLocked reports whether a stored message matches the echo:
// by client id when present, otherwise by sender, text and approximate
// creation time.
func (s *Session) confirmedLocked(e *pendingEcho) bool {
	for _, m := range s.latest {
		if m.SenderID != s.userID {
			continue
		}
		if m.ClientID != "" && m.ClientID == e.clientID {
			return true
		}
		if m.ClientID == "" && m.Text == e.text {
			diff := m.CreatedAt.Sub(e.createdAt)
			if diff < 0 {
				diff = -diff
			}
			if diff <= echoMatchWindow {
				return true
			}
		}
	}
	return false
}

func (s *Session) failEcho(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, e := range s.pending {
		if e.clientID == clientID && !e.failed {
			e.failed = true
			s.deliver(s.viewLocked())
			return
		}
	}
}

func (s *Session) removeEcho(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i, e := range s.pending {
		if e.clientID == clientID {
			if e.timer != nil {
				e.timer.Stop()
			}
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.deliver(s.viewLocked())
			return
		}
	}
}

// viewLocked builds the delivered snapshot: confirmed messages first,
// then pending echoes in send order.
func (s *Session) viewLocked() []ViewMessage {
	view := make([]ViewMessage, 0, len(s.latest)+len(s.pending))
	for _, m := range s.latest {
		view = append(view, ViewMessage{
			ID:        m.ID.Hex(),
			ChatID:    m.ChatID,
			SenderID:  m.SenderID,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
			Read:      m.Read,
		})
	}
	for _, e := range s.pending {
		view = append(view, ViewMessage{
			ID:        e.clientID,
			ChatID:    s.threadID,
			SenderID:  s.userID,
			Text:      e.text,
			CreatedAt: e.createdAt,
			Pending:   !e.failed,
			Failed:    e.failed,
		})
	}
	return view
}
