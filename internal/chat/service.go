package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/waste2worth/backend/internal/data"
)

// ThreadStore is the subset of the threads store the chat core needs.
type ThreadStore interface {
	GetOrCreate(ctx context.Context, postID, contributorID, collectorID string) (*data.ChatThread, error)
	Get(ctx context.Context, threadID string) (*data.ChatThread, error)
	RecordOutgoingMessage(ctx context.Context, threadID, senderID, text string) error
	ResetUnread(ctx context.Context, threadID, readerID string) error
	ListForUser(ctx context.Context, userID string) ([]*data.ThreadWithRole, error)
	FindForPost(ctx context.Context, postID, userID string) (*data.ThreadWithRole, error)
}

// MessageStore is the subset of the messages store the chat core needs.
type MessageStore interface {
	Insert(ctx context.Context, msg *data.Message) (*data.Message, error)
	List(ctx context.Context, chatID string, ordered bool) ([]*data.Message, error)
	MarkRead(ctx context.Context, chatID, readerID string) (int64, error)
}

// Service orchestrates thread lookup, message sends with unread
// accounting, read receipts and the derived unread aggregates.
type Service struct {
	threads ThreadStore
	msgs    MessageStore
	hub     *Hub
}

// NewService wires a Service. hub may be nil, in which case sends still
// persist but no live views are woken.
func NewService(threads ThreadStore, msgs MessageStore, hub *Hub) *Service {
	return &Service{threads: threads, msgs: msgs, hub: hub}
}

// OpenThread resolves or lazily creates the thread for a post and its
// two participants. Safe to call from both sides concurrently.
func (s *Service) OpenThread(ctx context.Context, postID, contributorID, collectorID string) (*data.ChatThread, error) {
	return s.threads.GetOrCreate(ctx, postID, contributorID, collectorID)
}

// Thread returns a thread by id.
func (s *Service) Thread(ctx context.Context, threadID string) (*data.ChatThread, error) {
	return s.threads.Get(ctx, threadID)
}

// SendRequest carries one outgoing message. ClientID is the sender's
// locally generated id used to reconcile its optimistic echo.
type SendRequest struct {
	ThreadID string
	SenderID string
	Text     string
	PostID   string
	ClientID string
}

// Send validates, appends the message, updates the thread preview and
// the recipient's unread counter, and wakes live subscribers. Blank
// text is rejected before any store call.
func (s *Service) Send(ctx context.Context, req SendRequest) (*data.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is empty", data.ErrValidation)
	}

	thread, err := s.threads.Get(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(req.SenderID) {
		return nil, fmt.Errorf("%w: sender is not a participant of this thread", data.ErrPermissionDenied)
	}

	msg, err := s.msgs.Insert(ctx, &data.Message{
		ChatID:   req.ThreadID,
		SenderID: req.SenderID,
		Text:     text,
		PostID:   req.PostID,
		ClientID: req.ClientID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.threads.RecordOutgoingMessage(ctx, req.ThreadID, req.SenderID, text); err != nil {
		// the message is persisted; surface the counter failure so the
		// caller can retry its optimistic state, but don't undo the send
		return msg, err
	}

	if s.hub != nil {
		s.hub.Notify(req.ThreadID)
	}
	return msg, nil
}

// MarkRead flips every unread message not authored by the reader and
// zeroes the reader's counter. Calling it with nothing to mark is a
// no-op, not an error.
func (s *Service) MarkRead(ctx context.Context, threadID, readerID string) error {
	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(readerID) {
		return fmt.Errorf("%w: reader is not a participant of this thread", data.ErrPermissionDenied)
	}

	if _, err := s.msgs.MarkRead(ctx, threadID, readerID); err != nil {
		return err
	}
	if err := s.threads.ResetUnread(ctx, threadID, readerID); err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.Notify(threadID)
	}
	return nil
}

// Messages returns the thread's full history, ascending by creation
// time, for one of its participants. If the store rejects the ordered
// query the unordered fetch plus a local sort serves the request
// instead of failing it.
func (s *Service) Messages(ctx context.Context, threadID, userID string) ([]*data.Message, error) {
	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: caller is not a participant of this thread", data.ErrPermissionDenied)
	}

	msgs, err := s.msgs.List(ctx, threadID, true)
	if errors.Is(err, data.ErrOrderUnsupported) {
		msgs, err = s.msgs.List(ctx, threadID, false)
		if err == nil {
			SortMessages(msgs)
		}
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListThreads returns the caller's threads tagged with their role.
func (s *Service) ListThreads(ctx context.Context, userID string) ([]*data.ThreadWithRole, error) {
	return s.threads.ListForUser(ctx, userID)
}

// TotalUnread sums the caller's role-specific counter over all their
// threads. Purely derived; there is no stored total to drift.
func (s *Service) TotalUnread(ctx context.Context, userID string) (int64, error) {
	threads, err := s.threads.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, t := range threads {
		total += t.UnreadFor(userID)
	}
	return total, nil
}

// UnreadForPost returns the unread badge for a post card, or nil when
// the caller has no thread for that post yet.
func (s *Service) UnreadForPost(ctx context.Context, postID, userID string) (*data.PostUnread, error) {
	thread, err := s.threads.FindForPost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, nil
	}
	return &data.PostUnread{
		ThreadID:           thread.ID.Hex(),
		UnreadCount:        thread.UnreadFor(userID),
		OtherParticipantID: thread.OtherParticipant(userID),
	}, nil
}
