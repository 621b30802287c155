package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/identity"
)

var ErrSessionClosed = errors.New("chat session is closed")

// Session is one viewer's open view of a conversation. It holds the ordered
// message list, merges live deliveries by message id, and keeps the unsent
// draft.
type Session struct {
	channel        *Channel
	viewer         identity.Principal
	conversationID string
	onMessage      func(Message)
	logger         *zap.Logger

	mu       sync.Mutex
	messages []Message
	seen     map[int64]struct{}
	draft    string
	closed   bool

	sub       Subscription
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// OpenSession loads the history, then subscribes to live inserts. A second
// history load after the subscription is up picks up anything stored in
// between; duplicates merge away. onMessage, if set, is called once for each
// message added after open, including the viewer's own sends.
func OpenSession(ctx context.Context, channel *Channel, viewer identity.Principal, conversationID string, onMessage func(Message)) (*Session, error) {
	history, err := channel.LoadHistory(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}

	sub, err := channel.Subscribe(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		channel:        channel,
		viewer:         viewer,
		conversationID: conversationID,
		onMessage:      onMessage,
		logger:         channel.logger,
		seen:           make(map[int64]struct{}, len(history)),
		sub:            sub,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, m := range history {
		s.insertLocked(m)
	}

	if catchUp, err := channel.LoadHistory(ctx, viewer, conversationID); err == nil {
		for _, m := range catchUp {
			s.mu.Lock()
			s.insertLocked(m)
			s.mu.Unlock()
		}
	} else {
		s.logger.Warn("chat catch-up load failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	go s.run(loopCtx)

	return s, nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	feed := s.sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-feed:
			if !ok {
				return
			}
			if m.ConversationID != s.conversationID {
				continue
			}
			s.merge(m)
		}
	}
}

// merge adds m unless a message with the same id is already present. It is
// a no-op once the session is closed.
func (s *Session) merge(m Message) {
	s.mu.Lock()
	if s.closed || !s.insertLocked(m) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if s.onMessage != nil {
		s.onMessage(m)
	}
}

func (s *Session) insertLocked(m Message) bool {
	if _, dup := s.seen[m.ID]; dup {
		return false
	}
	s.seen[m.ID] = struct{}{}

	i := sort.Search(len(s.messages), func(i int) bool { return m.Before(s.messages[i]) })
	s.messages = append(s.messages, Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = m
	return true
}

func (s *Session) ConversationID() string { return s.conversationID }

// Messages returns a copy of the ordered message list.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// IsMine reports whether the viewer wrote m. Patient and doctor ids come from
// separate id spaces, so the sender type must match too.
func (s *Session) IsMine(m Message) bool {
	return s.viewer.Is(m.SenderType, m.SenderID)
}

func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Send posts the current draft. A blank draft is ignored and nil, nil is
// returned. The draft is cleared while the post is in flight and restored
// exactly as typed if it fails.
func (s *Session) Send(ctx context.Context) (*Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	draft := s.draft
	if strings.TrimSpace(draft) == "" {
		s.mu.Unlock()
		return nil, nil
	}
	s.draft = ""
	s.mu.Unlock()

	m, err := s.channel.PostMessage(ctx, s.viewer, s.conversationID, draft)
	if err != nil {
		s.mu.Lock()
		if !s.closed && s.draft == "" {
			s.draft = draft
		}
		s.mu.Unlock()
		return nil, err
	}

	s.merge(*m)
	return m, nil
}

// Close releases the live subscription and waits for the merge loop to stop.
// Results that arrive afterwards are dropped. Close is safe to call more than
// once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		err = s.sub.Close()
		<-s.done
	})
	return err
}
