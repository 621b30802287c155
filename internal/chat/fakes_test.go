package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

var baseTime = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type memRepo struct {
	mu          sync.Mutex
	nextID      int64
	msgs        []Message
	insertErr   error
	listErr     error
	insertCalls int
	listCalls   int
	gate        chan struct{} // when set, Insert blocks until it is closed
}

func (r *memRepo) Insert(ctx context.Context, m *Message) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = baseTime.Add(time.Duration(r.nextID) * time.Second)
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *memRepo) ListByConversation(_ context.Context, conversationID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// seed stores a message directly, bypassing the channel.
func (r *memRepo) seed(m Message) Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = baseTime.Add(time.Duration(r.nextID) * time.Second)
	}
	r.msgs = append(r.msgs, m)
	return m
}

type memBroker struct {
	mu         sync.Mutex
	subs       map[*memSub]struct{}
	publishErr error
	published  int
}

func newMemBroker() *memBroker {
	return &memBroker{subs: make(map[*memSub]struct{})}
}

func (b *memBroker) Publish(_ context.Context, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published++
	b.deliverLocked(m)
	return nil
}

// deliver pushes m to subscribers as the transport would, without counting a
// publish.
func (b *memBroker) deliver(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliverLocked(m)
}

func (b *memBroker) deliverLocked(m Message) {
	for s := range b.subs {
		if s.conversationID == m.ConversationID {
			select {
			case s.ch <- m:
			default:
			}
		}
	}
}

func (b *memBroker) Subscribe(_ context.Context, conversationID string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &memSub{broker: b, conversationID: conversationID, ch: make(chan Message, 64)}
	b.subs[s] = struct{}{}
	return s, nil
}

func (b *memBroker) active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type memSub struct {
	broker         *memBroker
	conversationID string
	ch             chan Message
	once           sync.Once
}

func (s *memSub) Messages() <-chan Message { return s.ch }

func (s *memSub) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		close(s.ch)
		s.broker.mu.Unlock()
	})
	return nil
}
