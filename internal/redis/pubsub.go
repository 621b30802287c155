package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/identity"
)

const subscriptionBuffer = 64

// ChatChannel names the pub/sub channel of one conversation.
func ChatChannel(conversationID string) string {
	return "chat:" + conversationID
}

// wireMessage is the JSON payload carried on a chat channel.
type wireMessage struct {
	ID             int64     `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderType     string    `json:"sender_type"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Text           string    `json:"message_text"`
	CreatedAt      time.Time `json:"created_at"`
}

func encodeMessage(m chat.Message) ([]byte, error) {
	return json.Marshal(wireMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderType:     string(m.SenderType),
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
	})
}

func decodeMessage(payload string) (chat.Message, error) {
	var w wireMessage
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return chat.Message{}, err
	}
	role, err := identity.ParseRole(w.SenderType)
	if err != nil {
		return chat.Message{}, err
	}
	if w.ID == 0 {
		return chat.Message{}, errors.New("chat payload without message id")
	}
	return chat.Message{
		ID:             w.ID,
		ConversationID: w.ConversationID,
		SenderType:     role,
		SenderID:       w.SenderID,
		SenderName:     w.SenderName,
		Text:           w.Text,
		CreatedAt:      w.CreatedAt,
	}, nil
}

// ChatBroker fans chat messages out over Redis pub/sub so every API
// instance can push to its own WebSocket clients.
type ChatBroker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewChatBroker(client *redis.Client, logger *zap.Logger) *ChatBroker {
	return &ChatBroker{client: client, logger: logger}
}

func (b *ChatBroker) Publish(ctx context.Context, m chat.Message) error {
	payload, err := encodeMessage(m)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	if err := b.client.Publish(ctx, ChatChannel(m.ConversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so a message
// published after it returns is delivered.
func (b *ChatBroker) Subscribe(ctx context.Context, conversationID string) (chat.Subscription, error) {
	ps := b.client.Subscribe(ctx, ChatChannel(conversationID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChatChannel(conversationID), err)
	}

	sub := &chatSubscription{
		ps:     ps,
		out:    make(chan chat.Message, subscriptionBuffer),
		done:   make(chan struct{}),
		logger: b.logger.With(zap.String("conversation_id", conversationID)),
	}
	go sub.forward()

	return sub, nil
}

type chatSubscription struct {
	ps     *redis.PubSub
	out    chan chat.Message
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (s *chatSubscription) Messages() <-chan chat.Message { return s.out }

func (s *chatSubscription) forward() {
	defer close(s.out)

	for raw := range s.ps.Channel() {
		m, err := decodeMessage(raw.Payload)
		if err != nil {
			s.logger.Warn("dropping malformed chat payload", zap.Error(err))
			continue
		}
		select {
		case s.out <- m:
		case <-s.done:
			return
		}
	}
}

func (s *chatSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
