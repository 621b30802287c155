package chat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/store"
)

var ErrEmptyMessage = errors.New("message text is empty")

// Channel is the append-only message log of every conversation, with live
// fan-out through a Broker.
type Channel struct {
	repo   Repository
	broker Broker
	logger *zap.Logger
}

func NewChannel(repo Repository, broker Broker, logger *zap.Logger) *Channel {
	return &Channel{repo: repo, broker: broker, logger: logger}
}

// PostMessage stores and publishes text from sender. Blank text is rejected
// before the store is touched.
func (c *Channel) PostMessage(ctx context.Context, sender identity.Principal, conversationID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if err := authorize(sender, conversationID); err != nil {
		return nil, err
	}

	m := &Message{
		ConversationID: conversationID,
		SenderType:     sender.Role,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		Text:           text,
	}
	if err := c.repo.Insert(ctx, m); err != nil {
		return nil, store.WriteFailure("post message", err)
	}

	// The message is durable at this point; a missed fan-out shows up on the
	// next history load.
	if err := c.broker.Publish(ctx, *m); err != nil {
		c.logger.Warn("failed to publish chat message",
			zap.String("conversation_id", conversationID),
			zap.Int64("message_id", m.ID),
			zap.Error(err))
	}

	return m, nil
}

// LoadHistory replays the whole conversation in order. It can be called any
// number of times.
func (c *Channel) LoadHistory(ctx context.Context, viewer identity.Principal, conversationID string) ([]Message, error) {
	if err := authorize(viewer, conversationID); err != nil {
		return nil, err
	}

	msgs, err := c.repo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, store.ReadFailure("load chat history", err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Subscribe opens a live feed of new messages in the conversation.
func (c *Channel) Subscribe(ctx context.Context, viewer identity.Principal, conversationID string) (Subscription, error) {
	if err := authorize(viewer, conversationID); err != nil {
		return nil, err
	}
	return c.broker.Subscribe(ctx, conversationID)
}

func authorize(p identity.Principal, conversationID string) error {
	ok, err := Participant(p, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return identity.ErrForbidden
	}
	return nil
}
