package chat

import "context"

type Repository interface {
	// Insert stores m and fills in ID and CreatedAt.
	Insert(ctx context.Context, m *Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]Message, error)
}

// Broker fans stored messages out to every open session of a conversation.
// Delivery is at-least-once.
type Broker interface {
	Publish(ctx context.Context, m Message) error
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

type Subscription interface {
	Messages() <-chan Message
	Close() error
}
