package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/store"
)

type chatFixture struct {
	repo    *memRepo
	broker  *memBroker
	channel *Channel
	patient identity.Principal
	doctor  identity.Principal
	conv    string
}

func newChatFixture() *chatFixture {
	repo := &memRepo{}
	broker := newMemBroker()
	f := &chatFixture{
		repo:    repo,
		broker:  broker,
		channel: NewChannel(repo, broker, zap.NewNop()),
		patient: identity.Principal{Role: identity.RolePatient, ID: uuid.New(), Name: "Lan"},
		doctor:  identity.Principal{Role: identity.RoleDoctor, ID: uuid.New(), Name: "Dr. Minh"},
	}
	f.conv = ConversationID(f.patient.ID, f.doctor.ID)
	return f
}

func TestPostMessage_TrimsAndStores(t *testing.T) {
	f := newChatFixture()

	m, err := f.channel.PostMessage(context.Background(), f.patient, f.conv, "  hello doctor \n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Text != "hello doctor" {
		t.Fatalf("text = %q", m.Text)
	}
	if m.ID == 0 || m.SenderType != identity.RolePatient || m.SenderID != f.patient.ID || m.SenderName != "Lan" {
		t.Fatalf("unexpected message %+v", m)
	}
	if f.broker.published != 1 {
		t.Fatalf("published = %d, want 1", f.broker.published)
	}
}

func TestPostMessage_BlankTextNeverReachesStore(t *testing.T) {
	f := newChatFixture()

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := f.channel.PostMessage(context.Background(), f.patient, f.conv, text); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("PostMessage(%q) err = %v, want ErrEmptyMessage", text, err)
		}
	}
	if f.repo.insertCalls != 0 {
		t.Fatalf("insert called %d times", f.repo.insertCalls)
	}
}

func TestPostMessage_OnlyParticipants(t *testing.T) {
	f := newChatFixture()
	stranger := identity.Principal{Role: identity.RoleDoctor, ID: uuid.New()}

	if _, err := f.channel.PostMessage(context.Background(), stranger, f.conv, "hi"); !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := f.channel.PostMessage(context.Background(), f.patient, "room-42", "hi"); !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("err = %v, want ErrInvalidConversation", err)
	}
}

func TestPostMessage_StoreFailure(t *testing.T) {
	f := newChatFixture()
	f.repo.insertErr = errors.New("connection reset")

	_, err := f.channel.PostMessage(context.Background(), f.patient, f.conv, "hi")
	if !errors.Is(err, store.ErrWrite) {
		t.Fatalf("err = %v, want store.ErrWrite", err)
	}
	if f.broker.published != 0 {
		t.Fatal("failed insert must not be published")
	}
}

func TestPostMessage_PublishFailureKeepsMessage(t *testing.T) {
	f := newChatFixture()
	f.broker.publishErr = errors.New("redis down")

	m, err := f.channel.PostMessage(context.Background(), f.doctor, f.conv, "see you at 9")
	if err != nil {
		t.Fatalf("publish failure should not fail the post: %v", err)
	}

	history, err := f.channel.LoadHistory(context.Background(), f.patient, f.conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != m.ID {
		t.Fatalf("history = %+v", history)
	}
}

func TestLoadHistory_OrderedAndRestartable(t *testing.T) {
	f := newChatFixture()
	first := f.repo.seed(Message{ConversationID: f.conv, SenderType: identity.RolePatient, SenderID: f.patient.ID, Text: "a", CreatedAt: baseTime})
	second := f.repo.seed(Message{ConversationID: f.conv, SenderType: identity.RoleDoctor, SenderID: f.doctor.ID, Text: "b", CreatedAt: baseTime})
	f.repo.seed(Message{ConversationID: ConversationID(uuid.New(), f.doctor.ID), Text: "other"})

	for i := 0; i < 2; i++ {
		history, err := f.channel.LoadHistory(context.Background(), f.doctor, f.conv)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 || history[0].ID != first.ID || history[1].ID != second.ID {
			t.Fatalf("load %d: history = %+v", i, history)
		}
	}
}

func TestLoadHistory_Failures(t *testing.T) {
	f := newChatFixture()

	empty, err := f.channel.LoadHistory(context.Background(), f.patient, f.conv)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty conversation: %v, %v", empty, err)
	}

	f.repo.listErr = errors.New("timeout")
	if _, err := f.channel.LoadHistory(context.Background(), f.patient, f.conv); !errors.Is(err, store.ErrRead) {
		t.Fatalf("err = %v, want store.ErrRead", err)
	}
}
