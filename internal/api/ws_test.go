package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/identity"
)

func dialChat(t *testing.T, srv *httptest.Server, conv string, as identity.Principal) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/conversations/" + conv + "/ws"
	header := http.Header{}
	header.Set(headerActorRole, string(as.Role))
	header.Set(headerActorID, as.ID.String())
	return websocket.DefaultDialer.Dial(target, header)
}

func readFrame(t *testing.T, ws *websocket.Conn) socketFrame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f socketFrame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestChatSocket(t *testing.T) {
	env := newTestEnv()
	srv := httptest.NewServer(env.router(nil))
	defer srv.Close()

	ctx := context.Background()
	conv := chat.ConversationID(env.patient.ID, env.doctor.ID)
	if _, err := env.channel.PostMessage(ctx, env.patient, conv, "hello"); err != nil {
		t.Fatal(err)
	}

	ws, _, err := dialChat(t, srv, conv, env.patient)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	history := readFrame(t, ws)
	if history.Type != frameHistory || len(history.Messages) != 1 || !history.Messages[0].Mine {
		t.Fatalf("history frame = %+v", history)
	}

	if _, err := env.channel.PostMessage(ctx, env.doctor, conv, "how can I help?"); err != nil {
		t.Fatal(err)
	}
	live := readFrame(t, ws)
	if live.Type != frameMessage || live.Message.Text != "how can I help?" || live.Message.Mine {
		t.Fatalf("live frame = %+v", live)
	}

	if err := ws.WriteJSON(clientFrame{Text: "  my results  "}); err != nil {
		t.Fatal(err)
	}
	own := readFrame(t, ws)
	if own.Type != frameMessage || own.Message.Text != "my results" || !own.Message.Mine {
		t.Fatalf("own frame = %+v", own)
	}

	// A blank frame is ignored; the next frame must be the doctor's reply,
	// not an echo of the patient's own message.
	if err := ws.WriteJSON(clientFrame{Text: "   "}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.channel.PostMessage(ctx, env.doctor, conv, "they look fine"); err != nil {
		t.Fatal(err)
	}
	next := readFrame(t, ws)
	if next.Type != frameMessage || next.Message.Text != "they look fine" {
		t.Fatalf("next frame = %+v", next)
	}

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.broker.active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released, %d active", env.broker.active())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChatSocket_ActorFromQuery(t *testing.T) {
	env := newTestEnv()
	srv := httptest.NewServer(env.router(nil))
	defer srv.Close()

	conv := chat.ConversationID(env.patient.ID, env.doctor.ID)
	q := url.Values{}
	q.Set("actor_role", string(env.doctor.Role))
	q.Set("actor_id", env.doctor.ID.String())
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/conversations/" + conv + "/ws?" + q.Encode()

	ws, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if f := readFrame(t, ws); f.Type != frameHistory {
		t.Fatalf("first frame = %+v, want history", f)
	}
}

func TestChatSocket_RejectsStranger(t *testing.T) {
	env := newTestEnv()
	srv := httptest.NewServer(env.router(nil))
	defer srv.Close()

	stranger := env.dir.add(identity.RoleDoctor, "Dr. Other")
	conv := chat.ConversationID(env.patient.ID, env.doctor.ID)

	_, resp, err := dialChat(t, srv, conv, stranger)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", resp)
	}
	if env.broker.active() != 0 {
		t.Fatal("no subscription should be left behind")
	}
}
