package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/chat"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = socketPongWait * 9 / 10
	socketReadLimit  = 8 << 10
	socketBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten per deployment.
	},
}

// Frame types sent by the server.
const (
	frameHistory = "history"
	frameMessage = "message"
	frameError   = "error"
)

type socketFrame struct {
	Type     string            `json:"type"`
	Messages []MessageResponse `json:"messages,omitempty"`
	Message  *MessageResponse  `json:"message,omitempty"`
	Error    *ErrorResponse    `json:"error,omitempty"`
}

// clientFrame is what the browser sends: one chat message to post.
type clientFrame struct {
	Text string `json:"text"`
}

type outbound struct {
	msg *chat.Message
	err *ErrorResponse
}

// chatSocketHandler serves one chat session over a WebSocket. The server
// sends the history first, then every new message; frames from the client
// are posted through the session.
func chatSocketHandler(ch *chat.Channel, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := actor(r)
		conversationID := chi.URLParam(r, "id")

		out := make(chan outbound, socketBuffer)
		done := make(chan struct{})
		onMessage := func(m chat.Message) {
			select {
			case out <- outbound{msg: &m}:
			case <-done:
			}
		}

		session, err := chat.OpenSession(r.Context(), ch, viewer, conversationID, onMessage)
		if err != nil {
			handleChatError(w, err)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			close(done)
			_ = session.Close()
			logger.Warn("websocket upgrade failed", zap.String("conversation_id", conversationID), zap.Error(err))
			return
		}

		log := logger.With(
			zap.String("conversation_id", conversationID),
			zap.String("actor_role", string(viewer.Role)),
			zap.String("request_id", GetRequestID(r.Context())),
		)
		log.Info("chat socket opened")

		go writePump(ws, session, out, done, log)
		readPump(ws, session, out, done, log)
	}
}

// readPump owns teardown: it returns when the client goes away or the
// connection breaks.
func readPump(ws *websocket.Conn, session *chat.Session, out chan<- outbound, done chan struct{}, log *zap.Logger) {
	defer func() {
		close(done)
		if err := session.Close(); err != nil {
			log.Warn("closing chat session", zap.Error(err))
		}
		_ = ws.Close()
		log.Info("chat socket closed")
	}()

	ws.SetReadLimit(socketReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(socketPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("chat socket read failed", zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			queueError(out, done, "invalid_frame", "could not parse JSON")
			continue
		}

		session.SetDraft(frame.Text)
		ctx, cancel := context.WithTimeout(context.Background(), socketWriteWait)
		_, err = session.Send(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, chat.ErrSessionClosed) {
				return
			}
			log.Warn("chat send failed", zap.Error(err))
			queueError(out, done, "store_write_failure", "message was not sent, please retry")
		}
	}
}

func queueError(out chan<- outbound, done <-chan struct{}, code, details string) {
	select {
	case out <- outbound{err: &ErrorResponse{Error: code, Details: details}}:
	case <-done:
	}
}

// writePump is the only writer on ws. Messages already sent in the history
// frame are skipped when they also arrive live.
func writePump(ws *websocket.Conn, session *chat.Session, out <-chan outbound, done <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	history := session.Messages()
	sent := make(map[int64]struct{}, len(history))
	frame := socketFrame{Type: frameHistory, Messages: make([]MessageResponse, 0, len(history))}
	for _, m := range history {
		sent[m.ID] = struct{}{}
		frame.Messages = append(frame.Messages, toMessageResponse(m, session.IsMine(m)))
	}
	if err := writeFrame(ws, frame); err != nil {
		log.Warn("chat socket write failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-done:
			_ = ws.SetWriteDeadline(time.Now().Add(socketWriteWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case o := <-out:
			var frame socketFrame
			if o.err != nil {
				frame = socketFrame{Type: frameError, Error: o.err}
			} else {
				if _, dup := sent[o.msg.ID]; dup {
					continue
				}
				sent[o.msg.ID] = struct{}{}
				resp := toMessageResponse(*o.msg, session.IsMine(*o.msg))
				frame = socketFrame{Type: frameMessage, Message: &resp}
			}
			if err := writeFrame(ws, frame); err != nil {
				log.Warn("chat socket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(ws *websocket.Conn, frame socketFrame) error {
	_ = ws.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return ws.WriteJSON(frame)
}
