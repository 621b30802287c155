package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Originnnn/appointment/internal/chat"
)

func historyHandler(ch *chat.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := actor(r)

		msgs, err := ch.LoadHistory(r.Context(), viewer, chi.URLParam(r, "id"))
		if err != nil {
			handleChatError(w, err)
			return
		}

		resp := make([]MessageResponse, 0, len(msgs))
		for _, m := range msgs {
			resp = append(resp, toMessageResponse(m, viewer.Is(m.SenderType, m.SenderID)))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func postMessageHandler(ch *chat.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PostMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		m, err := ch.PostMessage(r.Context(), actor(r), chi.URLParam(r, "id"), req.Text)
		if err != nil {
			handleChatError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMessageResponse(*m, true))
	}
}
