package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/directory"
	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/store"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

const (
	headerActorRole = "X-Actor-Role"
	headerActorID   = "X-Actor-ID"

	// Browsers cannot set headers on a WebSocket handshake.
	queryActorRole = "actor_role"
	queryActorID   = "actor_id"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware writes one access log line per request.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		})
	}
}

// ActorMiddleware resolves X-Actor-Role and X-Actor-ID against the directory
// on every request. WebSocket handshakes may pass the same values as the
// actor_role and actor_id query parameters instead. Handlers behind it read
// the verified actor with ActorFromContext.
func ActorMiddleware(dir DirectoryService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleRaw, idRaw := actorCredentials(r)
			if roleRaw == "" || idRaw == "" {
				writeError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-Role and X-Actor-ID headers are required")
				return
			}

			role, err := identity.ParseRole(roleRaw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_actor", err.Error())
				return
			}
			id, err := uuid.Parse(idRaw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID must be a valid UUID")
				return
			}

			actor, err := dir.Resolve(r.Context(), role, id)
			if err != nil {
				switch {
				case errors.Is(err, directory.ErrUnknownActor):
					writeError(w, http.StatusUnauthorized, "unknown_actor", err.Error())
				case errors.Is(err, store.ErrRead):
					logger.Warn("actor lookup failed", zap.Error(err), zap.String("request_id", GetRequestID(r.Context())))
					writeError(w, http.StatusServiceUnavailable, "store_read_failure", "could not verify actor, please retry")
				default:
					writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				}
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorCredentials(r *http.Request) (role, id string) {
	role = strings.TrimSpace(r.Header.Get(headerActorRole))
	id = strings.TrimSpace(r.Header.Get(headerActorID))
	if (role == "" || id == "") && websocket.IsWebSocketUpgrade(r) {
		q := r.URL.Query()
		role = strings.TrimSpace(q.Get(queryActorRole))
		id = strings.TrimSpace(q.Get(queryActorID))
	}
	return role, id
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func ActorFromContext(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(actorKey).(identity.Principal)
	return p, ok
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
