package realtime

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"html"
	"net/http"
	"strings"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
)

type ctxUserKey struct{}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing Authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", "invalid Authorization header"
	}
	return parts[1], ""
}

// internalAuth admits only callers presenting the shared service token.
func (s *Server) internalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, problem := bearerToken(r)
		if problem != "" {
			writeError(w, http.StatusUnauthorized, problem)
			return
		}
		if s.opts.InternalToken == "" ||
			subtle.ConstantTimeCompare([]byte(raw), []byte(s.opts.InternalToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid service token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerAuth resolves the Authorization bearer token to a user. Refusals map
// to the same statuses for every REST route.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, problem := bearerToken(r)
		if problem != "" {
			writeError(w, http.StatusUnauthorized, problem)
			return
		}

		user, err := s.gate.Identify(r.Context(), raw)
		if err != nil {
			writeRefusal(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) store.User {
	u, _ := ctx.Value(ctxUserKey{}).(store.User)
	return u
}

func (s *Server) handleMatchHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, err := idParam(r, "matchID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	if _, err := s.gate.Authorize(r.Context(), user, MatchKey(id)); err != nil {
		writeRefusal(w, err)
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), id, user.ID)
	if err != nil {
		s.log.Error("list messages", "match", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, err := idParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if _, err := s.gate.Authorize(r.Context(), user, EventKey(id)); err != nil {
		writeRefusal(w, err)
		return
	}

	msgs, err := s.store.ListEventMessages(r.Context(), id, user.ID)
	if err != nil {
		s.log.Error("list event messages", "event", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	list, err := s.store.ListNotifications(r.Context(), user.ID)
	if err != nil {
		s.log.Error("list notifications", "user", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type notificationRequest struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	FromUserID *int64 `json:"from_user_id" validate:"omitempty,gt=0"`
	Type       string `json:"type" validate:"required,max=50"`
	Content    string `json:"content" validate:"required,max=1000"`
}

// handleInternalNotification lets other services push a notification, for
// example after a like or a new match. It is persisted, then fanned out.
// Content is stored HTML-escaped since clients render it as markup.
func (s *Server) handleInternalNotification(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var in notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.store.SaveNotification(r.Context(), store.Notification{
		UserID:     in.UserID,
		FromUserID: in.FromUserID,
		Kind:       in.Type,
		Content:    html.EscapeString(in.Content),
	})
	if err != nil {
		s.log.Error("persist notification", "user", in.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save notification")
		return
	}
	s.fanOutNotification(r.Context(), n)
	writeJSON(w, http.StatusCreated, n)
}
