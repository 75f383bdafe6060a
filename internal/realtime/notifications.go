package realtime

import (
	"context"
	"net/http"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
)

// handleNotificationsWS streams the caller's notifications. Inbound frames
// are read only to keep the connection alive.
func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	user, err := s.gate.Identify(r.Context(), r.URL.Query().Get("token"))
	s.serve(w, r, UserKey(user.ID), Admission{User: user}, err, false, func(*session, []byte) {})
}

// notify persists n and then fans it out. A failed publish falls back to
// delivering on this instance only.
func (s *Server) notify(ctx context.Context, n store.Notification) {
	saved, err := s.store.SaveNotification(ctx, n)
	if err != nil {
		s.log.Error("persist notification", "user", n.UserID, "error", err)
		return
	}
	s.fanOutNotification(ctx, saved)
}

func (s *Server) fanOutNotification(ctx context.Context, n store.Notification) {
	if s.publisher.Enabled() {
		err := s.publisher.PublishNotification(ctx, n)
		if err == nil {
			return
		}
		s.log.Warn("publish notification", "user", n.UserID, "error", err)
	}
	s.deliverNotification(n)
}
