package realtime

import (
	"net/http"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
)

func (s *Server) handleEventChatWS(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "eventID")
	key := EventKey(id)
	var adm Admission
	if err == nil {
		adm, err = s.gate.Admit(r.Context(), r.URL.Query().Get("token"), key)
	}
	s.serve(w, r, key, adm, err, false, s.onEventChatMessage)
}

func (s *Server) onEventChatMessage(sess *session, data []byte) {
	in, err := decodeEventChatSend(data)
	if err != nil {
		s.log.Debug("drop event chat frame", "conn", sess.client.ID(), "error", err)
		return
	}

	ctx, cancel := s.storeContext()
	defer cancel()

	sender := sess.adm.User
	msg, err := s.store.SaveEventMessage(ctx, store.EventMessage{
		EventID:  sess.adm.Event.ID,
		SenderID: sender.ID,
		Content:  in.Content,
		Kind:     store.KindText,
	})
	if err != nil {
		s.log.Error("persist event message", "event", sess.adm.Event.ID, "user", sender.ID, "error", err)
		return
	}

	s.dispatcher.Broadcast(EventKey(msg.EventID), EventChatOut{
		Type:       msg.Kind,
		Content:    msg.Content,
		Sender:     msg.SenderID,
		SenderName: sender.FullName,
		CreatedAt:  msg.CreatedAt.Format("15:04"),
		Avatar:     sender.AvatarURL,
	})
	s.publisher.PublishEvent(ctx, EventEventMessageCreated, msg)
}
