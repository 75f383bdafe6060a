package realtime

import (
	"html"
	"net/http"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
)

const notificationKindMessage = "message"

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	key, adm, err := s.admitMatch(r, MatchKey)
	s.serve(w, r, key, adm, err, false, s.onChatMessage)
}

func (s *Server) admitMatch(r *http.Request, keyFor func(int64) ConversationKey) (ConversationKey, Admission, error) {
	id, err := idParam(r, "matchID")
	if err != nil {
		return ConversationKey{}, Admission{}, err
	}
	key := keyFor(id)
	adm, err := s.gate.Admit(r.Context(), r.URL.Query().Get("token"), key)
	return key, adm, err
}

// onChatMessage persists one chat frame, then broadcasts it to the match.
// Nothing is broadcast when persistence fails.
func (s *Server) onChatMessage(sess *session, data []byte) {
	in, err := decodeChatSend(data)
	if err != nil {
		s.log.Debug("drop chat frame", "conn", sess.client.ID(), "error", err)
		return
	}

	ctx, cancel := s.storeContext()
	defer cancel()

	sender := sess.adm.User
	msg, err := s.store.SaveMessage(ctx, store.Message{
		MatchID:  sess.adm.Match.ID,
		SenderID: sender.ID,
		Content:  in.Content,
		Kind:     in.Type,
	})
	if err != nil {
		s.log.Error("persist chat message", "match", sess.adm.Match.ID, "user", sender.ID, "error", err)
		return
	}

	s.broadcastChat(sender, msg)
	s.publisher.PublishEvent(ctx, EventMessageCreated, msg)

	if msg.Kind != store.KindCallLog {
		s.notify(ctx, store.Notification{
			UserID:       sess.adm.Match.Partner(sender.ID),
			FromUserID:   &sender.ID,
			Kind:         notificationKindMessage,
			Content:      "📩 New message: " + html.EscapeString(preview(msg.Content)),
			SenderName:   &sender.FullName,
			SenderAvatar: avatarPtr(sender),
		})
	}
}

func (s *Server) broadcastChat(sender store.User, msg store.Message) int {
	return s.dispatcher.Broadcast(MatchKey(msg.MatchID), ChatOut{
		Sender:     msg.SenderID,
		SenderName: sender.FullName,
		Content:    msg.Content,
		Type:       msg.Kind,
		CreatedAt:  msg.CreatedAt,
	})
}

const previewRunes = 30

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}

func avatarPtr(u store.User) *string {
	if u.AvatarURL == "" {
		return nil
	}
	return &u.AvatarURL
}
