package realtime

import (
	"context"
	"errors"
	"net/http"
)

// handleCallWS serves signaling for a match. The connection is also bound in
// the identity index so the partner can reach it by user id.
func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	key, adm, err := s.admitMatch(r, CallKey)
	s.serve(w, r, key, adm, err, true, s.onCallMessage)
}

func (s *Server) onCallMessage(sess *session, data []byte) {
	ev, err := decodeCallEvent(data)
	if err != nil {
		s.log.Warn("drop call frame", "conn", sess.client.ID(), "error", err)
		return
	}

	ctx, cancel := s.storeContext()
	defer cancel()

	user := sess.adm.User
	match := sess.adm.Match
	partner := match.Partner(user.ID)

	switch ev := ev.(type) {
	case CallOffer:
		if ev.TargetID != partner {
			s.log.Warn("call offer outside match", "match", match.ID, "user", user.ID, "target", ev.TargetID)
			return
		}
		call, err := s.calls.Offer(ctx, match.ID, user.ID, partner, ev.CallType)
		if err != nil {
			s.log.Error("persist call offer", "match", match.ID, "user", user.ID, "error", err)
			return
		}
		s.publisher.PublishEvent(ctx, EventCallStatus, call)
		s.dispatcher.SendTo(partner, IncomingCallOut{
			Type:       TypeIncomingCall,
			CallID:     call.ID,
			CallerID:   user.ID,
			CallerName: user.FullName,
			CallType:   call.Kind,
			Offer:      ev.Offer,
		})

	case CallAnswer:
		tr, err := s.calls.Answer(ctx, s.resolveCall(match.ID, ev.CallID), user.ID)
		if err != nil {
			s.logCallError("answer", sess, err)
			return
		}
		s.publisher.PublishEvent(ctx, EventCallStatus, tr.Call)
		s.dispatcher.SendTo(tr.Call.CallerID, CallAnsweredOut{
			Type:   TypeCallAnswered,
			CallID: tr.Call.ID,
			Answer: ev.Answer,
		})

	case IceCandidate:
		if ev.TargetID != partner {
			s.log.Warn("ice candidate outside match", "match", match.ID, "user", user.ID, "target", ev.TargetID)
			return
		}
		s.dispatcher.SendTo(partner, IceCandidateOut{Type: TypeIceCandidate, Candidate: ev.Candidate})

	case CallReject:
		tr, err := s.calls.Reject(ctx, s.resolveCall(match.ID, ev.CallID), user.ID)
		if err != nil {
			s.logCallError("reject", sess, err)
			return
		}
		s.dispatcher.SendTo(tr.Call.CallerID, CallRejectedOut{Type: TypeCallRejected, CallID: tr.Call.ID})
		s.afterTerminal(ctx, sess, tr)

	case CallEnd:
		tr, err := s.calls.End(ctx, s.resolveCall(match.ID, ev.CallID), user.ID, ev.Duration)
		if err != nil {
			s.logCallError("end", sess, err)
			return
		}
		s.dispatcher.SendTo(partner, CallEndedOut{
			Type:     TypeCallEnded,
			CallID:   tr.Call.ID,
			CallType: tr.Call.Kind,
			Duration: tr.Call.Duration,
		})
		s.afterTerminal(ctx, sess, tr)
	}
}

// resolveCall falls back to the match's active call when the client did not
// send a call id. A tracked call of another match resolves to nothing.
func (s *Server) resolveCall(matchID int64, callID string) string {
	if callID != "" {
		if c, ok := s.calls.Get(callID); ok && c.MatchID != matchID {
			return ""
		}
		return callID
	}
	id, _ := s.calls.ActiveCall(matchID)
	return id
}

// afterTerminal publishes the final call state and shows the call-log message
// to anyone with the match chat open.
func (s *Server) afterTerminal(ctx context.Context, sess *session, tr Transition) {
	s.publisher.PublishEvent(ctx, EventCallStatus, tr.Call)
	if tr.Log != nil {
		s.broadcastChat(sess.adm.User, *tr.Log)
	}
}

func (s *Server) logCallError(op string, sess *session, err error) {
	if errors.Is(err, ErrUnknownCall) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotParticipant) {
		s.log.Info("ignored call "+op, "match", sess.adm.Match.ID, "user", sess.adm.User.ID, "error", err)
		return
	}
	s.log.Error("call "+op, "match", sess.adm.Match.ID, "user", sess.adm.User.ID, "error", err)
}
