package realtime

import (
	"encoding/json"
	"log/slog"
)

// Annotated is an outbound payload whose copies differ per recipient only in
// the is_me flag.
type Annotated interface {
	SenderID() int64
	ForRecipient(isMe bool) any
}

type Dispatcher struct {
	registry *Registry
	log      *slog.Logger
}

func NewDispatcher(registry *Registry, log *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// Broadcast delivers msg to every entry under key with is_me set for the
// sender's own connections. A failed send is logged and skipped; eviction is
// left to the connection's own disconnect path. Returns the number of
// successful enqueues.
func (d *Dispatcher) Broadcast(key ConversationKey, msg Annotated) int {
	entries := d.registry.Entries(key)
	if len(entries) == 0 {
		return 0
	}

	var encoded [2][]byte
	for i, isMe := range []bool{false, true} {
		b, err := json.Marshal(msg.ForRecipient(isMe))
		if err != nil {
			d.log.Error("encode broadcast", "key", key.String(), "error", err)
			return 0
		}
		encoded[i] = b
	}

	delivered := 0
	for _, e := range entries {
		payload := encoded[0]
		if e.UserID == msg.SenderID() {
			payload = encoded[1]
		}
		if err := e.Handle.Send(payload); err != nil {
			d.log.Warn("broadcast send failed", "key", key.String(), "conn", e.Handle.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Deliver sends the same payload to every entry under key.
func (d *Dispatcher) Deliver(key ConversationKey, payload any) int {
	entries := d.registry.Entries(key)
	if len(entries) == 0 {
		return 0
	}
	b, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("encode delivery", "key", key.String(), "error", err)
		return 0
	}

	delivered := 0
	for _, e := range entries {
		if err := e.Handle.Send(b); err != nil {
			d.log.Warn("delivery failed", "key", key.String(), "conn", e.Handle.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo relays payload to the connection bound to userID in the identity
// index. It reports false when the user has no live binding or the send
// failed; nothing is queued for later.
func (d *Dispatcher) SendTo(userID int64, payload any) bool {
	h, ok := d.registry.HandleFor(userID)
	if !ok {
		d.log.Debug("relay target offline", "user", userID)
		return false
	}
	b, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("encode relay", "user", userID, "error", err)
		return false
	}
	if err := h.Send(b); err != nil {
		d.log.Warn("relay send failed", "user", userID, "conn", h.ID(), "error", err)
		return false
	}
	return true
}
