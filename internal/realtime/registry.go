package realtime

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
)

type Kind string

const (
	KindMatch Kind = "match"
	KindCall  Kind = "call"
	KindEvent Kind = "event"
	KindUser  Kind = "user"
)

// ConversationKey scopes a set of live connections: a match chat, a match's
// call signaling, an event chat, or one user's notification stream.
type ConversationKey struct {
	Kind Kind
	ID   int64
}

func MatchKey(id int64) ConversationKey { return ConversationKey{Kind: KindMatch, ID: id} }
func CallKey(id int64) ConversationKey  { return ConversationKey{Kind: KindCall, ID: id} }
func EventKey(id int64) ConversationKey { return ConversationKey{Kind: KindEvent, ID: id} }
func UserKey(id int64) ConversationKey  { return ConversationKey{Kind: KindUser, ID: id} }

func (k ConversationKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// Handle is a live outbound connection.
type Handle interface {
	ID() string
	Send(msg []byte) error
}

type Entry struct {
	UserID int64
	Handle Handle
}

// Registry maps conversation keys to the connections currently attached to
// them, plus an identity index used by call signaling. Nothing here survives
// a restart.
type Registry struct {
	mu            sync.RWMutex
	conversations map[ConversationKey]map[string]Entry
	users         map[int64]Handle
}

func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[ConversationKey]map[string]Entry),
		users:         make(map[int64]Handle),
	}
}

// Admit registers h under key. Admitting the same handle twice keeps a single entry.
func (r *Registry) Admit(key ConversationKey, userID int64, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conversations[key]
	if !ok {
		set = make(map[string]Entry)
		r.conversations[key] = set
	}
	set[h.ID()] = Entry{UserID: userID, Handle: h}
}

// Evict removes exactly the entry for h and drops key once it has no entries.
func (r *Registry) Evict(key ConversationKey, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conversations[key]
	if !ok {
		return false
	}
	if _, ok := set[h.ID()]; !ok {
		return false
	}
	delete(set, h.ID())
	if len(set) == 0 {
		delete(r.conversations, key)
	}
	return true
}

// Entries returns a snapshot safe to range over without holding the lock.
func (r *Registry) Entries(key ConversationKey) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.conversations[key]
	if !ok {
		return nil
	}
	return lo.Values(set)
}

func (r *Registry) Count(key ConversationKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations[key])
}

// Conversations returns the number of keys with at least one live entry.
func (r *Registry) Conversations() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

// Bind points the identity index at h. The latest binding wins.
func (r *Registry) Bind(userID int64, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = h
}

// Unbind clears the identity index only if it still points at h, so a stale
// disconnect cannot drop a newer connection. When the user still holds
// another call connection the index falls back to it.
func (r *Registry) Unbind(userID int64, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[userID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.users, userID)
	if next, ok := r.callHandle(userID, h); ok {
		r.users[userID] = next
	}
	return true
}

// callHandle finds a call connection of userID other than skip. Callers hold mu.
func (r *Registry) callHandle(userID int64, skip Handle) (Handle, bool) {
	for key, set := range r.conversations {
		if key.Kind != KindCall {
			continue
		}
		for id, e := range set {
			if e.UserID == userID && id != skip.ID() {
				return e.Handle, true
			}
		}
	}
	return nil, false
}

func (r *Registry) HandleFor(userID int64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.users[userID]
	return h, ok
}
