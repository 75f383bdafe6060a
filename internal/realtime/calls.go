package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/google/uuid"
)

var (
	ErrUnknownCall       = errors.New("realtime: unknown call")
	ErrInvalidTransition = errors.New("realtime: invalid call transition")
	ErrNotParticipant    = errors.New("realtime: not a call participant")
)

// CallStore is the persistence the tracker needs.
type CallStore interface {
	CreateCall(ctx context.Context, call store.Call) error
	UpdateCall(ctx context.Context, call store.Call) error
	SaveMessage(ctx context.Context, msg store.Message) (store.Message, error)
}

// Transition is the result of a state change: the call after the change and,
// for terminal changes, the call-log chat message appended to the match.
type Transition struct {
	Call store.Call
	Log  *store.Message
}

// CallTracker owns the lifecycle of calls that have not reached a terminal
// state. Terminal calls are forgotten, so any later event for them is
// reported as ErrUnknownCall.
type CallTracker struct {
	mu      sync.Mutex
	store   CallStore
	log     *slog.Logger
	now     func() time.Time
	calls   map[string]*store.Call
	byMatch map[int64]string
}

func NewCallTracker(s CallStore, log *slog.Logger) *CallTracker {
	return &CallTracker{
		store:   s,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		calls:   make(map[string]*store.Call),
		byMatch: make(map[int64]string),
	}
}

// Offer creates a call in the missed state. A newer offer on the same match
// supersedes the previous active call, which stays missed.
func (t *CallTracker) Offer(ctx context.Context, matchID, callerID, calleeID int64, kind store.CallKind) (store.Call, error) {
	if kind == "" {
		kind = store.CallVoice
	}
	call := store.Call{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		CallerID:  callerID,
		CalleeID:  calleeID,
		Kind:      kind,
		Status:    store.CallMissed,
		StartedAt: t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.CreateCall(ctx, call); err != nil {
		return store.Call{}, err
	}
	if prev, ok := t.byMatch[matchID]; ok {
		delete(t.calls, prev)
	}
	c := call
	t.calls[call.ID] = &c
	t.byMatch[matchID] = call.ID
	return call, nil
}

// Answer moves a missed call to answered. Only the callee may answer.
func (t *CallTracker) Answer(ctx context.Context, callID string, by int64) (Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.lookup(callID)
	if err != nil {
		return Transition{}, err
	}
	if c.Status != store.CallMissed {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, store.CallAnswered)
	}
	if by != c.CalleeID {
		return Transition{}, ErrNotParticipant
	}

	next := *c
	next.Status = store.CallAnswered
	if err := t.store.UpdateCall(ctx, next); err != nil {
		return Transition{}, err
	}
	*c = next
	return Transition{Call: next}, nil
}

// Reject moves a missed call to rejected and appends a call-log message.
// Only the callee may reject.
func (t *CallTracker) Reject(ctx context.Context, callID string, by int64) (Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.lookup(callID)
	if err != nil {
		return Transition{}, err
	}
	if c.Status != store.CallMissed {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, store.CallRejected)
	}
	if by != c.CalleeID {
		return Transition{}, ErrNotParticipant
	}

	next := *c
	next.Status = store.CallRejected
	endedAt := t.now()
	next.EndedAt = &endedAt
	if err := t.store.UpdateCall(ctx, next); err != nil {
		return Transition{}, err
	}
	t.forget(next)
	return Transition{Call: next, Log: t.appendLog(ctx, next, by, RejectedCallText)}, nil
}

// End moves a missed or answered call to ended, recording its duration, and
// appends a call-log message. Either participant may end the call.
func (t *CallTracker) End(ctx context.Context, callID string, by int64, duration int) (Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.lookup(callID)
	if err != nil {
		return Transition{}, err
	}
	if c.Status.Terminal() {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, store.CallEnded)
	}
	if by != c.CallerID && by != c.CalleeID {
		return Transition{}, ErrNotParticipant
	}
	if duration < 0 {
		duration = 0
	}

	next := *c
	next.Status = store.CallEnded
	endedAt := t.now()
	next.EndedAt = &endedAt
	next.Duration = duration
	if err := t.store.UpdateCall(ctx, next); err != nil {
		return Transition{}, err
	}
	t.forget(next)
	return Transition{Call: next, Log: t.appendLog(ctx, next, by, CallLogText(next.Kind, duration))}, nil
}

// ActiveCall returns the id of the non-terminal call on matchID, if any.
func (t *CallTracker) ActiveCall(matchID int64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byMatch[matchID]
	return id, ok
}

// Get returns a copy of a tracked call.
func (t *CallTracker) Get(callID string) (store.Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[callID]
	if !ok {
		return store.Call{}, false
	}
	return *c, true
}

func (t *CallTracker) lookup(callID string) (*store.Call, error) {
	c, ok := t.calls[callID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCall, callID)
	}
	return c, nil
}

func (t *CallTracker) forget(c store.Call) {
	delete(t.calls, c.ID)
	if t.byMatch[c.MatchID] == c.ID {
		delete(t.byMatch, c.MatchID)
	}
}

// appendLog persists the call-log message. A failure is logged and does not
// undo the transition.
func (t *CallTracker) appendLog(ctx context.Context, c store.Call, by int64, text string) *store.Message {
	msg, err := t.store.SaveMessage(ctx, store.Message{
		MatchID:  c.MatchID,
		SenderID: by,
		Content:  text,
		Kind:     store.KindCallLog,
	})
	if err != nil {
		t.log.Error("save call log", "call", c.ID, "match", c.MatchID, "error", err)
		return nil
	}
	return &msg
}

const RejectedCallText = "📞 Call rejected"

// FormatCallDuration renders seconds as "2 minutes 5 seconds", or "45 seconds"
// under a minute.
func FormatCallDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	mins, secs := seconds/60, seconds%60
	if mins > 0 {
		return fmt.Sprintf("%d minutes %d seconds", mins, secs)
	}
	return fmt.Sprintf("%d seconds", secs)
}

func CallLogText(kind store.CallKind, seconds int) string {
	if kind == store.CallVideo {
		return "🎥 Video call - " + FormatCallDuration(seconds)
	}
	return "📞 Voice call - " + FormatCallDuration(seconds)
}
