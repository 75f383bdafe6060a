package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThanhhLichh/dating-web-app/internal/auth"
	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/gorilla/websocket"
)

// Close codes sent to a refused connection attempt.
const (
	CloseMissingCredential = 4001
	CloseInvalidCredential = 4002
	CloseNotMember         = 4003
	CloseUnknownTarget     = 4004
	CloseUnknownIdentity   = 4005
	CloseExpiredCredential = 4006
)

// Refusal is an admission failure. Code is the WebSocket close code the
// attempt is terminated with.
type Refusal struct {
	Code   int
	Reason string
	Err    error
}

func (r *Refusal) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("refused %d (%s): %v", r.Code, r.Reason, r.Err)
	}
	return fmt.Sprintf("refused %d (%s)", r.Code, r.Reason)
}

func (r *Refusal) Unwrap() error { return r.Err }

func refuse(code int, reason string, err error) *Refusal {
	return &Refusal{Code: code, Reason: reason, Err: err}
}

// GateStore is what admission reads from the durable store.
type GateStore interface {
	FindUserByEmail(ctx context.Context, email string) (store.User, error)
	SetOffline(ctx context.Context, email string) error
	LoadMatch(ctx context.Context, matchID int64) (store.Match, error)
	LoadEvent(ctx context.Context, eventID int64) (store.Event, error)
	IsEventParticipant(ctx context.Context, eventID, userID int64) (bool, error)
}

// Admission is the outcome of a successful admission check.
type Admission struct {
	User  store.User
	Match store.Match
	Event store.Event
}

// Gate verifies a credential, resolves the identity and checks membership of
// the requested conversation. It never touches the registry.
type Gate struct {
	verifier *auth.Verifier
	store    GateStore
	log      *slog.Logger
}

func NewGate(verifier *auth.Verifier, s GateStore, log *slog.Logger) *Gate {
	return &Gate{verifier: verifier, store: s, log: log}
}

// Identify verifies raw and resolves the user it names. An expired credential
// marks its owner offline before being refused.
func (g *Gate) Identify(ctx context.Context, raw string) (store.User, error) {
	claims, err := g.verifier.Verify(raw)
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return store.User{}, refuse(CloseMissingCredential, "missing token", err)
	case errors.Is(err, auth.ErrExpiredToken):
		if offErr := g.store.SetOffline(ctx, claims.Email()); offErr != nil {
			g.log.Warn("mark offline after expiry", "email", claims.Email(), "error", offErr)
		}
		return store.User{}, refuse(CloseExpiredCredential, "token expired", err)
	case err != nil:
		return store.User{}, refuse(CloseInvalidCredential, "invalid token", err)
	}

	user, err := g.store.FindUserByEmail(ctx, claims.Email())
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, refuse(CloseUnknownIdentity, "user not found", err)
	}
	if err != nil {
		return store.User{}, refuse(websocket.CloseInternalServerErr, "lookup failed", err)
	}
	return user, nil
}

// Admit runs the full admission check for a match or event key.
func (g *Gate) Admit(ctx context.Context, raw string, key ConversationKey) (Admission, error) {
	user, err := g.Identify(ctx, raw)
	if err != nil {
		return Admission{}, err
	}
	return g.Authorize(ctx, user, key)
}

// Authorize checks that user belongs to the conversation named by key.
func (g *Gate) Authorize(ctx context.Context, user store.User, key ConversationKey) (Admission, error) {
	adm := Admission{User: user}

	switch key.Kind {
	case KindMatch, KindCall:
		m, err := g.store.LoadMatch(ctx, key.ID)
		if errors.Is(err, store.ErrNotFound) {
			return Admission{}, refuse(CloseUnknownTarget, "match not found", err)
		}
		if err != nil {
			return Admission{}, refuse(websocket.CloseInternalServerErr, "lookup failed", err)
		}
		if !m.Has(user.ID) {
			return Admission{}, refuse(CloseNotMember, "not a member of this match", nil)
		}
		adm.Match = m

	case KindEvent:
		ev, err := g.store.LoadEvent(ctx, key.ID)
		if errors.Is(err, store.ErrNotFound) {
			return Admission{}, refuse(CloseUnknownTarget, "event not found", err)
		}
		if err != nil {
			return Admission{}, refuse(websocket.CloseInternalServerErr, "lookup failed", err)
		}
		adm.Event = ev
		if user.Privileged() || (ev.CreatorID != nil && *ev.CreatorID == user.ID) {
			return adm, nil
		}
		ok, err := g.store.IsEventParticipant(ctx, ev.ID, user.ID)
		if err != nil {
			return Admission{}, refuse(websocket.CloseInternalServerErr, "lookup failed", err)
		}
		if !ok {
			return Admission{}, refuse(CloseNotMember, "not a participant of this event", nil)
		}
	}
	return adm, nil
}
