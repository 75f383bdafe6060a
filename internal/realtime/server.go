package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ThanhhLichh/dating-web-app/internal/auth"
	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type Options struct {
	Conn ConnOptions
	// AllowedOrigin restricts the WebSocket Origin header. Empty allows any.
	AllowedOrigin string
	// InternalToken guards the service-to-service routes. Empty closes them.
	InternalToken  string
	StoreTimeout   time.Duration
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	o.Conn = o.Conn.withDefaults()
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	return o
}

type Server struct {
	ctx        context.Context
	store      store.Store
	registry   *Registry
	dispatcher *Dispatcher
	calls      *CallTracker
	gate       *Gate
	publisher  *Publisher
	upgrader   websocket.Upgrader
	opts       Options
	log        *slog.Logger
}

// NewServer wires the realtime components around st. rdb may be nil, in
// which case notifications are delivered to local connections only. ctx
// bounds background work started on behalf of connections.
func NewServer(ctx context.Context, st store.Store, verifier *auth.Verifier, rdb *redis.Client, log *slog.Logger, opts Options) *Server {
	opts = opts.withDefaults()
	registry := NewRegistry()
	s := &Server{
		ctx:        ctx,
		store:      st,
		registry:   registry,
		dispatcher: NewDispatcher(registry, log),
		calls:      NewCallTracker(st, log),
		gate:       NewGate(verifier, st, log),
		publisher:  NewPublisher(rdb, log),
		opts:       opts,
		log:        log,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) Registry() *Registry { return s.registry }

// Router builds the chi router. middlewares apply to every route; the request
// timeout applies to the REST routes only since sockets are long-lived.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/ws", func(r chi.Router) {
		r.Get("/chat/{matchID}", s.handleChatWS)
		r.Get("/call/{matchID}", s.handleCallWS)
		r.Get("/event-chat/{eventID}", s.handleEventChatWS)
		r.Get("/notifications", s.handleNotificationsWS)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.Group(func(r chi.Router) {
			r.Use(s.internalAuth)
			r.Post("/internal/notifications", s.handleInternalNotification)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.Get("/messages/{matchID}", s.handleMatchHistory)
			r.Get("/events/{eventID}/messages", s.handleEventHistory)
			r.Get("/notifications", s.handleListNotifications)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"service":       "realtime",
		"conversations": s.registry.Conversations(),
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.opts.AllowedOrigin == "" {
		return true
	}
	return r.Header.Get("Origin") == s.opts.AllowedOrigin
}

// storeContext bounds one persistence step. It derives from the server
// context so work for an event survives its connection going away.
func (s *Server) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.opts.StoreTimeout)
}

// session describes one admitted connection.
type session struct {
	client *Client
	adm    Admission
}

// serve upgrades an admitted request, registers the connection under key and
// pumps inbound frames to onMessage until the peer leaves. Registry cleanup
// happens before serve returns. A refused attempt is upgraded only to carry
// the close code and never reaches the registry.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, key ConversationKey, adm Admission, admitErr error, bind bool, onMessage func(*session, []byte)) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade", "path", r.URL.Path, "error", err)
		return
	}
	if admitErr != nil {
		s.refuse(conn, admitErr)
		return
	}

	client := newClient(conn, adm.User.ID, s.opts.Conn, s.log)
	sess := &session{client: client, adm: adm}

	s.registry.Admit(key, adm.User.ID, client)
	if bind {
		s.registry.Bind(adm.User.ID, client)
	}
	s.log.Info("connection admitted", "key", key.String(), "user", adm.User.ID, "conn", client.ID())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go client.writePump()
	client.readPump(
		func(data []byte) { onMessage(sess, data) },
		func() {
			s.registry.Evict(key, client)
			if bind {
				s.registry.Unbind(adm.User.ID, client)
			}
			s.log.Info("connection closed", "key", key.String(), "user", adm.User.ID, "conn", client.ID())
		},
	)
}

func (s *Server) refuse(conn *websocket.Conn, err error) {
	defer conn.Close()

	code, reason := websocket.CloseInternalServerErr, "internal error"
	var rf *Refusal
	if errors.As(err, &rf) {
		code, reason = rf.Code, rf.Reason
	}
	s.log.Info("connection refused", "code", code, "error", err)

	deadline := time.Now().Add(s.opts.Conn.WriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// idParam parses a positive integer path parameter. An unparseable id is
// reported as an unknown conversation.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, refuse(CloseUnknownTarget, "invalid "+name, err)
	}
	return id, nil
}
