package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("store: not found")

type Store interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	SetOffline(ctx context.Context, email string) error

	LoadMatch(ctx context.Context, matchID int64) (Match, error)
	SaveMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, matchID, viewerID int64) ([]MessageView, error)

	LoadEvent(ctx context.Context, eventID int64) (Event, error)
	IsEventParticipant(ctx context.Context, eventID, userID int64) (bool, error)
	SaveEventMessage(ctx context.Context, msg EventMessage) (EventMessage, error)
	ListEventMessages(ctx context.Context, eventID, viewerID int64) ([]MessageView, error)

	CreateCall(ctx context.Context, call Call) error
	UpdateCall(ctx context.Context, call Call) error

	SaveNotification(ctx context.Context, n Notification) (Notification, error)
	ListNotifications(ctx context.Context, userID int64) ([]Notification, error)
}

// DB is the subset of *pgxpool.Pool used by PostgresStore.
// pgxmock satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// NewStoreWithDB builds a PostgresStore over any DB implementation.
func NewStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	var avatar *string
	err := s.db.QueryRow(ctx, `
        SELECT u.user_id, u.email, u.full_name, u.role, u.is_admin, p.url
        FROM users u
        LEFT JOIN photos p ON p.user_id = u.user_id AND p.is_avatar = TRUE
        WHERE u.email = $1
        LIMIT 1
    `, email).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsAdmin, &avatar)
	if err != nil {
		return User{}, notFound(err)
	}
	if avatar != nil {
		u.AvatarURL = *avatar
	}
	return u, nil
}

func (s *PostgresStore) SetOffline(ctx context.Context, email string) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET is_online = FALSE WHERE email = $1`, email)
	return err
}

func (s *PostgresStore) LoadMatch(ctx context.Context, matchID int64) (Match, error) {
	var m Match
	err := s.db.QueryRow(ctx, `
        SELECT match_id, user1_id, user2_id FROM matches WHERE match_id = $1
    `, matchID).Scan(&m.ID, &m.User1ID, &m.User2ID)
	if err != nil {
		return Match{}, notFound(err)
	}
	return m, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	err := s.db.QueryRow(ctx, `
        INSERT INTO messages (match_id, sender_id, content, type)
        VALUES ($1, $2, $3, $4)
        RETURNING message_id, created_at
    `, msg.MatchID, msg.SenderID, msg.Content, string(msg.Kind)).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, matchID, viewerID int64) ([]MessageView, error) {
	rows, err := s.db.Query(ctx, `
        SELECT m.message_id, m.sender_id, u.full_name, p.url,
               m.content, m.type, m.created_at
        FROM messages m
        JOIN users u ON u.user_id = m.sender_id
        LEFT JOIN photos p ON p.user_id = u.user_id AND p.is_avatar = TRUE
        WHERE m.match_id = $1
        ORDER BY m.created_at ASC, m.message_id ASC
    `, matchID)
	if err != nil {
		return nil, err
	}
	return scanViews(rows, viewerID)
}

func (s *PostgresStore) LoadEvent(ctx context.Context, eventID int64) (Event, error) {
	var ev Event
	err := s.db.QueryRow(ctx, `
        SELECT event_id, title, status, creator_id FROM events WHERE event_id = $1
    `, eventID).Scan(&ev.ID, &ev.Title, &ev.Status, &ev.CreatorID)
	if err != nil {
		return Event{}, notFound(err)
	}
	return ev, nil
}

func (s *PostgresStore) IsEventParticipant(ctx context.Context, eventID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
        SELECT EXISTS(SELECT 1 FROM event_participants WHERE event_id = $1 AND user_id = $2)
    `, eventID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) SaveEventMessage(ctx context.Context, msg EventMessage) (EventMessage, error) {
	err := s.db.QueryRow(ctx, `
        INSERT INTO event_messages (event_id, sender_id, content, type)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `, msg.EventID, msg.SenderID, msg.Content, string(msg.Kind)).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return EventMessage{}, fmt.Errorf("save event message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListEventMessages(ctx context.Context, eventID, viewerID int64) ([]MessageView, error) {
	rows, err := s.db.Query(ctx, `
        SELECT m.id, m.sender_id, u.full_name, p.url,
               m.content, m.type, m.created_at
        FROM event_messages m
        JOIN users u ON u.user_id = m.sender_id
        LEFT JOIN photos p ON p.user_id = u.user_id AND p.is_avatar = TRUE
        WHERE m.event_id = $1
        ORDER BY m.created_at ASC, m.id ASC
    `, eventID)
	if err != nil {
		return nil, err
	}
	return scanViews(rows, viewerID)
}

func scanViews(rows pgx.Rows, viewerID int64) ([]MessageView, error) {
	defer rows.Close()

	out := make([]MessageView, 0)
	for rows.Next() {
		var v MessageView
		var kind string
		if err := rows.Scan(&v.ID, &v.SenderID, &v.SenderName, &v.SenderAvatar,
			&v.Content, &kind, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Kind = MessageKind(kind)
		v.IsMe = v.SenderID == viewerID
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) CreateCall(ctx context.Context, call Call) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO calls (call_id, match_id, caller_id, callee_id, call_type, status, started_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, call.ID, call.MatchID, call.CallerID, call.CalleeID, string(call.Kind), string(call.Status), call.StartedAt)
	if err != nil {
		return fmt.Errorf("create call %s: %w", call.ID, err)
	}
	return nil
}

// UpdateCall writes the mutable columns of call. The row must not already be
// in a terminal state.
func (s *PostgresStore) UpdateCall(ctx context.Context, call Call) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE calls
        SET status = $2, ended_at = $3, duration = $4
        WHERE call_id = $1 AND status NOT IN ('rejected', 'ended')
    `, call.ID, string(call.Status), call.EndedAt, call.Duration)
	if err != nil {
		return fmt.Errorf("update call %s: %w", call.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveNotification(ctx context.Context, n Notification) (Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
        INSERT INTO notifications (user_id, from_user_id, type, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING noti_id
    `, n.UserID, n.FromUserID, n.Kind, n.Content, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return Notification{}, fmt.Errorf("save notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID int64) ([]Notification, error) {
	rows, err := s.db.Query(ctx, `
        SELECT n.noti_id, n.user_id, n.from_user_id, n.type, n.content, n.is_read, n.created_at,
               u.full_name, p.url
        FROM notifications n
        LEFT JOIN users u ON u.user_id = n.from_user_id
        LEFT JOIN photos p ON p.user_id = u.user_id AND p.is_avatar = TRUE
        WHERE n.user_id = $1
        ORDER BY n.created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.FromUserID, &n.Kind, &n.Content, &n.IsRead,
			&n.CreatedAt, &n.SenderName, &n.SenderAvatar); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
