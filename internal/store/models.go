package store

import "time"

type MessageKind string

const (
	KindText    MessageKind = "text"
	KindImage   MessageKind = "image"
	KindVideo   MessageKind = "video"
	KindCallLog MessageKind = "call_log"
)

type CallKind string

const (
	CallVoice CallKind = "voice"
	CallVideo CallKind = "video"
)

type CallStatus string

const (
	CallMissed   CallStatus = "missed"
	CallAnswered CallStatus = "answered"
	CallRejected CallStatus = "rejected"
	CallEnded    CallStatus = "ended"
)

// Terminal reports whether no further transition is allowed from s.
func (s CallStatus) Terminal() bool {
	return s == CallRejected || s == CallEnded
}

const roleAdmin = "admin"

type User struct {
	ID        int64  `json:"user_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	IsAdmin   bool   `json:"is_admin"`
	AvatarURL string `json:"avatar,omitempty"`
}

// Privileged reports whether u may join any event conversation.
func (u User) Privileged() bool {
	return u.IsAdmin || u.Role == roleAdmin
}

type Match struct {
	ID      int64 `json:"match_id"`
	User1ID int64 `json:"user1_id"`
	User2ID int64 `json:"user2_id"`
}

// Has reports whether userID is one side of the match.
func (m Match) Has(userID int64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Partner returns the other side of the match for userID.
func (m Match) Partner(userID int64) int64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

type Event struct {
	ID        int64  `json:"event_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatorID *int64 `json:"creator_id,omitempty"`
}

type Message struct {
	ID        int64       `json:"message_id"`
	MatchID   int64       `json:"match_id"`
	SenderID  int64       `json:"sender_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// MessageView is a history row as seen by one viewer.
type MessageView struct {
	ID           int64       `json:"message_id"`
	SenderID     int64       `json:"sender_id"`
	SenderName   string      `json:"sender_name"`
	SenderAvatar *string     `json:"sender_avatar"`
	Content      string      `json:"content"`
	Kind         MessageKind `json:"type"`
	CreatedAt    time.Time   `json:"created_at"`
	IsMe         bool        `json:"is_me"`
}

type EventMessage struct {
	ID        int64       `json:"id"`
	EventID   int64       `json:"event_id"`
	SenderID  int64       `json:"sender_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

type Call struct {
	ID        string     `json:"call_id"`
	MatchID   int64      `json:"match_id"`
	CallerID  int64      `json:"caller_id"`
	CalleeID  int64      `json:"callee_id"`
	Kind      CallKind   `json:"call_type"`
	Status    CallStatus `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Duration  int        `json:"duration"`
}

type Notification struct {
	ID           int64     `json:"noti_id"`
	UserID       int64     `json:"user_id"`
	FromUserID   *int64    `json:"sender_id"`
	Kind         string    `json:"type"`
	Content      string    `json:"content"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
	SenderName   *string   `json:"sender_name,omitempty"`
	SenderAvatar *string   `json:"sender_avatar,omitempty"`
}
