package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownEvent = errors.New("realtime: unknown event type")
	ErrEmptyContent = errors.New("realtime: empty content")
)

var validate = validator.New()

// Inbound call-signaling tags.
const (
	TypeCallOffer    = "call-offer"
	TypeCallAnswer   = "call-answer"
	TypeIceCandidate = "ice-candidate"
	TypeCallReject   = "call-reject"
	TypeCallEnd      = "call-end"
)

// Outbound call-signaling tags.
const (
	TypeIncomingCall = "incoming-call"
	TypeCallAnswered = "call-answered"
	TypeCallRejected = "call-rejected"
	TypeCallEnded    = "call-ended"
	TypeNotification = "notification"
)

type ChatSend struct {
	Content string            `json:"content" validate:"required,max=5000"`
	Type    store.MessageKind `json:"type" validate:"oneof=text image video call_log"`
}

// EventChatSend also tolerates the sender_id the web client sends along; the
// authenticated identity is always used instead.
type EventChatSend struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func decodeChatSend(data []byte) (ChatSend, error) {
	var in ChatSend
	if err := json.Unmarshal(data, &in); err != nil {
		return ChatSend{}, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return ChatSend{}, ErrEmptyContent
	}
	if in.Type == "" {
		in.Type = store.KindText
	}
	if err := validate.Struct(in); err != nil {
		return ChatSend{}, err
	}
	return in, nil
}

func decodeEventChatSend(data []byte) (EventChatSend, error) {
	var in EventChatSend
	if err := json.Unmarshal(data, &in); err != nil {
		return EventChatSend{}, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return EventChatSend{}, ErrEmptyContent
	}
	if err := validate.Struct(in); err != nil {
		return EventChatSend{}, err
	}
	return in, nil
}

// CallEvent is the closed set of inbound call-signaling messages.
type CallEvent interface {
	callEvent()
}

type callTag struct {
	Type string `json:"type"`
}

type CallOffer struct {
	callTag
	TargetID int64           `json:"target_id" validate:"required"`
	CallType store.CallKind  `json:"call_type" validate:"oneof=voice video"`
	Offer    json.RawMessage `json:"offer"`
}

type CallAnswer struct {
	callTag
	TargetID int64           `json:"target_id" validate:"required"`
	CallID   string          `json:"call_id"`
	Answer   json.RawMessage `json:"answer"`
}

type IceCandidate struct {
	callTag
	TargetID  int64           `json:"target_id" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

type CallReject struct {
	callTag
	TargetID int64  `json:"target_id" validate:"required"`
	CallID   string `json:"call_id"`
}

type CallEnd struct {
	callTag
	TargetID int64          `json:"target_id" validate:"required"`
	CallID   string         `json:"call_id"`
	Duration int            `json:"duration" validate:"gte=0"`
	CallType store.CallKind `json:"call_type" validate:"omitempty,oneof=voice video"`
}

func (CallOffer) callEvent()    {}
func (CallAnswer) callEvent()   {}
func (IceCandidate) callEvent() {}
func (CallReject) callEvent()   {}
func (CallEnd) callEvent()      {}

// decodeCallEvent dispatches on the type tag and decodes strictly: unknown
// tags and unknown fields are errors.
func decodeCallEvent(data []byte) (CallEvent, error) {
	var tag callTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	var ev CallEvent
	var err error
	switch tag.Type {
	case TypeCallOffer:
		var in CallOffer
		err = decodeStrict(data, &in)
		if in.CallType == "" {
			in.CallType = store.CallVoice
		}
		ev = in
	case TypeCallAnswer:
		var in CallAnswer
		err = decodeStrict(data, &in)
		ev = in
	case TypeIceCandidate:
		var in IceCandidate
		err = decodeStrict(data, &in)
		ev = in
	case TypeCallReject:
		var in CallReject
		err = decodeStrict(data, &in)
		ev = in
	case TypeCallEnd:
		var in CallEnd
		err = decodeStrict(data, &in)
		ev = in
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, tag.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ChatOut is the broadcast form of a persisted chat message.
type ChatOut struct {
	Sender     int64             `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	Content    string            `json:"content"`
	Type       store.MessageKind `json:"type"`
	CreatedAt  time.Time         `json:"created_at"`
	IsMe       bool              `json:"is_me"`
}

func (m ChatOut) SenderID() int64 { return m.Sender }

func (m ChatOut) ForRecipient(isMe bool) any {
	m.IsMe = isMe
	return m
}

// EventChatOut is the broadcast form of a persisted event message.
type EventChatOut struct {
	Type       store.MessageKind `json:"type"`
	Content    string            `json:"content"`
	Sender     int64             `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	CreatedAt  string            `json:"created_at"`
	Avatar     string            `json:"avatar"`
	IsMe       bool              `json:"is_me"`
}

func (m EventChatOut) SenderID() int64 { return m.Sender }

func (m EventChatOut) ForRecipient(isMe bool) any {
	m.IsMe = isMe
	return m
}

type IncomingCallOut struct {
	Type       string          `json:"type"`
	CallID     string          `json:"call_id"`
	CallerID   int64           `json:"caller_id"`
	CallerName string          `json:"caller_name"`
	CallType   store.CallKind  `json:"call_type"`
	Offer      json.RawMessage `json:"offer,omitempty"`
}

type CallAnsweredOut struct {
	Type   string          `json:"type"`
	CallID string          `json:"call_id"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

type IceCandidateOut struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallRejectedOut struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
}

type CallEndedOut struct {
	Type     string         `json:"type"`
	CallID   string         `json:"call_id"`
	CallType store.CallKind `json:"call_type"`
	Duration int            `json:"duration"`
}

type NotificationOut struct {
	Type         string             `json:"type"`
	Notification store.Notification `json:"notification"`
}
