package realtime

import (
	"context"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindUserByEmail(ctx context.Context, email string) (store.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(store.User), args.Error(1)
}

func (m *MockStore) SetOffline(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockStore) LoadMatch(ctx context.Context, matchID int64) (store.Match, error) {
	args := m.Called(ctx, matchID)
	return args.Get(0).(store.Match), args.Error(1)
}

func (m *MockStore) SaveMessage(ctx context.Context, msg store.Message) (store.Message, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(store.Message), args.Error(1)
}

func (m *MockStore) ListMessages(ctx context.Context, matchID, viewerID int64) ([]store.MessageView, error) {
	args := m.Called(ctx, matchID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.MessageView), args.Error(1)
}

func (m *MockStore) LoadEvent(ctx context.Context, eventID int64) (store.Event, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(store.Event), args.Error(1)
}

func (m *MockStore) IsEventParticipant(ctx context.Context, eventID, userID int64) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SaveEventMessage(ctx context.Context, msg store.EventMessage) (store.EventMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(store.EventMessage), args.Error(1)
}

func (m *MockStore) ListEventMessages(ctx context.Context, eventID, viewerID int64) ([]store.MessageView, error) {
	args := m.Called(ctx, eventID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.MessageView), args.Error(1)
}

func (m *MockStore) CreateCall(ctx context.Context, call store.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *MockStore) UpdateCall(ctx context.Context, call store.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *MockStore) SaveNotification(ctx context.Context, n store.Notification) (store.Notification, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(store.Notification), args.Error(1)
}

func (m *MockStore) ListNotifications(ctx context.Context, userID int64) ([]store.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Notification), args.Error(1)
}
