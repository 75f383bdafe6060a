package realtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestTracker(st *MockStore) *CallTracker {
	t := NewCallTracker(st, slog.New(slog.DiscardHandler))
	t.now = func() time.Time { return time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC) }
	return t
}

func callWithStatus(status store.CallStatus) any {
	return mock.MatchedBy(func(c store.Call) bool { return c.Status == status })
}

func TestCallTracker_AnsweredVideoCallEnds(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	tracker := newTestTracker(st)

	st.On("CreateCall", ctx, callWithStatus(store.CallMissed)).Return(nil).Once()
	st.On("UpdateCall", ctx, callWithStatus(store.CallAnswered)).Return(nil).Once()
	st.On("UpdateCall", ctx, mock.MatchedBy(func(c store.Call) bool {
		return c.Status == store.CallEnded && c.Duration == 125 && c.EndedAt != nil
	})).Return(nil).Once()
	st.On("SaveMessage", ctx, store.Message{
		MatchID:  7,
		SenderID: 1,
		Content:  "🎥 Video call - 2 minutes 5 seconds",
		Kind:     store.KindCallLog,
	}).Return(store.Message{ID: 99, MatchID: 7, SenderID: 1, Content: "🎥 Video call - 2 minutes 5 seconds", Kind: store.KindCallLog}, nil).Once()

	call, err := tracker.Offer(ctx, 7, 1, 2, store.CallVideo)
	require.NoError(t, err)
	assert.Equal(t, store.CallMissed, call.Status)
	assert.NotEmpty(t, call.ID)

	active, ok := tracker.ActiveCall(7)
	require.True(t, ok)
	assert.Equal(t, call.ID, active)

	answered, err := tracker.Answer(ctx, call.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, store.CallAnswered, answered.Call.Status)
	assert.Nil(t, answered.Log)

	ended, err := tracker.End(ctx, call.ID, 1, 125)
	require.NoError(t, err)
	assert.Equal(t, store.CallEnded, ended.Call.Status)
	assert.Equal(t, 125, ended.Call.Duration)
	require.NotNil(t, ended.Log)
	assert.Equal(t, int64(99), ended.Log.ID)

	_, ok = tracker.ActiveCall(7)
	assert.False(t, ok)
	_, ok = tracker.Get(call.ID)
	assert.False(t, ok)

	st.AssertExpectations(t)
}

func TestCallTracker_Reject(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	tracker := newTestTracker(st)

	st.On("CreateCall", ctx, mock.Anything).Return(nil).Once()
	st.On("UpdateCall", ctx, callWithStatus(store.CallRejected)).Return(nil).Once()
	st.On("SaveMessage", ctx, mock.MatchedBy(func(m store.Message) bool {
		return m.Content == RejectedCallText && m.SenderID == 2
	})).Return(store.Message{ID: 5}, nil).Once()

	call, err := tracker.Offer(ctx, 7, 1, 2, store.CallVoice)
	require.NoError(t, err)

	_, err = tracker.Reject(ctx, call.ID, 1)
	assert.ErrorIs(t, err, ErrNotParticipant)

	tr, err := tracker.Reject(ctx, call.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, store.CallRejected, tr.Call.Status)
	require.NotNil(t, tr.Call.EndedAt)

	st.AssertExpectations(t)
}

func TestCallTracker_InvalidTransitionsAreNoOps(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	tracker := newTestTracker(st)

	st.On("CreateCall", ctx, mock.Anything).Return(nil)
	st.On("UpdateCall", ctx, mock.Anything).Return(nil)
	st.On("SaveMessage", ctx, mock.Anything).Return(store.Message{}, nil)

	call, err := tracker.Offer(ctx, 7, 1, 2, store.CallVoice)
	require.NoError(t, err)

	_, err = tracker.Answer(ctx, call.ID, 1)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = tracker.Answer(ctx, call.ID, 2)
	require.NoError(t, err)

	_, err = tracker.Answer(ctx, call.ID, 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = tracker.Reject(ctx, call.ID, 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = tracker.End(ctx, call.ID, 3, 10)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = tracker.End(ctx, call.ID, 2, 10)
	require.NoError(t, err)

	_, err = tracker.End(ctx, call.ID, 1, 10)
	assert.ErrorIs(t, err, ErrUnknownCall)
	_, err = tracker.Answer(ctx, "no-such-call", 2)
	assert.ErrorIs(t, err, ErrUnknownCall)

	st.AssertNumberOfCalls(t, "UpdateCall", 2)
}

func TestCallTracker_EndWithoutAnswer(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	tracker := newTestTracker(st)

	st.On("CreateCall", ctx, mock.Anything).Return(nil)
	st.On("UpdateCall", ctx, callWithStatus(store.CallEnded)).Return(nil)
	st.On("SaveMessage", ctx, mock.MatchedBy(func(m store.Message) bool {
		return m.Content == "📞 Voice call - 0 seconds"
	})).Return(store.Message{ID: 1}, nil)

	call, err := tracker.Offer(ctx, 7, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, store.CallVoice, call.Kind)

	tr, err := tracker.End(ctx, call.ID, 1, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Call.Duration)
	st.AssertExpectations(t)
}

func TestCallTracker_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("create failure tracks nothing", func(t *testing.T) {
		st := &MockStore{}
		tracker := newTestTracker(st)
		st.On("CreateCall", ctx, mock.Anything).Return(errors.New("db down"))

		_, err := tracker.Offer(ctx, 7, 1, 2, store.CallVoice)
		require.Error(t, err)
		_, ok := tracker.ActiveCall(7)
		assert.False(t, ok)
	})

	t.Run("update failure keeps previous state", func(t *testing.T) {
		st := &MockStore{}
		tracker := newTestTracker(st)
		st.On("CreateCall", ctx, mock.Anything).Return(nil)
		st.On("UpdateCall", ctx, mock.Anything).Return(errors.New("db down"))

		call, err := tracker.Offer(ctx, 7, 1, 2, store.CallVoice)
		require.NoError(t, err)
		_, err = tracker.Answer(ctx, call.ID, 2)
		require.Error(t, err)

		got, ok := tracker.Get(call.ID)
		require.True(t, ok)
		assert.Equal(t, store.CallMissed, got.Status)
	})

	t.Run("call log failure keeps transition", func(t *testing.T) {
		st := &MockStore{}
		tracker := newTestTracker(st)
		st.On("CreateCall", ctx, mock.Anything).Return(nil)
		st.On("UpdateCall", ctx, mock.Anything).Return(nil)
		st.On("SaveMessage", ctx, mock.Anything).Return(store.Message{}, errors.New("db down"))

		call, err := tracker.Offer(ctx, 7, 1, 2, store.CallVoice)
		require.NoError(t, err)
		tr, err := tracker.End(ctx, call.ID, 2, 30)
		require.NoError(t, err)
		assert.Equal(t, store.CallEnded, tr.Call.Status)
		assert.Nil(t, tr.Log)
	})
}

func TestCallTracker_NewOfferSupersedes(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	tracker := newTestTracker(st)
	st.On("CreateCall", ctx, mock.Anything).Return(nil)

	first, err := tracker.Offer(ctx, 7, 1, 2, store.CallVoice)
	require.NoError(t, err)
	second, err := tracker.Offer(ctx, 7, 2, 1, store.CallVideo)
	require.NoError(t, err)

	active, ok := tracker.ActiveCall(7)
	require.True(t, ok)
	assert.Equal(t, second.ID, active)
	_, ok = tracker.Get(first.ID)
	assert.False(t, ok)
}

func TestResolveCall_StaysInsideMatch(t *testing.T) {
	st := &MockStore{}
	st.On("CreateCall", mock.Anything, mock.Anything).Return(nil)
	s, _ := newTestServer(t, st, nil)

	call, err := s.calls.Offer(context.Background(), 7, 1, 2, store.CallVoice)
	require.NoError(t, err)

	assert.Equal(t, call.ID, s.resolveCall(7, ""))
	assert.Equal(t, call.ID, s.resolveCall(7, call.ID))
	assert.Empty(t, s.resolveCall(8, call.ID))
	assert.Empty(t, s.resolveCall(8, ""))
	assert.Equal(t, "gone", s.resolveCall(8, "gone"))
}

func TestFormatCallDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0 seconds"},
		{45, "45 seconds"},
		{60, "1 minutes 0 seconds"},
		{125, "2 minutes 5 seconds"},
		{-3, "0 seconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCallDuration(tt.seconds))
	}
	assert.Equal(t, "📞 Voice call - 45 seconds", CallLogText(store.CallVoice, 45))
	assert.Equal(t, "🎥 Video call - 2 minutes 5 seconds", CallLogText(store.CallVideo, 125))
}
