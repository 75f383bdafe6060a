package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPublisher_Disabled(t *testing.T) {
	var p *Publisher
	assert.False(t, p.Enabled())
	p.PublishEvent(context.Background(), EventMessageCreated, map[string]int{"id": 1})

	assert.False(t, NewPublisher(nil, nil).Enabled())
}

func TestPublisher_PublishEvent(t *testing.T) {
	_, rdb := newMiniRedis(t)
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, ChannelBroadcast)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(rdb, nil)
	p.PublishEvent(ctx, EventCallStatus, store.Call{ID: "c1", Status: store.CallEnded})

	select {
	case msg := <-sub.Channel():
		var body struct {
			Type    string     `json:"type"`
			Payload store.Call `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &body))
		assert.Equal(t, EventCallStatus, body.Type)
		assert.Equal(t, store.CallEnded, body.Payload.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no domain event published")
	}
}

func TestInternalNotification_ReachesStreamThroughRedis(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	st := &MockStore{}
	withUsers(st)
	st.On("SaveNotification", mock.Anything, mock.MatchedBy(func(n store.Notification) bool {
		return n.UserID == 2 && n.Kind == "match"
	})).Return(store.Notification{ID: 11, UserID: 2, Kind: "match", Content: "💖 You have a new match"}, nil).Once()

	s, ts := newTestServer(t, st, rdb)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.RunNotificationSubscriber(ctx)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(ChannelNotifications)[ChannelNotifications] == 1
	}, 2*time.Second, 10*time.Millisecond)

	c2 := dialWS(t, ts, "/ws/notifications?token="+signToken(t, "u2@example.com", time.Hour))
	require.Eventually(t, func() bool { return s.Registry().Count(UserKey(2)) == 1 }, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(map[string]any{"user_id": 2, "type": "match", "content": "💖 You have a new match"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/internal/notifications", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testInternalToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var got NotificationOut
	readJSON(t, c2, &got)
	assert.Equal(t, TypeNotification, got.Type)
	assert.Equal(t, int64(11), got.Notification.ID)
	assert.Equal(t, "💖 You have a new match", got.Notification.Content)
}

func TestInternalNotification_Validation(t *testing.T) {
	s, _ := newTestServer(t, &MockStore{}, nil)
	router := s.Router()

	for _, raw := range []string{`{"type":"match","content":"x"}`, `{"user_id":2,"type":"match","content":"  "}`, `nope`} {
		req := httptest.NewRequest(http.MethodPost, "/internal/notifications", bytes.NewBufferString(raw))
		req.Header.Set("Authorization", "Bearer "+testInternalToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
}

func TestInternalNotification_RequiresServiceToken(t *testing.T) {
	st := &MockStore{}
	s, _ := newTestServer(t, st, nil)
	router := s.Router()
	body := `{"user_id":2,"type":"match","content":"x"}`

	for name, header := range map[string]string{
		"anonymous":    "",
		"wrong token":  "Bearer nope",
		"basic scheme": "Basic " + testInternalToken,
		"empty bearer": "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/notifications", bytes.NewBufferString(body))
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	st.AssertNotCalled(t, "SaveNotification", mock.Anything, mock.Anything)
}

func TestInternalNotification_ClosedWithoutConfiguredToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	st := &MockStore{}
	s := NewServer(ctx, st, nil, nil, slog.New(slog.DiscardHandler), Options{})

	req := httptest.NewRequest(http.MethodPost, "/internal/notifications", bytes.NewBufferString(`{"user_id":2,"type":"match","content":"x"}`))
	req.Header.Set("Authorization", "Bearer "+testInternalToken)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	st.AssertNotCalled(t, "SaveNotification", mock.Anything, mock.Anything)
}

func TestInternalNotification_StoresEscapedContent(t *testing.T) {
	st := &MockStore{}
	st.On("SaveNotification", mock.Anything, mock.MatchedBy(func(n store.Notification) bool {
		return n.Content == "&lt;img src=x onerror=alert(1)&gt;" && *n.FromUserID == 1
	})).Return(store.Notification{ID: 3, UserID: 2, Kind: "like", Content: "&lt;img src=x onerror=alert(1)&gt;"}, nil).Once()

	s, _ := newTestServer(t, st, nil)
	req := httptest.NewRequest(http.MethodPost, "/internal/notifications",
		bytes.NewBufferString(`{"user_id":2,"from_user_id":1,"type":"like","content":"<img src=x onerror=alert(1)>"}`))
	req.Header.Set("Authorization", "Bearer "+testInternalToken)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "<img")
	st.AssertExpectations(t)
}

func TestNotify_FallsBackToLocalDelivery(t *testing.T) {
	st := &MockStore{}
	st.On("SaveNotification", mock.Anything, mock.Anything).Return(store.Notification{ID: 1, UserID: 5, Content: "hello"}, nil)

	s, _ := newTestServer(t, st, nil)
	h := newFakeHandle("n")
	s.Registry().Admit(UserKey(5), 5, h)

	s.notify(context.Background(), store.Notification{UserID: 5, Content: "hello"})

	require.Len(t, h.messages(), 1)
	assert.Contains(t, string(h.messages()[0]), `"type":"notification"`)
}
