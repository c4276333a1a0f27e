package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/chat"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

type harness struct {
	db  *gorm.DB
	hub *chat.Hub
	m   *metrics.Metrics
	srv *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	m := metrics.New()
	hub := chat.NewHub(db, m, []string{"*"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.URL.Query().Get("user"))
		var u models.User
		if err := db.First(&u, id).Error; err != nil {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		room := strings.TrimPrefix(r.URL.Path, "/ws/chat/")
		if err := hub.Serve(w, r, &u, room); err != nil && !strings.Contains(err.Error(), "upgrade") {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &harness{db: db, hub: hub, m: m, srv: srv}
}

func (h *harness) dial(t *testing.T, user *models.User, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/chat/" + room + "?user=" + strconv.Itoa(int(user.ID))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) connections(t *testing.T) float64 {
	t.Helper()
	families, err := h.m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "benfarm_websocket_connections" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func TestRoomBroadcast(t *testing.T) {
	h := newHarness(t)
	alice := testutil.User(t, h.db, models.RoleFarmer)
	bob := testutil.User(t, h.db, models.RoleFarmer)
	carol := testutil.User(t, h.db, models.RoleRider)

	a := h.dial(t, alice, "general")
	b := h.dial(t, bob, "general")
	c := h.dial(t, carol, "riders")
	require.Eventually(t, func() bool {
		return h.hub.RoomSize("general") == 2 && h.hub.RoomSize("riders") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(3), h.connections(t))

	require.NoError(t, a.WriteJSON(map[string]string{"message": "   "}))
	require.NoError(t, a.WriteJSON(map[string]string{"message": "Rain expected tomorrow"}))

	for _, conn := range []*websocket.Conn{a, b} {
		var got chat.Outbound
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "Rain expected tomorrow", got.Message)
		assert.Equal(t, alice.ID, got.UserID)
		assert.Equal(t, alice.FullName, got.UserName)
		assert.Equal(t, "general", got.Room)
	}

	require.NoError(t, c.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var stray chat.Outbound
	assert.Error(t, c.ReadJSON(&stray), "other rooms hear nothing")

	assert.Equal(t, int64(1), testutil.Count(t, h.db, &models.ChatMessage{}, "room = ?", "general"))

	history, err := h.hub.History(context.Background(), "general", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, alice.ID, history[0].UserID)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return h.hub.RoomSize("general") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(2), h.connections(t))
}

func TestServeRejectsBadRoom(t *testing.T) {
	h := newHarness(t)
	u := testutil.User(t, h.db, models.RoleFarmer)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/chat/Bad%20Room?user=" + strconv.Itoa(int(u.ID))
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryKeepsLatest(t *testing.T) {
	h := newHarness(t)
	u := testutil.User(t, h.db, models.RoleFarmer)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := h.hub.Post(ctx, u, "general", text)
		require.NoError(t, err)
	}
	rows, err := h.hub.History(ctx, "general", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "two", rows[0].Message)
	assert.Equal(t, "three", rows[1].Message)
	assert.True(t, chat.ValidRoom("crops-2"))
	assert.False(t, chat.ValidRoom(""))
}
