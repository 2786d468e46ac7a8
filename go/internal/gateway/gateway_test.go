package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmahq/questline/go/internal/events"
	"github.com/karmahq/questline/go/internal/session"
)

func dialGateway(t *testing.T, server *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/quests"
	header := http.Header{}
	header.Set("Cookie", session.CookieName+"="+userID.String())

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesOnlyTargetUser(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	handler := NewWebSocketHandler(cm)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	alice := uuid.New()
	bob := uuid.New()
	aliceConn := dialGateway(t, server, alice)
	bobConn := dialGateway(t, server, bob)

	// Give the server a moment to register both connections.
	require.Eventually(t, func() bool {
		total, _ := cm.GetConnectionStats()
		return total == 2
	}, time.Second, 10*time.Millisecond)

	payload, _ := json.Marshal(events.KarmaAwardedPayload{UserID: alice.String(), Points: 7})
	cm.BroadcastToUser(alice, &QuestEvent{
		ID:        uuid.New().String(),
		UserID:    alice.String(),
		Type:      events.EventTypeKarmaAwarded,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})

	aliceConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := aliceConn.ReadMessage()
	require.NoError(t, err)

	var received QuestEvent
	require.NoError(t, json.Unmarshal(message, &received))
	assert.Equal(t, events.EventTypeKarmaAwarded, received.Type)
	assert.Equal(t, alice.String(), received.UserID)

	// Bob gets nothing.
	bobConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = bobConn.ReadMessage()
	assert.Error(t, err)
}

func TestHandleQuestConnectionRequiresSession(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	handler := NewWebSocketHandler(cm)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/quests", nil)
	handler.HandleQuestConnection(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ws/quests", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "not-a-uuid"})
	handler.HandleQuestConnection(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseBusMessage(t *testing.T) {
	userID := uuid.New()
	envelope := []byte(`{
		"eventId": "` + uuid.New().String() + `",
		"eventType": "QuestExpired",
		"userId": "` + userID.String() + `",
		"timestamp": "2026-08-30T12:00:00Z",
		"payload": {"quest_id_str": "quest-1", "user_id": "` + userID.String() + `"}
	}`)

	event, parsedID, err := parseBusMessage(envelope)
	require.NoError(t, err)
	assert.Equal(t, userID, parsedID)
	assert.Equal(t, "QuestExpired", event.Type)

	payload, err := ParseEventPayload(event)
	require.NoError(t, err)
	expired, ok := payload.(events.QuestExpiredPayload)
	require.True(t, ok)
	assert.Equal(t, "quest-1", expired.QuestIDStr)
}

func TestParseBusMessageRejectsBadUserID(t *testing.T) {
	_, _, err := parseBusMessage([]byte(`{"eventType":"KarmaAwarded","userId":"nope","payload":{}}`))
	assert.Error(t, err)
}
