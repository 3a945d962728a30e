package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer accepts websocket connections and hands them to the test.
func scriptedServer(t *testing.T) (string, <-chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 4)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- ws
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", conns
}

func accept(t *testing.T, conns <-chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-conns:
		t.Cleanup(func() { ws.Close() })
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw a connection")
		return nil
	}
}

func recvEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signaling event")
		return Event{}
	}
}

func serverSend(t *testing.T, ws *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg, err := NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(msg))
}

func TestAnnounceJoinWireFormat(t *testing.T) {
	url, conns := scriptedServer(t)
	s := NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect()
	ws := accept(t, conns)

	require.NoError(t, s.AnnounceJoin("abcd12", 4242, "Alice"))

	var raw map[string]any
	require.NoError(t, ws.ReadJSON(&raw))
	assert.Equal(t, "join-room", raw["type"])
	assert.Equal(t, map[string]any{"roomId": "abcd12", "userName": "Alice", "uid": float64(4242)}, raw["payload"])
}

func TestOutboundHostActionsAndChat(t *testing.T) {
	url, conns := scriptedServer(t)
	s := NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect()
	ws := accept(t, conns)

	require.NoError(t, s.SendChat("abcd12", "hi"))
	require.NoError(t, s.KickParticipant("abcd12", 9))
	require.NoError(t, s.EndMeeting("abcd12"))

	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, MessageTypeChat, msg.Type)
	assert.JSONEq(t, `{"roomId":"abcd12","message":"hi"}`, string(msg.Payload))

	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, MessageTypeKickUser, msg.Type)
	assert.JSONEq(t, `{"roomId":"abcd12","targetId":9}`, string(msg.Payload))

	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, MessageTypeEndMeeting, msg.Type)
	assert.JSONEq(t, `{"roomId":"abcd12"}`, string(msg.Payload))
}

func TestInboundEventsKeepOrder(t *testing.T) {
	url, conns := scriptedServer(t)
	s := NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect()
	ws := accept(t, conns)
	events := s.Events()

	serverSend(t, ws, MessageTypeParticipants, []ParticipantPayload{{ID: 1, UserName: "Alice"}, {ID: 2, UserName: "Bob"}})
	serverSend(t, ws, MessageTypeHostInfo, HostInfoPayload{HostID: 1})
	serverSend(t, ws, "something-new", nil)
	serverSend(t, ws, MessageTypeChat, ChatPayload{UserName: "Bob", Message: "hello"})
	serverSend(t, ws, MessageTypeKicked, nil)
	serverSend(t, ws, MessageTypeMeetingEnded, nil)

	ev := recvEvent(t, events)
	assert.Equal(t, EventRosterUpdated, ev.Type)
	assert.Equal(t, []domain.RosterEntry{{ID: 1, DisplayName: "Alice"}, {ID: 2, DisplayName: "Bob"}}, ev.Roster)

	ev = recvEvent(t, events)
	assert.Equal(t, Event{Type: EventHostAssigned, HostID: 1}, ev)

	ev = recvEvent(t, events)
	assert.Equal(t, Event{Type: EventChatReceived, SenderName: "Bob", Body: "hello"}, ev)

	assert.Equal(t, EventKicked, recvEvent(t, events).Type)
	assert.Equal(t, EventMeetingEnded, recvEvent(t, events).Type)
}

func TestMalformedPayloadIsSkipped(t *testing.T) {
	url, conns := scriptedServer(t)
	s := NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect()
	ws := accept(t, conns)

	require.NoError(t, ws.WriteJSON(Message{Type: MessageTypeHostInfo, Payload: json.RawMessage(`"nope"`)}))
	serverSend(t, ws, MessageTypeKicked, nil)

	assert.Equal(t, EventKicked, recvEvent(t, s.Events()).Type)
}

func TestUnexpectedDropEmitsDisconnected(t *testing.T) {
	url, conns := scriptedServer(t)
	s := NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	ws := accept(t, conns)
	events := s.Events()

	ws.Close()

	ev := recvEvent(t, events)
	assert.Equal(t, EventDisconnected, ev.Type)
	assert.Error(t, ev.Err)

	_, open := <-events
	assert.False(t, open)
	assert.Eventually(t, func() bool { return !s.connected() }, time.Second, 10*time.Millisecond)

	s.Disconnect()
}

func TestDisconnectIsAlwaysSafe(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1/ws")
	s.Disconnect()
	s.Disconnect()

	url, conns := scriptedServer(t)
	s = NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	accept(t, conns)
	events := s.Events()

	s.Disconnect()
	s.Disconnect()

	for ev := range events {
		assert.NotEqual(t, EventDisconnected, ev.Type, "requested disconnect is not a drop")
	}
	assert.Nil(t, s.Events())
}

func TestConnectTwiceFails(t *testing.T) {
	url, conns := scriptedServer(t)
	s := NewSession(url)
	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect()
	accept(t, conns)

	assert.ErrorIs(t, s.Connect(context.Background()), domain.ErrConnect)
}

func TestConnectFailure(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1/ws")

	err := s.Connect(context.Background())

	assert.ErrorIs(t, err, domain.ErrConnect)
	assert.False(t, s.connected())
}

func TestSendWithoutConnection(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1/ws")

	assert.ErrorIs(t, s.SendChat("abcd12", "hi"), domain.ErrConnect)
	assert.ErrorIs(t, s.AnnounceJoin("abcd12", 1, "Alice"), domain.ErrConnect)
}
