package sse

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/testutil"
)

func TestFormatSSEMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "member_joined",
			data:      `{"room":"ABC234"}`,
			expected:  "event: member_joined\ndata: {\"room\":\"ABC234\"}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "note",
			data:      "line1\nline2",
			expected:  "event: note\ndata: line1\ndata: line2\n\n",
		},
		{
			name:      "trailing newline",
			eventName: "note",
			data:      "line1\n",
			expected:  "event: note\ndata: line1\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "carriage returns",
			eventName: "note",
			data:      "line1\r\nline2",
			expected:  "event: note\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatSSEMessage(tt.eventName, tt.data)))
		})
	}
}

func receive(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		require.True(t, ok, "client channel closed")
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
		return ""
	}
}

func TestHub_BroadcastToAllClients(t *testing.T) {
	hub := NewHub("ABC234", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	clients := []*Client{newClient(hub, "a"), newClient(hub, "b"), newClient(hub, "c")}
	for _, c := range clients {
		require.True(t, hub.Register(c))
	}
	assert.Equal(t, 3, hub.ClientCount())

	hub.BroadcastEvent("update", "data")
	for _, c := range clients {
		assert.Equal(t, "event: update\ndata: data\n\n", receive(t, c))
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub("ABC234", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	client := newClient(hub, "a")
	hub.Register(client)
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-client.send
	assert.False(t, ok)

	// Second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub("ABC234", testutil.NopLogger())
	go hub.Run()

	client := newClient(hub, "a")
	hub.Register(client)
	hub.Close()
	hub.Close()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.False(t, hub.Register(newClient(hub, "b")))
}

func TestHubManager_PublishReachesWatchers(t *testing.T) {
	m := NewHubManager(testutil.NopLogger())
	defer m.Close()

	watcher := m.Subscribe("ABC234", "host")
	other := m.Subscribe("XYZ789", "host")
	assert.Equal(t, 2, m.HubCount())

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Publish(model.RoomEvent{
		Type:           model.EventMemberJoined,
		RoomCode:       "ABC234",
		IdentityID:     "bob",
		Role:           model.RolePlayer,
		PlayerCount:    2,
		SpectatorCount: 0,
		Status:         model.RoomStatusActive,
		At:             at,
	})

	msg := receive(t, watcher)
	require.True(t, strings.HasPrefix(msg, "event: member_joined\ndata: "))
	var payload eventPayload
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(msg, "event: member_joined\ndata: "))), &payload))
	assert.Equal(t, "ABC234", payload.Room)
	assert.Equal(t, "bob", payload.IdentityID)
	assert.Equal(t, "player", payload.Role)
	assert.Equal(t, 2, payload.PlayerCount)
	assert.True(t, at.Equal(payload.At))

	select {
	case msg := <-other.send:
		t.Fatalf("other room received %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubManager_PublishWithoutWatchersIsNoop(t *testing.T) {
	m := NewHubManager(testutil.NopLogger())
	m.Publish(model.RoomEvent{Type: model.EventRoomArchived, RoomCode: "NOBODY"})
	assert.Equal(t, 0, m.HubCount())
}

func TestHubManager_LastUnsubscribeRemovesHub(t *testing.T) {
	m := NewHubManager(testutil.NopLogger())

	a := m.Subscribe("ABC234", "a")
	b := m.Subscribe("ABC234", "b")
	assert.Equal(t, 1, m.HubCount())

	m.Unsubscribe(a)
	assert.Equal(t, 1, m.HubCount())
	m.Unsubscribe(b)
	assert.Equal(t, 0, m.HubCount())

	// A fresh subscription starts a new hub
	c := m.Subscribe("ABC234", "c")
	assert.Equal(t, 1, m.HubCount())
	m.Close()
	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, m.HubCount())
}
