package client

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceConsumesStreamIntoReducer(t *testing.T) {
	origin := newStreamServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for seq := 1; seq <= 3; seq++ {
			if err := conn.WriteMessage(websocket.TextMessage, rawSnapshot(t, seq)); err != nil {
				return
			}
		}
		// Keep the connection open until the client hangs up.
		_, _, _ = conn.ReadMessage()
	})

	ch, err := Dial(t.Context(), origin, 0, nil)
	require.NoError(t, err)

	inst := NewInstance(1, ch, nil)
	defer inst.Close()

	require.Eventually(t, func() bool {
		state := inst.Reducer().State()
		return state.Display != nil && state.Display.CPUData[0].Percent == 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, inst.ID())
	assert.Equal(t, uint64(0), inst.Skipped())
}

func TestInstanceCloseStopsEverything(t *testing.T) {
	origin := newStreamServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, rawSnapshot(t, 1)); err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
	})

	ch, err := Dial(t.Context(), origin, 0, nil)
	require.NoError(t, err)

	inst := NewInstance(1, ch, &InstanceOptions{AutoMessageInterval: 5 * time.Millisecond})
	require.NoError(t, inst.AutoMessenger().Enable())

	require.NoError(t, inst.Close())
	assert.False(t, inst.AutoMessenger().Running())
	assert.True(t, inst.Reducer().State().Waiting, "closed instance shows waiting state")
}
