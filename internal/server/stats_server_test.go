package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/internal/core/monitor"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/pipeline"
	"github.com/framegate/framegate/internal/core/system"
)

func startTestServer(t *testing.T) (*StatsServer, *pipeline.Pipeline) {
	t.Helper()

	pipe, err := pipeline.New(pipeline.DefaultConfig(), system.Noop{}, log.NewNop())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.StatsInterval = 20 * time.Millisecond

	srv := NewStatsServer(cfg, pipe, log.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
	})
	return srv, pipe
}

func TestStatsServer(t *testing.T) {
	t.Run("StatsEndpoint", func(t *testing.T) {
		srv, _ := startTestServer(t)

		resp, err := http.Get("http://" + srv.Addr() + "/stats")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var stats pipeline.Stats
		require.NoError(t, json.Unmarshal(body, &stats))
		require.NotEmpty(t, stats.SessionID)
	})

	t.Run("ReportEndpoint", func(t *testing.T) {
		srv, _ := startTestServer(t)

		resp, err := http.Get("http://" + srv.Addr() + "/report?minutes=2")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report monitor.Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		require.Equal(t, 2*time.Minute, report.Window)
	})

	t.Run("WebSocketStreamsStats", func(t *testing.T) {
		srv, _ := startTestServer(t)

		conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "stats", msg.Kind)
		require.NotNil(t, msg.Stats)
	})

	t.Run("WebSocketReceivesAlerts", func(t *testing.T) {
		srv, pipe := startTestServer(t)

		conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		require.Eventually(t, func() bool {
			return srv.clientCount() == 1
		}, time.Second, 5*time.Millisecond)

		// Drive the drop rate past the critical threshold and force a tick.
		pipe.Monitor().UpdateFrameMetrics(25, 10*time.Millisecond, 0.9)
		pipe.Monitor().Tick()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var msg streamMessage
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Kind != "alert" {
				continue
			}
			require.NotNil(t, msg.Alert)
			require.Equal(t, "frame_drop_rate", msg.Alert.Type)
			break
		}
	})

	t.Run("StopDisconnectsClients", func(t *testing.T) {
		pipe, err := pipeline.New(pipeline.DefaultConfig(), system.Noop{}, log.NewNop())
		require.NoError(t, err)

		cfg := DefaultConfig()
		cfg.Port = 0
		srv := NewStatsServer(cfg, pipe, log.NewNop())
		require.NoError(t, srv.Start(context.Background()))

		conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		require.NoError(t, srv.Stop())

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	})
}
