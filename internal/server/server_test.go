package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvd-cam-go/internal/config"
	"cvd-cam-go/internal/filter"
	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/imageio"
	"cvd-cam-go/internal/processing"
	"cvd-cam-go/internal/types"
)

func testServer(t *testing.T, hooks Hooks) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Port = 9999
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(cfg, filter.NewDispatcher(), processing.NewStats(), hooks, log)
}

func TestHandleConfig(t *testing.T) {
	srv := testServer(t, Hooks{Source: "simulator", Selection: func() string { return filter.Blue }})

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if payload["port"].(float64) != 9999 {
		t.Fatalf("unexpected port: %v", payload["port"])
	}
	if payload["stream_filter"] != filter.Blue {
		t.Fatalf("unexpected stream_filter: %v", payload["stream_filter"])
	}
	if payload["source"] != "simulator" {
		t.Fatalf("unexpected source: %v", payload["source"])
	}
	if len(payload["filters"].([]any)) != 7 {
		t.Fatalf("unexpected filters: %v", payload["filters"])
	}
}

func TestHandleStatusAddsClientsAndFilterStats(t *testing.T) {
	srv := testServer(t, Hooks{Status: func() map[string]any {
		return map[string]any{"metrics": map[string]any{"frames_processed_total": 3}}
	}})
	srv.stats.Add(filter.Dark, 10, 0)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	metrics := payload["metrics"].(map[string]any)
	assert.Equal(t, 0.0, metrics["ws_clients"])
	assert.Contains(t, payload["filters"], filter.Dark)
}

func dial(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()
	handler, err := srv.Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		ts.Close()
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	messageType, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType, string(payload))
	require.NoError(t, json.Unmarshal(payload, v))
}

func TestWebsocketFiltersFrames(t *testing.T) {
	srv := testServer(t, Hooks{})
	conn, done := dial(t, srv)
	defer done()

	var cfg types.ConfigMessage
	readJSON(t, conn, &cfg)
	assert.Equal(t, "config", cfg.Type)
	assert.Equal(t, filter.Original, cfg.Filter)
	assert.Contains(t, cfg.Filters, filter.YellowBlue)

	require.NoError(t, conn.WriteJSON(types.ControlMessage{Type: "select_filter", Filter: filter.Deuteranope}))
	var selected types.FilterSelection
	readJSON(t, conn, &selected)
	assert.Equal(t, filter.Deuteranope, selected.Filter)

	img := frame.New(24, 16, frame.RGB)
	img.Fill(200, 40, 40)
	data, err := imageio.EncodeJPEGBytes(img, 90)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))

	messageType, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, messageType)
	out, err := imageio.DecodeBytes(reply, frame.RGB)
	require.NoError(t, err)
	assert.True(t, img.SameShape(out))

	snap := srv.stats.SnapshotCopy()
	assert.Equal(t, uint64(1), snap[filter.Deuteranope].Frames)
}

func TestWebsocketRejectsUnknownFilterAndBadFrames(t *testing.T) {
	srv := testServer(t, Hooks{})
	conn, done := dial(t, srv)
	defer done()

	var cfg types.ConfigMessage
	readJSON(t, conn, &cfg)

	require.NoError(t, conn.WriteJSON(types.ControlMessage{Type: "select_filter", Filter: "Sepia"}))
	var msg types.ErrorMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "Sepia")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("not a jpeg")))
	readJSON(t, conn, &msg)
	assert.Equal(t, "error", msg.Type)
}

func TestWebsocketStreamSelection(t *testing.T) {
	selected := make(chan string, 1)
	srv := testServer(t, Hooks{Select: func(name string) error {
		if name != filter.Yellow {
			return errors.New("rejected")
		}
		selected <- name
		return nil
	}})
	conn, done := dial(t, srv)
	defer done()

	var cfg types.ConfigMessage
	readJSON(t, conn, &cfg)

	require.NoError(t, conn.WriteJSON(types.ControlMessage{Type: "select_stream_filter", Filter: filter.Yellow}))
	var notice types.FilterSelection
	readJSON(t, conn, &notice)
	assert.Equal(t, "stream_filter", notice.Type)
	assert.Equal(t, filter.Yellow, <-selected)

	require.NoError(t, conn.WriteJSON(types.ControlMessage{Type: "select_stream_filter", Filter: "Sepia"}))
	var msg types.ErrorMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, "rejected", msg.Error)
}
