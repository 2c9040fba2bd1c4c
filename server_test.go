package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"fireflies/astar"
)

// startTestServer spins up an httptest.Server around a fresh simulation and
// returns it with its websocket URL.
func startTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server, string) {
	t.Helper()
	srv := NewServer(newTestSimulation(t, cfg))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads one frame, decoding msgpack for binary messages.
func readFrame(t *testing.T, conn *websocket.Conn) (int, Frame) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	var f Frame
	if msgType == websocket.BinaryMessage {
		if err := msgpack.Unmarshal(raw, &f); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
	} else if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msgType, f
}

func sendParams(t *testing.T, conn *websocket.Conn, p ClientParams) {
	t.Helper()
	p.Type = MsgClientParams
	raw, _ := json.Marshal(p)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

func TestNearbyEndpoint(t *testing.T) {
	_, ts, _ := startTestServer(t, testConfig())

	var resp NearbyResponse
	if code := getJSON(t, ts.URL+"/api/nearby?x=100&y=100&radius=50", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Count != len(resp.Fireflies) {
		t.Errorf("count %d but %d fireflies", resp.Count, len(resp.Fireflies))
	}
	for _, f := range resp.Fireflies {
		if f.Distance > 50 {
			t.Errorf("firefly %d at distance %v outside radius", f.ID, f.Distance)
		}
	}

	var errResp ErrorResponse
	if code := getJSON(t, ts.URL+"/api/nearby?x=abc", &errResp); code != http.StatusBadRequest {
		t.Errorf("bad x: status %d", code)
	}
	if errResp.Error == "" {
		t.Error("expected error message")
	}
}

func TestPathEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 0
	srv, ts, _ := startTestServer(t, cfg)

	var resp PathResponse
	if code := getJSON(t, ts.URL+"/api/path?sx=0&sy=0&gx=11&gy=11", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Status != PathOK || resp.Length != 23 || len(resp.Path) != 23 {
		t.Errorf("unexpected response %+v", resp)
	}

	// wall off the goal column
	for y := 0; y < cfg.PathRows; y++ {
		srv.sim.grid.SetBlocked(astar.Cell{X: 10, Y: y}, true)
	}
	resp = PathResponse{}
	getJSON(t, ts.URL+"/api/path?gx=11&gy=11", &resp)
	if resp.Status != PathNoPath {
		t.Errorf("expected %s, got %+v", PathNoPath, resp)
	}

	var errResp ErrorResponse
	if code := getJSON(t, ts.URL+"/api/path?gx=50", &errResp); code != http.StatusBadRequest {
		t.Errorf("out of bounds goal: status %d", code)
	}
}

func TestPathEndpointIterationLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 4
	_, ts, _ := startTestServer(t, cfg)

	var resp PathResponse
	getJSON(t, ts.URL+"/api/path", &resp)
	if resp.Status != PathIterationLimit {
		t.Errorf("expected %s, got %+v", PathIterationLimit, resp)
	}
	if resp.Expanded != 4 {
		t.Errorf("expanded %d, want 4", resp.Expanded)
	}
}

func TestWebSocketJSONFrame(t *testing.T) {
	_, _, wsURL := startTestServer(t, testConfig())
	conn := dialWS(t, wsURL)

	sendParams(t, conn, ClientParams{X: 100, Y: 100, Radius: 60})
	msgType, f := readFrame(t, conn)
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", msgType)
	}
	if f.Type != MsgFrame || f.Radius != 60 || f.Center != (Point{X: 100, Y: 100}) {
		t.Errorf("unexpected frame header %+v", f)
	}
	if f.Count != len(f.Fireflies) {
		t.Errorf("count %d but %d fireflies", f.Count, len(f.Fireflies))
	}
}

func TestWebSocketMsgpackFrame(t *testing.T) {
	_, _, wsURL := startTestServer(t, testConfig())
	conn := dialWS(t, wsURL)

	sendParams(t, conn, ClientParams{X: 50, Y: 50, Radius: 200, Encoding: EncodingMsgpack})
	msgType, f := readFrame(t, conn)
	if msgType != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got %d", msgType)
	}
	if f.Count == 0 || f.Count != len(f.Fireflies) {
		t.Errorf("expected fireflies in a large radius, got count=%d len=%d", f.Count, len(f.Fireflies))
	}
}

func TestWebSocketRejectsUnknownMessage(t *testing.T) {
	_, _, wsURL := startTestServer(t, testConfig())
	conn := dialWS(t, wsURL)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	var e ErrorResponse
	if err := json.Unmarshal(raw, &e); err != nil || e.Type != MsgError {
		t.Fatalf("expected error message, got %s", raw)
	}
}

func TestRunBroadcastsAndStops(t *testing.T) {
	srv, _, wsURL := startTestServer(t, testConfig())
	conn := dialWS(t, wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()

	var f Frame
	for i := 0; i < 20 && f.Tick == 0; i++ {
		_, f = readFrame(t, conn)
		if f.Type != MsgFrame {
			t.Fatalf("expected broadcast frame, got %+v", f)
		}
	}
	if f.Tick == 0 {
		t.Error("expected frames to report simulation ticks")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
