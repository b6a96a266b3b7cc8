// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const testOrigin = "http://localhost:5173"

// startTransport serves a running Transport and stops it on cleanup.
func startTransport(t *testing.T, cfg Config) (*Transport, *httptest.Server) {
	t.Helper()
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{testOrigin}
	}
	tr := NewTransport(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tr.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(tr)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return tr, srv
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func mustDial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := dial(t, srv, testOrigin)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data string) {
	t.Helper()
	frame := `{"type":"` + event + `","data":` + data + `}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// handleRecorder collects handles passed to transport callbacks.
type handleRecorder struct {
	mu      sync.Mutex
	handles []string
}

func (r *handleRecorder) add(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handle)
}

func (r *handleRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.handles...)
}

func TestInitialize_IsIdempotent(t *testing.T) {
	first, created := Initialize(Config{AllowedOrigins: []string{testOrigin}})
	if !created {
		t.Fatal("first Initialize should create the transport")
	}
	defer first.Close()

	second, created := Initialize(Config{AllowedOrigins: []string{"*"}})
	if created {
		t.Error("second Initialize must not create a new transport")
	}
	if second != first {
		t.Error("second Initialize returned a different instance")
	}

	first.Close()
	third, created := Initialize(Config{})
	defer third.Close()
	if !created || third == first {
		t.Error("Initialize after Close should create a fresh transport")
	}
}

func TestTransport_ConnectEventDisconnect(t *testing.T) {
	tr, srv := startTransport(t, Config{})

	connects := &handleRecorder{}
	disconnects := &handleRecorder{}
	var (
		mu       sync.Mutex
		payloads []string
	)
	tr.OnConnect(connects.add)
	tr.OnDisconnect(disconnects.add)
	tr.OnEvent("identify", func(handle string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		payloads = append(payloads, handle+"="+string(payload))
	})

	conn := mustDial(t, srv)
	waitFor(t, "connect callback", func() bool { return len(connects.list()) == 1 })
	handle := connects.list()[0]

	sendFrame(t, conn, "identify", `{"userId":"alice"}`)
	waitFor(t, "identify callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1
	})
	mu.Lock()
	if payloads[0] != handle+`={"userId":"alice"}` {
		t.Errorf("identify payload = %q", payloads[0])
	}
	mu.Unlock()

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitFor(t, "disconnect callback", func() bool { return len(disconnects.list()) == 1 })
	if got := disconnects.list()[0]; got != handle {
		t.Errorf("disconnect handle = %q, want %q", got, handle)
	}
	if err := tr.EmitTo(handle, "newMessage", "x"); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("EmitTo closed handle error = %v, want ErrUnknownHandle", err)
	}
}

func TestTransport_EmitTo(t *testing.T) {
	tr, srv := startTransport(t, Config{})
	connects := &handleRecorder{}
	tr.OnConnect(connects.add)

	conn := mustDial(t, srv)
	waitFor(t, "connect", func() bool { return len(connects.list()) == 1 })

	if err := tr.EmitTo(connects.list()[0], "newMessage", map[string]string{"_id": "m1"}); err != nil {
		t.Fatalf("EmitTo failed: %v", err)
	}

	f := readFrame(t, conn)
	if f.Type != "newMessage" || string(f.Data) != `{"_id":"m1"}` {
		t.Errorf("frame = %s %s", f.Type, f.Data)
	}
}

func TestTransport_PingFrameGetsPong(t *testing.T) {
	_, srv := startTransport(t, Config{})
	conn := mustDial(t, srv)

	sendFrame(t, conn, MessageTypePing, `null`)
	if f := readFrame(t, conn); f.Type != MessageTypePong {
		t.Errorf("reply type = %q, want pong", f.Type)
	}
}

func TestTransport_MalformedFrameKeepsConnection(t *testing.T) {
	tr, srv := startTransport(t, Config{})
	var got []string
	var mu sync.Mutex
	tr.OnEvent("identify", func(_ string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(payload))
	})

	conn := mustDial(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	sendFrame(t, conn, "identify", `"alice"`)

	waitFor(t, "identify after malformed frame", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	if tr.Connections() != 1 {
		t.Errorf("Connections() = %d, want 1", tr.Connections())
	}
}

func TestTransport_OriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		wantOK  bool
	}{
		{"allowed origin", []string{testOrigin}, testOrigin, true},
		{"foreign origin", []string{testOrigin}, "https://evil.example", false},
		{"prefix is not a match", []string{testOrigin}, testOrigin + ".evil.example", false},
		{"missing origin", []string{testOrigin}, "", false},
		{"wildcard allows any", []string{"*"}, "https://anything.example", true},
		{"wildcard allows missing", []string{"*"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := startTransport(t, Config{AllowedOrigins: tt.allowed})

			conn, resp, err := dial(t, srv, tt.origin)
			if conn != nil {
				defer conn.Close()
			}
			if tt.wantOK && err != nil {
				t.Fatalf("dial failed: %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected dial to be rejected")
				}
				if resp == nil || resp.StatusCode != http.StatusForbidden {
					t.Errorf("expected 403, got %v", resp)
				}
			}
		})
	}
}

func TestTransport_InboundRateLimit(t *testing.T) {
	tr, srv := startTransport(t, Config{EventRate: 0.001, EventBurst: 2})
	var (
		mu    sync.Mutex
		count int
	)
	tr.OnEvent("typing", func(string, []byte) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	conn := mustDial(t, srv)
	for i := 0; i < 5; i++ {
		sendFrame(t, conn, "typing", `{}`)
	}
	// A ping after the burst proves every earlier frame was read.
	sendFrame(t, conn, MessageTypePing, `null`)
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _, _ = conn.ReadMessage()

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("handled %d events, want burst of 2", count)
	}
}

func TestTransport_ShutdownClosesConnections(t *testing.T) {
	tr := NewTransport(Config{AllowedOrigins: []string{testOrigin}})
	disconnects := &handleRecorder{}
	tr.OnDisconnect(disconnects.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	srv := httptest.NewServer(tr)
	defer srv.Close()

	conn := mustDial(t, srv)
	waitFor(t, "connection registered", func() bool { return tr.Connections() == 1 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	if got := disconnects.list(); len(got) != 1 {
		t.Errorf("disconnect callbacks = %v, want one", got)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close frame, got %v", err)
	}
}
