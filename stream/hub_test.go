package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T, initial func() Message) *Hub {
	t.Helper()
	h := NewHub(zerolog.New(io.Discard), nil, initial)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketInitialFrameAndBroadcast(t *testing.T) {
	h := startHub(t, func() Message { return Message{Type: "dashboard", Data: map[string]int{"seq": 7}} })
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Type != "dashboard" || first.Data["seq"] != 7 {
		t.Fatalf("initial frame = %+v", first)
	}

	waitFor(t, "registration", func() bool { return h.Clients() == 1 })
	h.Broadcast(Message{Type: "dashboard", Data: map[string]int{"seq": 8}})

	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if first.Data["seq"] != 8 {
		t.Fatalf("broadcast frame = %+v", first)
	}

	conn.Close()
	waitFor(t, "unregistration", func() bool { return h.Clients() == 0 })
}

func TestSlowClientIsDropped(t *testing.T) {
	h := NewHub(zerolog.New(io.Discard), nil, nil)
	h.sendBuffer = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := h.newClient("test")
	if !h.join(ctx, slow) {
		t.Fatal("join failed")
	}
	for i := 0; i < 3; i++ {
		h.Broadcast(Message{Type: "tick", Data: i})
	}
	waitFor(t, "slow client removal", func() bool { return h.Clients() == 0 })

	// The buffered frame is still delivered before the channel closes.
	if _, ok := <-slow.send; !ok {
		t.Fatal("expected buffered frame")
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("expected closed channel")
	}
}

func TestSSEStream(t *testing.T) {
	h := startHub(t, func() Message { return Message{Type: "dashboard", Data: "hello"} })
	srv := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	readEvent := func() Message {
		t.Helper()
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if _, err := r.ReadString('\n'); err != nil {
			t.Fatalf("read separator: %v", err)
		}
		var m Message
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		return m
	}

	if m := readEvent(); m.Type != "dashboard" || m.Data != "hello" {
		t.Fatalf("initial event = %+v", m)
	}

	waitFor(t, "registration", func() bool { return h.Clients() == 1 })
	h.Broadcast(Message{Type: "status", Data: "anchored"})
	if m := readEvent(); m.Type != "status" || m.Data != "anchored" {
		t.Fatalf("event = %+v", m)
	}
}

func TestInitialFrameQueuedOnRegistration(t *testing.T) {
	var seq atomic.Int64
	seq.Store(1)
	h := startHub(t, func() Message { return Message{Type: "dashboard", Data: seq.Load()} })

	c := h.newClient("test")
	if !h.join(context.Background(), c) {
		t.Fatal("join failed")
	}
	seq.Store(2)
	h.Broadcast(Message{Type: "dashboard", Data: 2})

	var got []Message
	for len(got) < 2 {
		select {
		case frame := <-c.send:
			var m Message
			if err := json.Unmarshal(frame, &m); err != nil {
				t.Fatal(err)
			}
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("frames = %+v", got)
		}
	}
	if got[0].Type != "dashboard" || got[1].Data != float64(2) {
		t.Fatalf("frames = %+v", got)
	}
}
