// Command flyer-term follows a flyer server's dashboard stream in the
// terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"flyer-vessel-viz/integration"
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	server := flag.String("server", "localhost:8080", "flyer server host:port")
	secure := flag.Bool("tls", false, "connect with wss")
	flag.Parse()

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: *server, Path: "/ws"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	p := tea.NewProgram(newModel(*server), tea.WithAltScreen(), tea.WithContext(ctx))
	go follow(ctx, u.String(), p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// follow keeps a websocket open to addr, reconnecting with backoff, and sends
// every dashboard frame to send.
func follow(ctx context.Context, addr string, send func(tea.Msg)) {
	backoff := minBackoff
	for {
		err := readStream(ctx, addr, send, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return
		}
		send(connMsg{Err: err})

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func readStream(ctx context.Context, addr string, send func(tea.Msg), connected func()) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	connected()
	send(connMsg{Connected: true})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		d, ok, err := decodeFrame(data)
		if err != nil {
			return err
		}
		if ok {
			send(dashboardMsg{Dashboard: d})
		}
	}
}

// decodeFrame returns the dashboard carried by data. Frames of other types
// are ignored.
func decodeFrame(data []byte) (integration.Dashboard, bool, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return integration.Dashboard{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type != "dashboard" {
		return integration.Dashboard{}, false, nil
	}
	var d integration.Dashboard
	if err := json.Unmarshal(f.Data, &d); err != nil {
		return integration.Dashboard{}, false, fmt.Errorf("decode dashboard: %w", err)
	}
	return d, true, nil
}
