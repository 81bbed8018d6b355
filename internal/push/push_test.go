package push

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

func TestHub_BroadcastsToWebSocketClients(t *testing.T) {
	bus := fanout.New()
	hub := NewHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, bus)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// Registration is asynchronous; events published before it completes
	// are simply not delivered, so keep publishing until one arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.Publish(domain.EventAlert, map[string]string{"message": "whale alert"})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "no event delivered over websocket")

	var got domain.Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, domain.EventAlert, got.Type)
}

func TestHub_LateConnectAfterShutdownIsClosed(t *testing.T) {
	bus := fanout.New()
	hub := NewHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx, bus)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// A stopped hub closes the connection instead of leaving the
	// handler blocked on registration.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("connection left hanging after hub shutdown")
	}
}

func TestSSEHandler_StreamsEvents(t *testing.T) {
	bus := fanout.New()
	srv := httptest.NewServer(SSEHandler(bus, testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(domain.EventNewLaunch, map[string]string{"symbol": "LNCH"})

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var eventLine, dataLine string
	deadline := time.After(2 * time.Second)
	for eventLine == "" || dataLine == "" {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before the event arrived")
			}
			if strings.HasPrefix(line, "event: ") {
				eventLine = line
			}
			if strings.HasPrefix(line, "data: ") {
				dataLine = line
			}
		case <-deadline:
			t.Fatal("timed out waiting for sse frame")
		}
	}
	assert.Equal(t, "event: new_launch", eventLine)
	assert.Contains(t, dataLine, `"symbol":"LNCH"`)
}

type plainRecorder struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (p *plainRecorder) Header() http.Header { return p.header }
func (p *plainRecorder) WriteHeader(code int) { p.code = code }
func (p *plainRecorder) Write(b []byte) (int, error) { return p.body.Write(b) }

func TestSSEHandler_RequiresFlusher(t *testing.T) {
	handler := SSEHandler(fanout.New(), testLogger())

	rec := &plainRecorder{header: make(http.Header)}
	handler(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.code)
}
