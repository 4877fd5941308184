package adapters

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/af-corp/chat-gateway/internal/events"
)

// recordingSink collects everything a stream emits.
type recordingSink struct {
	events []events.Event
	raw    [][]byte
	// onSend runs after each recorded event.
	onSend func()
}

func (s *recordingSink) Send(ev events.Event) error {
	s.events = append(s.events, ev)
	if s.onSend != nil {
		s.onSend()
	}
	return nil
}

func (s *recordingSink) SendRaw(payload []byte) error {
	s.raw = append(s.raw, append([]byte(nil), payload...))
	var ev events.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	return s.Send(ev)
}

func (s *recordingSink) ofType(typ string) []events.Event {
	var out []events.Event
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) types() []string {
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// writeSSE writes frames the way both upstreams do.
func writeSSE(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	for _, f := range frames {
		fmt.Fprintf(w, "data: %s\n\n", f)
		flusher.Flush()
	}
}

// bodyLog records request bodies per path.
type bodyLog struct {
	mu     sync.Mutex
	bodies map[string][][]byte
}

func newBodyLog() *bodyLog {
	return &bodyLog{bodies: make(map[string][][]byte)}
}

func (l *bodyLog) record(r *http.Request) []byte {
	b, _ := io.ReadAll(r.Body)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bodies[r.URL.Path] = append(l.bodies[r.URL.Path], b)
	return b
}

func (l *bodyLog) get(path string) [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bodies[path]
}

func newUpstream(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
