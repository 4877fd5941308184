package sse

import (
	"io"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/af-corp/chat-gateway/internal/events"
)

const sampleStream = "event: response.created\n" +
	"data: {\"type\":\"response.created\"}\n\n" +
	": keep-alive comment\n\n" +
	"data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n" +
	"data:{\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}\r\n\r\n" +
	"data: \n\n" +
	"data: not json at all\n\n" +
	"data: [DONE]\n\n" +
	"data: {\"type\":\"tail\"}"

func readAll(t *testing.T, r io.Reader) []string {
	t.Helper()
	reader := NewReader(r, 0)
	var out []string
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, string(payload))
	}
}

// chunkReader returns the underlying data in pieces of the given size.
type chunkReader struct {
	data []byte
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.size
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReader_SkipsNonDataLines(t *testing.T) {
	got := readAll(t, strings.NewReader(sampleStream))
	want := []string{
		`{"type":"response.created"}`,
		`{"type":"response.output_text.delta","delta":"Hel"}`,
		`{"type":"response.output_text.delta","delta":"lo"}`,
		`not json at all`,
		`{"type":"tail"}`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payloads mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestReader_ChunkBoundaryInvariant(t *testing.T) {
	whole := readAll(t, strings.NewReader(sampleStream))

	for size := 1; size <= len(sampleStream); size++ {
		got := readAll(t, &chunkReader{data: []byte(sampleStream), size: size})
		if !reflect.DeepEqual(got, whole) {
			t.Fatalf("chunk size %d: got %q, want %q", size, got, whole)
		}
	}

	got := readAll(t, iotest.OneByteReader(strings.NewReader(sampleStream)))
	if !reflect.DeepEqual(got, whole) {
		t.Errorf("one-byte reader: got %q, want %q", got, whole)
	}
}

func TestReader_LargeFrame(t *testing.T) {
	big := strings.Repeat("A", 2*1024*1024)
	stream := "data: {\"type\":\"image_partial\",\"data\":\"" + big + "\"}\n\n"
	got := readAll(t, strings.NewReader(stream))
	if len(got) != 1 || len(got[0]) < len(big) {
		t.Fatalf("expected one large payload, got %d payloads", len(got))
	}
}

func TestReader_FrameTooLarge(t *testing.T) {
	stream := "data: " + strings.Repeat("x", 4096) + "\n\n"
	reader := NewReader(strings.NewReader(stream), 1024)
	if _, err := reader.Next(); err == nil || err == io.EOF {
		t.Errorf("expected a scanner error for an oversized line, got %v", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []events.Event{
		events.TextDelta("hello"),
		events.Status("response.web_search_call.searching"),
		events.CodeDelta("print(1)"),
		events.CodeOutput("1\n"),
		events.ImagePartial("iVBORw0KGgo="),
		events.ImageComplete("iVBORw0KGgo="),
		events.OutputFile("cfile_1", "out.csv", "text/csv", "cntr_1"),
		events.GeminiFile("chart.png", "image/png", "iVBORw0KGgo="),
		events.Completion("resp_1", "cntr_1"),
		events.Completion("", ""),
	}

	for _, ev := range cases {
		frame, err := Encode(ev)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", ev, err)
		}
		if !strings.HasPrefix(string(frame), "data: ") || !strings.HasSuffix(string(frame), "\n\n") {
			t.Errorf("bad framing: %q", frame)
		}
		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%q): %v", frame, err)
		}
		if !reflect.DeepEqual(got, ev) {
			t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, ev)
		}
	}
}

func TestOutputFile_Defaults(t *testing.T) {
	ev := events.OutputFile("file_1", "", "", "")
	if ev.Filename != events.DefaultFilename || ev.MimeType != events.DefaultMimeType {
		t.Errorf("expected defaults, got %+v", ev)
	}
}

func TestWriter_HeadersAndFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	raw := []byte(`{"type":"response.output_text.delta","delta":"hi","item_id":"msg_1"}`)
	if err := w.SendRaw(raw); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(events.Completion("resp_1", "")); err != nil {
		t.Fatal(err)
	}
	if err := w.Done(); err != nil {
		t.Fatal(err)
	}

	headers := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache, no-transform",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, v := range headers {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}

	want := "data: " + string(raw) + "\n\n" +
		"data: {\"type\":\"completion\",\"chat_id\":\"resp_1\"}\n\n" +
		"data: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Errorf("body mismatch\n got: %q\nwant: %q", rec.Body.String(), want)
	}
}
