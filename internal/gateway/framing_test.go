package gateway

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramedReader_NewlineDelimited(t *testing.T) {
	r := NewFramedReader(strings.NewReader("{\"a\":1}\n{\"b\":2}\n"))

	msg1, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(msg1))

	msg2, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(msg2))
}

func TestFramedReader_ContentLengthDelimited(t *testing.T) {
	body := `{"a":1}`
	raw := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	r := NewFramedReader(strings.NewReader(raw))

	msg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, body, string(msg))
}

func TestFramedReader_DoesNotMixModesAcrossOneConnection(t *testing.T) {
	body := `{"x":1}`
	raw := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	raw += fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	r := NewFramedReader(strings.NewReader(raw))

	msg1, err := r.ReadMessage()
	require.NoError(t, err)
	msg2, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, body, string(msg1))
	assert.Equal(t, body, string(msg2))
}

func TestFramedWriter_NewlineRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFramedWriter(&buf, FrameNewline)
	require.NoError(t, w.WriteMessage([]byte(`{"ok":true}`)))
	assert.Equal(t, "{\"ok\":true}\n", buf.String())
}

func TestFramedWriter_ContentLengthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFramedWriter(&buf, FrameContentLength)
	payload := []byte(`{"ok":true}`)
	require.NoError(t, w.WriteMessage(payload))

	r := NewFramedReader(&buf)
	got, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFramedWriter_ConcurrentWritesNeverInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewFramedWriter(&buf, FrameNewline)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = w.WriteMessage([]byte(fmt.Sprintf(`{"n":%d}`, n)))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, `{"n":`))
		assert.True(t, strings.HasSuffix(l, `}`))
	}
}
