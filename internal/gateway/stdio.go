package gateway

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MessageHandler processes one decoded request payload and returns the
// raw response payload to write back. A nil return suppresses a
// response (e.g. a JSON-RPC notification).
type MessageHandler func(ctx context.Context, payload []byte) []byte

// ServeStdio runs the §6 stdio transport loop: it reads framed messages
// from r, auto-detecting newline vs Content-Length framing from the
// first bytes (never mixing modes on this connection, per FramedReader),
// dispatches each to handle on its own goroutine, and writes responses
// back through a single write-mutexed FramedWriter so concurrent
// handlers never interleave bytes on the wire. It returns when r is
// exhausted, ctx is done, or a read error occurs other than io.EOF.
func ServeStdio(ctx context.Context, r io.Reader, w io.Writer, handle MessageHandler) error {
	reader := NewFramedReader(r)

	first, err := reader.ReadMessage()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	writer := NewFramedWriter(w, reader.Mode())

	var wg sync.WaitGroup
	dispatch := func(payload []byte) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := handle(ctx, payload)
			if resp == nil {
				return
			}
			_ = writer.WriteMessage(resp)
		}()
	}

	dispatch(first)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		payload, err := reader.ReadMessage()
		if err != nil {
			wg.Wait()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		dispatch(payload)
	}
}
