package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"inkflow-backend/pkg/logger"
)

// ErrAborted marks a read terminated by the run's cancellation signal. It is
// a distinct termination class, not a failure: callers end the run quietly.
var ErrAborted = errors.New("stream aborted")

// StatusError is returned when the backend answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

const readBufferSize = 4 * 1024

// Stream posts payload to the completion endpoint and returns a lazy,
// forward-only sequence of body chunks. The chunk channel is closed when the
// stream ends; the error channel then yields exactly one value: nil on a
// normal close, ErrAborted when ctx fired, or the underlying read error.
// The response body is released on every exit path.
func (c *Client) Stream(ctx context.Context, payload any) (<-chan []byte, <-chan error, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ErrAborted
		}
		return nil, nil, fmt.Errorf("open stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		resp.Body.Close()
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	chunks := make(chan []byte, 16)
	done := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		buf := make([]byte, readBufferSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					done <- ErrAborted
					return
				}
			}
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					done <- nil
				case ctx.Err() != nil:
					done <- ErrAborted
				default:
					logger.Warnf("stream read failed: %v", err)
					done <- fmt.Errorf("read stream: %w", err)
				}
				return
			}
		}
	}()

	return chunks, done, nil
}
