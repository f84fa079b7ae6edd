package configsync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Stream is the push subscription. Frames carry no payload of their own;
// every complete event is a pure invalidation signal.
type Stream struct {
	url    string
	tokens TokenSource
	client *http.Client
	log    zerolog.Logger
}

// NewStream returns a push subscription client for the events endpoint.
// The HTTP client must not have a response timeout; the connection is
// held open indefinitely.
func NewStream(url string, tokens TokenSource, client *http.Client, log zerolog.Logger) *Stream {
	if client == nil {
		client = &http.Client{}
	}
	return &Stream{url: url, tokens: tokens, client: client, log: log}
}

// Listen connects and blocks reading events until ctx is cancelled or the
// connection drops. onOpen fires once after a successful connect; onEvent
// fires for every complete event frame. Reconnecting is the caller's job.
func (s *Stream) Listen(ctx context.Context, onOpen func(), onEvent func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve stream token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("stream endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	s.log.Debug().Str("url", s.url).Msg("push subscription open")
	if onOpen != nil {
		onOpen()
	}

	return s.read(ctx, bufio.NewReaderSize(resp.Body, 1<<16), onEvent)
}

// read implements the subset of the SSE wire format the service uses:
// data lines accumulated until a blank-line flush. Comment lines
// (leading colon) are keepalives and never dispatch.
func (s *Stream) read(ctx context.Context, r *bufio.Reader, onEvent func()) error {
	pending := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if pending {
				pending = false
				onEvent()
			}
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "data:"), strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"):
			pending = true
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream closed: %w", err)
		}
	}
}
