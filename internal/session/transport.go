// ABOUTME: Transport abstraction between sessions and the completion client
// ABOUTME: Lets tests substitute a fake stream source for the real SSE client

package session

import (
	"context"

	"github.com/parleyhq/parley/internal/completion"
)

// Stream yields assistant text fragments until io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Transport opens a streaming completion for a turn list.
type Transport interface {
	StreamChat(ctx context.Context, turns []completion.Turn) (Stream, error)
}

type clientTransport struct {
	client *completion.Client
}

// NewTransport wraps a completion client as a session Transport.
func NewTransport(client *completion.Client) Transport {
	return clientTransport{client: client}
}

func (t clientTransport) StreamChat(ctx context.Context, turns []completion.Turn) (Stream, error) {
	stream, err := t.client.StreamChat(ctx, turns)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
