package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CompletionStream is a lazily-produced sequence of text fragments.
// Recv returns io.EOF when the stream is exhausted; any other error is
// terminal and means the output is incomplete. Close releases the
// underlying network stream without waiting for completion.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionAdapter wraps the external LLM completion API.
type CompletionAdapter interface {
	StreamComplete(ctx context.Context, messages []Message) (CompletionStream, error)
}
