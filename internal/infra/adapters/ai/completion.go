package ai

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"

	"dossier/internal/config"
	"dossier/internal/domain"
	"dossier/internal/domain/ports/adapter"
	"dossier/internal/infra/metrics"
)

var _ adapter.CompletionAdapter = (*OpenAICompleter)(nil)

// OpenAICompleter streams chat completions from an OpenAI-compatible API.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewOpenAICompleter(cfg config.AIConfig) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		model:       cfg.CompletionModel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (o *OpenAICompleter) StreamComplete(ctx context.Context, messages []adapter.Message) (adapter.CompletionStream, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    toChatMessages(messages),
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		metrics.IncCompletionStream("errored")
		return nil, fmt.Errorf("%w: %v", domain.ErrCompletionFailed, err)
	}
	return &completionStream{stream: stream}, nil
}

func toChatMessages(messages []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

type completionStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	done   bool
}

// Recv returns the next non-empty content delta. io.EOF is the clean
// terminal; anything else means the answer is incomplete.
func (s *completionStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		metrics.IncCompletionStream("errored")
		return "", fmt.Errorf("%w: %v", domain.ErrCompletionFailed, err)
	}
	metrics.IncCompletionStream("completed")
	return "", io.EOF
}

func (s *completionStream) Close() error {
	s.done = true
	return s.stream.Close()
}
