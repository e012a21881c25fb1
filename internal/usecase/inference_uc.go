// File: internal/usecase/inference_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
	"dossier/internal/domain/ports/repository"
)

// Compile-time check
var _ InferenceUseCase = (*inferenceUC)(nil)

const (
	answerSystemPrompt = "You are an expert assistant. Answer the user's question " +
		"using only the provided context passages. If the context does not " +
		"contain the answer, say so."

	summarySystemPrompt = "You are an expert content summarizer. Provide clear, " +
		"concise, and informative summaries."

	// summaryContentLimit bounds how much raw content goes into a summary
	// prompt, in runes.
	summaryContentLimit = 4000
)

type InferenceUseCase interface {
	// Answer retrieves context for the question and streams a completion
	// grounded on it. The prompt is bounded by the token budget; the
	// lowest-scored retrieved chunks are dropped first.
	Answer(ctx context.Context, userID, question string, topK int) (adapter.CompletionStream, error)
	// Summarize streams a summary of one document's stored content.
	Summarize(ctx context.Context, userID, documentID string) (adapter.CompletionStream, error)
}

type inferenceUC struct {
	retrieval    RetrievalUseCase
	completion   adapter.CompletionAdapter
	docs         repository.DocumentRepository
	promptBudget int
	encoder      *tiktoken.Tiktoken
	log          *zerolog.Logger
}

func NewInferenceUseCase(
	retrieval RetrievalUseCase,
	completion adapter.CompletionAdapter,
	docs repository.DocumentRepository,
	completionModel string,
	promptBudget int,
	log *zerolog.Logger,
) *inferenceUC {
	if promptBudget <= 0 {
		promptBudget = 6000
	}
	enc, err := tiktoken.EncodingForModel(completionModel)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		log.Warn().Err(err).Msg("token encoder unavailable, falling back to length estimate")
		enc = nil
	}
	return &inferenceUC{
		retrieval:    retrieval,
		completion:   completion,
		docs:         docs,
		promptBudget: promptBudget,
		encoder:      enc,
		log:          log,
	}
}

func (u *inferenceUC) Answer(ctx context.Context, userID, question string, topK int) (adapter.CompletionStream, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidArgument)
	}

	chunks, err := u.retrieval.Retrieve(ctx, userID, question, topK)
	if err != nil {
		return nil, err
	}

	prompt, used := u.assemblePrompt(question, chunks)
	u.log.Debug().Int("retrieved", len(chunks)).Int("in_prompt", used).Msg("prompt assembled")

	return u.completion.StreamComplete(ctx, []adapter.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: prompt},
	})
}

func (u *inferenceUC) Summarize(ctx context.Context, userID, documentID string) (adapter.CompletionStream, error) {
	doc, err := u.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document %s has no stored content", domain.ErrContentEmpty, documentID)
	}

	content := doc.Content
	if runes := []rune(content); len(runes) > summaryContentLimit {
		content = string(runes[:summaryContentLimit])
	}

	prompt := fmt.Sprintf(
		"Please provide a comprehensive summary of the following web content.\n\n"+
			"Content:\n%s\n\n"+
			"Create a concise summary in under 150 words covering the main topic, "+
			"key points, and any notable conclusions.",
		content,
	)

	stream, err := u.completion.StreamComplete(ctx, []adapter.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	return &summaryStream{inner: stream, uc: u, docID: doc.ID, status: doc.Status}, nil
}

// summaryStream accumulates the streamed summary and stores it on the
// document once the completion ends cleanly, so later requests can show
// the last generated summary without another model call.
type summaryStream struct {
	inner  adapter.CompletionStream
	uc     *inferenceUC
	docID  string
	status model.DocumentStatus
	buf    strings.Builder
	saved  bool
}

func (s *summaryStream) Recv() (string, error) {
	frag, err := s.inner.Recv()
	if err == nil {
		s.buf.WriteString(frag)
		return frag, nil
	}
	if errors.Is(err, io.EOF) && !s.saved {
		s.saved = true
		s.persist()
	}
	return frag, err
}

func (s *summaryStream) Close() error { return s.inner.Close() }

func (s *summaryStream) persist() {
	summary := s.buf.String()
	if strings.TrimSpace(summary) == "" {
		return
	}
	// The request context may be gone once the client disconnects.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Precondition on the status seen at request time: if the worker
	// moved the document meanwhile, skip rather than stomp its state.
	update := repository.StatusUpdate{Status: s.status, Summary: &summary}
	err := s.uc.docs.UpdateStatus(ctx, nil, s.docID, update, s.status)
	switch {
	case errors.Is(err, domain.ErrPreconditionFailed):
		s.uc.log.Debug().Str("document_id", s.docID).Msg("document changed mid-summary, summary not stored")
	case err != nil:
		s.uc.log.Warn().Err(err).Str("document_id", s.docID).Msg("summary not stored")
	}
}

// assemblePrompt folds retrieved chunks into the question prompt, highest
// score first, until the token budget is hit. Returns the prompt and how
// many chunks made it in.
func (u *inferenceUC) assemblePrompt(question string, chunks []model.ScoredChunk) (string, int) {
	var sb strings.Builder
	sb.WriteString("Context passages:\n")

	budget := u.promptBudget
	budget -= u.countTokens(answerSystemPrompt)
	budget -= u.countTokens(question) + 32 // question plus framing

	used := 0
	for _, c := range chunks {
		passage := fmt.Sprintf("\n[%d] %s\n", used+1, c.Text)
		cost := u.countTokens(passage)
		if cost > budget {
			break
		}
		sb.WriteString(passage)
		budget -= cost
		used++
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String(), used
}

func (u *inferenceUC) countTokens(text string) int {
	if u.encoder == nil {
		// Rough heuristic when no encoder is available.
		return len(text) / 4
	}
	return len(u.encoder.Encode(text, nil, nil))
}
