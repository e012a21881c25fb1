// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
)

type documentResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	URL        string     `json:"url"`
	Title      string     `json:"title,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Status     string     `json:"status"`
	Retries    int        `json:"retries"`
	LastError  string     `json:"last_error,omitempty"`
	ChunkCount int        `json:"chunk_count"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toDocumentResponse(d *model.Document) documentResponse {
	resp := documentResponse{
		ID:         d.ID,
		UserID:     d.UserID,
		URL:        d.URL,
		Title:      d.Title,
		Summary:    d.Summary,
		Status:     string(d.Status),
		Retries:    d.Retries,
		LastError:  d.LastError,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if !d.IndexedAt.IsZero() {
		at := d.IndexedAt
		resp.IndexedAt = &at
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "already exists", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// userID reads the caller's user id from the query string or, for writes,
// the request body. No auth layer in v1; identity is caller-asserted.
func userID(r *http.Request) string {
	return r.URL.Query().Get("user_id")
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		URL    string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, created, err := s.docUC.Submit(r.Context(), req.UserID, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	// 201 for a fresh submission, 200 when the (user, url) pair already
	// had a document.
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toDocumentResponse(doc))
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	docs, err := s.docUC.List(r.Context(), uid, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []documentResponse `json:"items"`
	}{Items: items})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docUC.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docUC.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resubmitDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docUC.Resubmit(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

type scoredChunkResponse struct {
	DocumentID string  `json:"document_id"`
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Query  string `json:"query"`
		TopK   int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	chunks, err := s.retrievalUC.Retrieve(r.Context(), req.UserID, req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]scoredChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, scoredChunkResponse{
			DocumentID: c.DocumentID,
			Index:      c.Index,
			Text:       c.Text,
			Score:      c.Score,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Query   string                `json:"query"`
		Results []scoredChunkResponse `json:"results"`
	}{Query: req.Query, Results: items})
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stream, err := s.inferenceUC.Answer(r.Context(), req.UserID, req.Question, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()
	s.streamSSE(w, stream)
}

func (s *Server) summarizeDocument(w http.ResponseWriter, r *http.Request) {
	stream, err := s.inferenceUC.Summarize(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()
	s.streamSSE(w, stream)
}

// streamSSE relays completion fragments as server-sent events. A terminal
// stream error becomes an explicit `event: error` so clients can tell an
// aborted answer from a finished one.
func (s *Server) streamSSE(w http.ResponseWriter, stream adapter.CompletionStream) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			fmt.Fprint(w, "event: done\ndata: \n\n")
			flush()
			return
		}
		if err != nil {
			s.log.Error().Err(err).Msg("completion stream aborted")
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", sseEscape(err.Error()))
			flush()
			return
		}
		b, _ := json.Marshal(struct {
			Content string `json:"content"`
		}{Content: frag})
		fmt.Fprintf(w, "data: %s\n\n", b)
		flush()
	}
}

func sseEscape(msg string) string {
	b, _ := json.Marshal(msg)
	return string(b)
}
