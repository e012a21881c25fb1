package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"dossier/internal/domain"
	"dossier/internal/domain/model"
)

func TestRetrieveRanksByScoreThenRecency(t *testing.T) {
	older := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	vectors := newFakeVectorStore()
	vectors.results = []model.ScoredChunk{
		{DocumentID: "a", Score: 0.5, IndexedAt: older},
		{DocumentID: "b", Score: 0.9, IndexedAt: older},
		{DocumentID: "c", Score: 0.5, IndexedAt: newer},
	}
	uc := NewRetrievalUseCase(&fakeEmbedder{dim: 4}, vectors)

	chunks, err := uc.Retrieve(context.Background(), "u1", "what is this", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	got := []string{chunks[0].DocumentID, chunks[1].DocumentID, chunks[2].DocumentID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", got, want)
		}
	}
}

func TestRetrievePassesUserFilter(t *testing.T) {
	vectors := newFakeVectorStore()
	uc := NewRetrievalUseCase(&fakeEmbedder{dim: 4}, vectors)

	if _, err := uc.Retrieve(context.Background(), "u42", "q", 3); err != nil {
		t.Fatal(err)
	}
	if len(vectors.ops) != 1 || vectors.ops[0] != "search:u42" {
		t.Errorf("ops = %v", vectors.ops)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	uc := NewRetrievalUseCase(&fakeEmbedder{dim: 4}, newFakeVectorStore())
	if _, err := uc.Retrieve(context.Background(), "u1", "   ", 5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRetrieveDimensionMismatchFailsFast(t *testing.T) {
	// Embedder claims 8 dims but produces 4.
	embedder := &mismatchedEmbedder{fakeEmbedder{dim: 4}}
	vectors := newFakeVectorStore()
	uc := NewRetrievalUseCase(embedder, vectors)

	_, err := uc.Retrieve(context.Background(), "u1", "q", 5)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if len(vectors.ops) != 0 {
		t.Error("mismatch must fail before the search call")
	}
}

type mismatchedEmbedder struct{ fakeEmbedder }

func (m *mismatchedEmbedder) Dimension() int { return 8 }

func TestRetrieveEmbedError(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4, embedErr: domain.ErrEmbedFailed}
	uc := NewRetrievalUseCase(embedder, newFakeVectorStore())
	if _, err := uc.Retrieve(context.Background(), "u1", "q", 5); !errors.Is(err, domain.ErrEmbedFailed) {
		t.Errorf("expected ErrEmbedFailed, got %v", err)
	}
}
