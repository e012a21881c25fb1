// File: internal/infra/web/category_handlers.go
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dossier/internal/domain/model"
)

type categoryResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DocumentIDs   []string  `json:"document_ids"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toCategoryResponse(c *model.Category) categoryResponse {
	ids := c.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return categoryResponse{
		ID:            c.ID,
		UserID:        c.UserID,
		Name:          c.Name,
		Description:   c.Description,
		DocumentIDs:   ids,
		DocumentCount: len(ids),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cat, err := s.catUC.Create(r.Context(), req.UserID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(cat))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	cats, err := s.catUC.List(r.Context(), uid, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		items = append(items, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []categoryResponse `json:"items"`
	}{Items: items})
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catUC.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(cat))
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cat, err := s.catUC.Update(r.Context(), userID(r), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(cat))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.catUC.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addCategoryDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cat, err := s.catUC.AddDocuments(r.Context(), userID(r), chi.URLParam(r, "id"), req.DocumentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(cat))
}

func (s *Server) removeCategoryDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cat, err := s.catUC.RemoveDocuments(r.Context(), userID(r), chi.URLParam(r, "id"), req.DocumentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(cat))
}

func (s *Server) listCategoryDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	docs, err := s.catUC.Documents(r.Context(), userID(r), chi.URLParam(r, "id"), offset, limit)
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

type categorySummaryResponse struct {
	Category       categoryResponse   `json:"category"`
	News           string             `json:"news"`
	Representative []documentResponse `json:"representative_documents"`
	TotalDocuments int                `json:"total_documents"`
}

func (s *Server) categorySummary(w http.ResponseWriter, r *http.Request) {
	docLimit, _ := strconv.Atoi(r.URL.Query().Get("doc_limit"))
	news := r.URL.Query().Get("category_news")

	sum, err := s.catUC.Summary(r.Context(), userID(r), chi.URLParam(r, "id"), docLimit, news)
	if err != nil {
		writeError(w, err)
		return
	}
	reps := make([]documentResponse, 0, len(sum.Representative))
	for _, d := range sum.Representative {
		reps = append(reps, toDocumentResponse(d))
	}
	writeJSON(w, http.StatusOK, categorySummaryResponse{
		Category:       toCategoryResponse(sum.Category),
		News:           sum.News,
		Representative: reps,
		TotalDocuments: sum.TotalDocuments,
	})
}
