package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Imports carry whole collections.
const maxImportBody = 16 << 20

// raterHeader names the rater for POST /prompts/{id}/rating. Without it the
// rating is recorded for the process identity.
const raterHeader = "X-Rater-Id"

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type promptCreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ratingRequest struct {
	Stars *float64 `json:"stars"`
}

type promptListResponse struct {
	Items []promptListItem `json:"items"`
}

type promptListItem struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Badge         string  `json:"badge"`
	Preview       string  `json:"preview"`
	CreatedAt     int64   `json:"createdAt"`
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int     `json:"totalRatings"`
	MyRating      *int    `json:"myRating,omitempty"`
}

type meResponse struct {
	UserID string `json:"userId"`
}

type importResponse struct {
	Added int `json:"added"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, meResponse{UserID: s.prompts.UserID(r.Context())})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	userID := s.prompts.UserID(r.Context())
	snapshot := s.prompts.Snapshot()

	// Newest first; ties keep reverse insertion order.
	items := make([]promptListItem, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		items = append(items, toListItem(snapshot[i], userID))
	}
	s.respondJSON(w, http.StatusOK, promptListResponse{Items: items})
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	prompt, err := s.prompts.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		s.respondStoreError(w, "create prompt", err)
		return
	}

	w.Header().Set("Location", "/prompts/"+prompt.ID)
	s.respondJSON(w, http.StatusCreated, prompt)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.prompts.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	s.respondJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleRatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Stars == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stars is required")
		return
	}

	var err error
	if rater := strings.TrimSpace(r.Header.Get(raterHeader)); rater != "" {
		err = s.prompts.RateAs(r.Context(), id, rater, *req.Stars)
	} else {
		err = s.prompts.Rate(r.Context(), id, *req.Stars)
	}
	if err != nil {
		s.respondStoreError(w, "rate prompt", err)
		return
	}

	prompt, ok := s.prompts.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.prompts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, "delete prompt", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.prompts.Export(r.Context())
	if err != nil {
		s.respondStoreError(w, "export prompts", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="prompts.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unable to read request body")
		return
	}

	added, err := s.prompts.Import(r.Context(), data)
	if err != nil {
		s.respondStoreError(w, "import prompts", err)
		return
	}
	s.respondJSON(w, http.StatusOK, importResponse{Added: added})
}

func toListItem(p domain.Prompt, userID string) promptListItem {
	item := promptListItem{
		ID:            p.ID,
		Title:         p.Title,
		Badge:         domain.Badge(p.Title),
		Preview:       domain.Preview(p.Content),
		CreatedAt:     p.CreatedAt,
		AverageRating: p.AverageRating,
		TotalRatings:  p.TotalRatings,
	}
	if stars, ok := p.RatingBy(userID); ok {
		item.MyRating = &stars
	}
	return item
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrParseFailure):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Body must be a JSON array of prompts")
	case errors.Is(err, domain.ErrInvalidInput):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "))
	case errors.Is(err, domain.ErrStorageUnavailable):
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable or full")
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+op)
	}
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}
