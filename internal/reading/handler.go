package reading

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/adaptive-reader/backend/internal/adaptive"
	"github.com/adaptive-reader/backend/internal/chunker"
	"github.com/adaptive-reader/backend/internal/middleware"
	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/progress"
	"github.com/adaptive-reader/backend/internal/session"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 2 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers reading endpoints on the protected subrouter.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/sessions", h.StartSession).Methods("POST")
	protected.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	protected.HandleFunc("/sessions/{id}/reset", h.ResetSession).Methods("POST")
	protected.HandleFunc("/sessions/{id}/questions", h.GetQuestions).Methods("GET")
	protected.HandleFunc("/sessions/{id}/answers", h.SubmitAnswers).Methods("POST")
	protected.HandleFunc("/sessions/{id}/hint", h.SessionHint).Methods("POST")
	protected.HandleFunc("/hint", h.Hint).Methods("POST")
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.StartSessionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "text or url is required"})
		return
	}

	resp, err := h.service.StartSession(r.Context(), readerID, req)
	if err != nil {
		writeError(w, "StartSession", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.GetSession(r.Context(), readerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "GetSession", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.ResetSession(r.Context(), readerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "ResetSession", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.Questions(r.Context(), readerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "GetQuestions", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.SubmitAnswersRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitAnswers(r.Context(), readerID, mux.Vars(r)["id"], req.Answers)
	if err != nil {
		writeError(w, "SubmitAnswers", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SessionHint(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	hint, err := h.service.HintForSession(r.Context(), readerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "SessionHint", err)
		return
	}
	writeJSON(w, http.StatusOK, models.HintResponse{Hint: hint})
}

func (h *Handler) Hint(w http.ResponseWriter, r *http.Request) {
	var req models.HintRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "text is required"})
		return
	}
	writeJSON(w, http.StatusOK, models.HintResponse{Hint: h.service.Hint(r.Context(), req.Text)})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	var persistErr *progress.PersistenceError
	var chunkErr *chunker.ChunkingError

	switch {
	case errors.Is(err, adaptive.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrUnreadableURL):
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Could not read text from that URL"})
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Session not found"})
	case errors.Is(err, progress.ErrReaderNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Reader not found"})
	case errors.Is(err, session.ErrCompleted):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Session is already complete"})
	case errors.As(err, &persistErr):
		log.Printf("[reading] %s persistence error: %v", op, err)
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "Your rating could not be saved. Please submit again."})
	case errors.As(err, &chunkErr):
		log.Printf("[reading] %s chunking error: %v", op, err)
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Failed to split text into chunks"})
	default:
		log.Printf("[reading] %s error: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
