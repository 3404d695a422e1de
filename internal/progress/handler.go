package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/adaptive-reader/backend/internal/middleware"
	"github.com/adaptive-reader/backend/internal/models"
	"github.com/gorilla/mux"
)

const defaultHistoryDays = 30

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes registers progress endpoints on the protected subrouter.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/progress/history", h.GetHistory).Methods("GET")
	protected.HandleFunc("/progress/rating", h.GetSummary).Methods("GET")
	protected.HandleFunc("/progress/export.xlsx", h.ExportHistory).Methods("GET")
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	days, ok := daysParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "days must be a positive integer"})
		return
	}

	records, err := h.ledger.History(r.Context(), readerID, days)
	if err != nil {
		log.Printf("[progress] GetHistory error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get progress history"})
		return
	}
	if records == nil {
		records = []models.ProgressRecord{}
	}

	writeJSON(w, http.StatusOK, models.HistoryResponse{Days: days, Records: records})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	summary, err := h.ledger.Summary(r.Context(), readerID)
	if errors.Is(err, ErrReaderNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Reader not found"})
		return
	}
	if err != nil {
		log.Printf("[progress] GetSummary error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get rating"})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	days, ok := daysParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "days must be a positive integer"})
		return
	}

	records, err := h.ledger.History(r.Context(), readerID, days)
	if err != nil {
		log.Printf("[progress] ExportHistory error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get progress history"})
		return
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, records); err != nil {
		log.Printf("[progress] ExportHistory render error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to render export"})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="progress-%dd.xlsx"`, days))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func daysParam(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return defaultHistoryDays, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
