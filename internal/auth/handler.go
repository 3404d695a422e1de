package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/adaptive-reader/backend/internal/middleware"
	"github.com/adaptive-reader/backend/internal/models"
	"github.com/adaptive-reader/backend/internal/rating"
	"golang.org/x/crypto/bcrypt"
)

var validUsername = regexp.MustCompile(`^[a-z0-9_.-]{3,50}$`)

type Handler struct {
	store  Store
	secret []byte
}

func NewHandler(store Store, secret []byte) *Handler {
	return &Handler{store: store, secret: secret}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Username and password are required"})
		return
	}
	if !validUsername.MatchString(req.Username) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Username must be 3-50 characters of letters, digits, '.', '_' or '-'"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Password must be at least 8 characters"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	reader, err := h.store.CreateReader(r.Context(), req.Username, string(hashedPassword))
	if errors.Is(err, ErrUsernameTaken) {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "That username is already taken"})
		return
	}
	if err != nil {
		log.Printf("[auth] create reader: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create account"})
		return
	}

	h.respondWithToken(w, http.StatusCreated, reader)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Username and password are required"})
		return
	}

	reader, err := h.store.GetByUsername(r.Context(), req.Username)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid username or password"})
		return
	}
	if err != nil {
		log.Printf("[auth] login lookup: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(reader.Password), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid username or password"})
		return
	}

	h.respondWithToken(w, http.StatusOK, reader)
}

// Me returns the authenticated reader with their current reading level.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.ReaderID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	reader, err := h.store.GetByID(r.Context(), readerID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Reader not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reader":        reader,
		"reading_level": rating.ReadingLevel(float64(reader.Rating)),
	})
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, reader *models.Reader) {
	token, err := middleware.GenerateToken(h.secret, reader.ID, reader.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token"})
		return
	}
	writeJSON(w, status, models.AuthResponse{Token: token, Reader: *reader})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
