package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraverse/internal/identity"
	"libraverse/internal/storage"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Name            string  `json:"name"`
		Description     string  `json:"description"`
		Genre           string  `json:"genre"`
		AvailableCopies int     `json:"available_copies"`
		Price           float64 `json:"price"`
		ThumbnailURL    string  `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.service.AddBook(r.Context(), actor.UserID, &Book{
		Name:            req.Name,
		Description:     req.Description,
		Genre:           req.Genre,
		AvailableCopies: req.AvailableCopies,
		Price:           req.Price,
		ThumbnailURL:    req.ThumbnailURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.service.UpdateBook(r.Context(), actor.UserID, id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) HandleRemoveBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	if err := h.service.RemoveBook(r.Context(), actor.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeMessage(w, http.StatusBadRequest, "missing search query")
		return
	}

	books, err := h.service.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(books)
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	var (
		books []*Book
		err   error
	)
	if authorStr := r.URL.Query().Get("author"); authorStr != "" {
		authorID, parseErr := uuid.Parse(authorStr)
		if parseErr != nil {
			writeMessage(w, http.StatusBadRequest, "invalid author ID")
			return
		}
		books, err = h.service.ListByAuthor(r.Context(), authorID)
	} else {
		books, err = h.service.ListBooks(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(books)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Book not found")
	case errors.Is(err, ErrDuplicateName):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotOwner):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidBook):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		writeMessage(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
