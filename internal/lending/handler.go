package lending

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
	"libraverse/internal/storage"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		BookID uuid.UUID `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		if principal, ok := identity.FromContext(r.Context()); ok {
			req.UserID = principal.UserID
		}
	}
	if req.UserID == uuid.Nil || req.BookID == uuid.Nil {
		writeMessage(w, http.StatusBadRequest, "user_id and book_id are required")
		return
	}

	txn, err := h.service.Borrow(r.Context(), req.UserID, req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		Message     string              `json:"message"`
		Transaction *ledger.Transaction `json:"transaction"`
	}{Message: "Book borrowed successfully", Transaction: txn})
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID uuid.UUID `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TransactionID == uuid.Nil {
		writeMessage(w, http.StatusBadRequest, "transaction_id is required")
		return
	}

	txn, err := h.service.Return(r.Context(), req.TransactionID)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(struct {
		Message     string              `json:"message"`
		Transaction *ledger.Transaction `json:"transaction"`
	}{Message: "Book returned successfully", Transaction: txn})
}

func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		BookID uuid.UUID `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		if principal, ok := identity.FromContext(r.Context()); ok {
			req.UserID = principal.UserID
		}
	}
	if req.UserID == uuid.Nil || req.BookID == uuid.Nil {
		writeMessage(w, http.StatusBadRequest, "user_id and book_id are required")
		return
	}

	purchase, err := h.service.Buy(r.Context(), req.UserID, req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(struct {
		Message  string    `json:"message"`
		Purchase *Purchase `json:"purchase"`
	}{Message: "Book purchased successfully", Purchase: purchase})
}

func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	returned := r.URL.Query().Get("returned") == "true"
	loans, err := h.service.ListLoans(r.Context(), principal.UserID, returned)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
	case errors.Is(err, catalog.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Book not found")
	case errors.Is(err, ledger.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, ErrOutOfStock):
		writeMessage(w, http.StatusBadRequest, "No copies available")
	case errors.Is(err, ErrAlreadyBorrowed):
		writeMessage(w, http.StatusConflict, "You already borrowed this book.")
	case errors.Is(err, ErrAlreadyReturned):
		writeMessage(w, http.StatusBadRequest, "Book already returned")
	case errors.Is(err, ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrConflict):
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
