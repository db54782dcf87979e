// Package ledger owns the loan transaction records and their lifecycle.
// A transaction is created by a successful borrow, closed exactly once by
// a return, and otherwise immutable.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// LoanPeriod is the fixed window between issuance and due date.
const LoanPeriod = 15 * 24 * time.Hour

// Transaction is one ledger entry for a borrowed book. It is open while
// Returned is false; at most one open entry exists per (user, book) pair.
type Transaction struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	BookID     uuid.UUID  `json:"book_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	ReturnAt   time.Time  `json:"return_at"`
	Returned   bool       `json:"returned"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewTransaction opens a loan issued at the given time, due after the
// fixed loan period.
func NewTransaction(userID, bookID uuid.UUID, issuedAt time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		BookID:    bookID,
		IssuedAt:  issuedAt,
		ReturnAt:  issuedAt.Add(LoanPeriod),
		Returned:  false,
		CreatedAt: issuedAt,
	}
}

// Close marks the loan returned at the given time.
func (t *Transaction) Close(at time.Time) {
	t.Returned = true
	t.ReturnedAt = &at
}
