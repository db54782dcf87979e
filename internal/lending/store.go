package lending

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
)

// Store is the transactional boundary the lending service runs on. The
// engine guarantees that everything done inside fn commits atomically or
// not at all, and that concurrent transactions touching the same records
// behave as if serialized.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	LoansByUser(ctx context.Context, userID uuid.UUID, returned bool) ([]*ledger.Transaction, error)
}

// Tx exposes the record operations available inside a transaction.
type Tx interface {
	UserByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	BookByID(ctx context.Context, id uuid.UUID) (*catalog.Book, error)
	TransactionByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)

	// OpenLoanExists reports whether an open (not yet returned) loan
	// exists for the (user, book) pair.
	OpenLoanExists(ctx context.Context, userID, bookID uuid.UUID) (bool, error)

	InsertTransaction(ctx context.Context, txn *ledger.Transaction) error

	// CloseTransaction flips the returned flag and stamps returnedAt. It
	// fails with ledger.ErrNotFound if the transaction is missing and
	// ErrAlreadyReturned if it was already closed.
	CloseTransaction(ctx context.Context, id uuid.UUID, returnedAt time.Time) error

	// AdjustCopies adds delta to the book's available copies. It fails
	// with ErrOutOfStock if the result would be negative, leaving the
	// count untouched.
	AdjustCopies(ctx context.Context, bookID uuid.UUID, delta int) error

	// CreditEarnings adds amount to the author's earnings balance.
	CreditEarnings(ctx context.Context, authorID uuid.UUID, amount float64) error
}
