package lending

import (
	"context"

	"github.com/google/uuid"

	"libraverse/internal/ledger"
)

// Service defines the interface for the lending service.
type Service interface {
	Borrow(ctx context.Context, userID, bookID uuid.UUID) (*ledger.Transaction, error)
	Return(ctx context.Context, transactionID uuid.UUID) (*ledger.Transaction, error)
	Buy(ctx context.Context, userID, bookID uuid.UUID) (*Purchase, error)
	ListLoans(ctx context.Context, userID uuid.UUID, returned bool) ([]*ledger.Transaction, error)
}
