package lending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
	"libraverse/internal/notify"
	"libraverse/internal/platform/logger"
	"libraverse/internal/storage"
)

// service implements the Service interface. All mutations run inside a
// single store transaction; notifications are enqueued only after commit.
type service struct {
	store         Store
	notifications notify.Enqueuer
	log           *logger.Logger
	tracer        trace.Tracer
	operations    metric.Int64Counter
}

// NewService creates a new lending service instance.
func NewService(store Store, notifications notify.Enqueuer, log *logger.Logger) Service {
	operations, _ := otel.Meter("libraverse/lending").Int64Counter("lending.operations",
		metric.WithDescription("Borrow, return and buy calls by outcome."))
	return &service{
		store:         store,
		notifications: notifications,
		log:           log,
		tracer:        otel.Tracer("libraverse/lending"),
		operations:    operations,
	}
}

// Borrow lends a copy of the book to the user: it opens a ledger
// transaction and decrements the book's available copies as one atomic
// unit, then queues a best-effort confirmation.
func (s *service) Borrow(ctx context.Context, userID, bookID uuid.UUID) (txn *ledger.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()
	defer func() { s.record(ctx, span, "borrow", err) }()

	var msg notify.Message
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			return err
		}
		book, err := tx.BookByID(ctx, bookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies < 1 {
			return ErrOutOfStock
		}
		open, err := tx.OpenLoanExists(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if open {
			return ErrAlreadyBorrowed
		}

		txn = ledger.NewTransaction(userID, bookID, time.Now().UTC())
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		if err := tx.AdjustCopies(ctx, bookID, -1); err != nil {
			return err
		}

		authorName := ""
		if author, err := tx.UserByID(ctx, book.AuthorID); err == nil {
			authorName = author.FullName
		} else if !errors.Is(err, identity.ErrNotFound) {
			return err
		}
		msg = notify.Message{
			Kind:       notify.KindBorrow,
			UserName:   user.FullName,
			UserEmail:  user.Email,
			BookName:   book.Name,
			AuthorName: authorName,
			IssuedAt:   txn.IssuedAt,
			ReturnAt:   txn.ReturnAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Enqueue(msg)
	return txn, nil
}

// Return closes the loan exactly once and puts the copy back in stock,
// atomically. A second return of the same transaction fails with
// ErrAlreadyReturned and does not touch the stock again.
func (s *service) Return(ctx context.Context, transactionID uuid.UUID) (txn *ledger.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(attribute.String("transaction.id", transactionID.String())),
	)
	defer span.End()
	defer func() { s.record(ctx, span, "return", err) }()

	var msg notify.Message
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		existing, err := tx.TransactionByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if existing.Returned {
			return ErrAlreadyReturned
		}

		now := time.Now().UTC()
		if err := tx.CloseTransaction(ctx, transactionID, now); err != nil {
			return err
		}
		// The book may have been removed from the catalog while the loan
		// was open; the return still succeeds, there is just no stock to
		// put back.
		bookName := ""
		if err := tx.AdjustCopies(ctx, existing.BookID, 1); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return err
		}
		if book, err := tx.BookByID(ctx, existing.BookID); err == nil {
			bookName = book.Name
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return err
		}

		user, err := tx.UserByID(ctx, existing.UserID)
		if err != nil {
			return err
		}

		existing.Close(now)
		txn = existing
		msg = notify.Message{
			Kind:       notify.KindReturn,
			UserName:   user.FullName,
			UserEmail:  user.Email,
			BookName:   bookName,
			ReturnedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Enqueue(msg)
	return txn, nil
}

// Buy sells the book to the user and credits the owning author's
// earnings by the book's price. The credit happens regardless of stock;
// the copy count is only decremented while there is stock left. A buy is
// conceptually a sale of rights, not a physical checkout, so zero stock
// is not a failure.
func (s *service) Buy(ctx context.Context, userID, bookID uuid.UUID) (purchase *Purchase, err error) {
	ctx, span := s.tracer.Start(ctx, "lending.buy",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()
	defer func() { s.record(ctx, span, "buy", err) }()

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			return err
		}
		book, err := tx.BookByID(ctx, bookID)
		if err != nil {
			return err
		}
		author, err := tx.UserByID(ctx, book.AuthorID)
		if err != nil {
			return err
		}

		if err := tx.CreditEarnings(ctx, book.AuthorID, book.Price); err != nil {
			return err
		}
		if book.AvailableCopies > 0 {
			if err := tx.AdjustCopies(ctx, bookID, -1); err != nil {
				return err
			}
		}

		purchase = &Purchase{
			BookName:       book.Name,
			Price:          book.Price,
			AuthorName:     author.FullName,
			AuthorEarnings: author.Earnings + book.Price,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// ListLoans returns the user's open or closed loans.
func (s *service) ListLoans(ctx context.Context, userID uuid.UUID, returned bool) ([]*ledger.Transaction, error) {
	return s.store.LoansByUser(ctx, userID, returned)
}

func (s *service) record(ctx context.Context, span trace.Span, op string, err error) {
	outcome := outcomeLabel(err)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
	}
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrAlreadyBorrowed):
		return "already_borrowed"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, identity.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrConflict):
		return "store_unavailable"
	default:
		return "error"
	}
}
