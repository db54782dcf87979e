// Package postgres implements the store contracts on PostgreSQL.
//
// Atomicity comes from serializable transactions; the two core invariants
// (non-negative stock, at most one open loan per user/book pair) are
// additionally enforced in the schema itself, so no interleaving of
// concurrent requests can violate them even if a future caller bypasses
// the service-level checks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
	"libraverse/internal/lending"
	"libraverse/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	fullname      TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	role          TEXT NOT NULL,
	earnings      DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (earnings >= 0),
	password_hash TEXT NOT NULL,
	salt          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS books (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	description      TEXT NOT NULL DEFAULT '',
	genre            TEXT NOT NULL,
	available_copies INT NOT NULL CHECK (available_copies >= 0),
	price            DOUBLE PRECISION NOT NULL CHECK (price >= 0),
	author_id        UUID NOT NULL REFERENCES users (id),
	thumbnail_url    TEXT NOT NULL DEFAULT '',
	published_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id          UUID PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES users (id),
	book_id     UUID NOT NULL,
	issued_at   TIMESTAMPTZ NOT NULL,
	return_at   TIMESTAMPTZ NOT NULL,
	returned    BOOLEAN NOT NULL DEFAULT FALSE,
	returned_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS open_loan_per_user_book
	ON transactions (user_id, book_id) WHERE NOT returned;
`

const maxTxRetries = 3

// Store implements catalog.Store, identity.Store and lending.Store on a
// shared *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, unavailable("open database", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return nil, unavailable("ping database", err)
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the tables and invariant indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx runs fn inside a serializable transaction, retrying a bounded
// number of times when the database aborts it with a serialization
// failure. Domain errors returned by fn pass through unchanged and roll
// the transaction back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx lending.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.withinTxOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("transaction retries exhausted: %w", errors.Join(storage.ErrConflict, lastErr))
}

func (s *Store) withinTxOnce(ctx context.Context, fn func(tx lending.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return unavailable("commit transaction", err)
	}
	return nil
}

// pgTx implements lending.Tx on an open transaction.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) UserByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx, userSelect+` WHERE id = $1`, id))
}

func (t *pgTx) BookByID(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	return scanBook(t.tx.QueryRowContext(ctx, bookSelect+` WHERE id = $1`, id))
}

func (t *pgTx) TransactionByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return scanTransaction(t.tx.QueryRowContext(ctx, transactionSelect+` WHERE id = $1`, id))
}

func (t *pgTx) OpenLoanExists(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = $1 AND book_id = $2 AND NOT returned
		)
	`, userID, bookID).Scan(&exists)
	if err != nil {
		return false, unavailable("query open loan", err)
	}
	return exists, nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *ledger.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, book_id, issued_at, return_at, returned, returned_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.ID, txn.UserID, txn.BookID, txn.IssuedAt, txn.ReturnAt, txn.Returned, txn.ReturnedAt, txn.CreatedAt)
	if err != nil {
		// The partial unique index catches a concurrent borrow of the
		// same (user, book) pair that slipped past the existence check.
		if isUniqueViolation(err, "open_loan_per_user_book") {
			return lending.ErrAlreadyBorrowed
		}
		return unavailable("insert transaction", err)
	}
	return nil
}

func (t *pgTx) CloseTransaction(ctx context.Context, id uuid.UUID, returnedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET returned = TRUE, returned_at = $1
		WHERE id = $2 AND NOT returned
	`, returnedAt, id)
	if err != nil {
		return unavailable("close transaction", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("close transaction", err)
	}
	if affected == 0 {
		var exists bool
		if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return unavailable("close transaction", err)
		}
		if !exists {
			return ledger.ErrNotFound
		}
		return lending.ErrAlreadyReturned
	}
	return nil
}

func (t *pgTx) AdjustCopies(ctx context.Context, bookID uuid.UUID, delta int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies + $1, updated_at = NOW()
		WHERE id = $2 AND available_copies + $1 >= 0
	`, delta, bookID)
	if err != nil {
		return unavailable("adjust copies", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("adjust copies", err)
	}
	if affected == 0 {
		var exists bool
		if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
			return unavailable("adjust copies", err)
		}
		if !exists {
			return catalog.ErrNotFound
		}
		return lending.ErrOutOfStock
	}
	return nil
}

func (t *pgTx) CreditEarnings(ctx context.Context, authorID uuid.UUID, amount float64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET earnings = earnings + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, authorID)
	if err != nil {
		return unavailable("credit earnings", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("credit earnings", err)
	}
	if affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(storage.ErrUnavailable, err))
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
	}
	return false
}
