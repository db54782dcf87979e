package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
)

const (
	userSelect = `SELECT id, fullname, email, role, earnings, password_hash, salt, created_at, updated_at FROM users`
	bookSelect = `SELECT id, name, description, genre, available_copies, price, author_id, thumbnail_url, published_at, created_at, updated_at FROM books`

	transactionSelect = `SELECT id, user_id, book_id, issued_at, return_at, returned, returned_at, created_at FROM transactions`
)

// InsertUser stores a new user.
func (s *Store) InsertUser(ctx context.Context, user *identity.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, fullname, email, role, earnings, password_hash, salt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.FullName, user.Email, user.Role, user.Earnings, user.PasswordHash, user.Salt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return identity.ErrDuplicateEmail
		}
		return unavailable("insert user", err)
	}
	return nil
}

// UserByID retrieves a user by ID.
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE id = $1`, id))
}

// UserByEmail retrieves a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE email = $1`, email))
}

// ListUsers returns all users ordered by registration time.
func (s *Store) ListUsers(ctx context.Context) ([]*identity.User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list users", err)
	}
	return users, nil
}

// InsertBook stores a new book.
func (s *Store) InsertBook(ctx context.Context, book *catalog.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, name, description, genre, available_copies, price, author_id, thumbnail_url, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, book.ID, book.Name, book.Description, book.Genre, book.AvailableCopies, book.Price, book.AuthorID, book.ThumbnailURL, book.PublishedAt, book.CreatedAt, book.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "books_name_key") {
			return catalog.ErrDuplicateName
		}
		return unavailable("insert book", err)
	}
	return nil
}

// BookByID retrieves a book by ID.
func (s *Store) BookByID(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	return scanBook(s.db.QueryRowContext(ctx, bookSelect+` WHERE id = $1`, id))
}

// UpdateBook overwrites the updatable fields of a book.
func (s *Store) UpdateBook(ctx context.Context, book *catalog.Book) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET name = $1, description = $2, genre = $3, available_copies = $4,
		    price = $5, thumbnail_url = $6, updated_at = $7
		WHERE id = $8
	`, book.Name, book.Description, book.Genre, book.AvailableCopies, book.Price, book.ThumbnailURL, book.UpdatedAt, book.ID)
	if err != nil {
		if isUniqueViolation(err, "books_name_key") {
			return catalog.ErrDuplicateName
		}
		return unavailable("update book", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("update book", err)
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// DeleteBook removes a book from the catalog.
func (s *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete book", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete book", err)
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// SearchBooks finds books whose name or genre contains the query.
func (s *Store) SearchBooks(ctx context.Context, query string) ([]*catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		bookSelect+` WHERE name ILIKE '%' || $1 || '%' OR genre ILIKE '%' || $1 || '%' ORDER BY name LIMIT 50`,
		query)
	if err != nil {
		return nil, unavailable("search books", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListBooks returns the whole catalog.
func (s *Store) ListBooks(ctx context.Context) ([]*catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, bookSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, unavailable("list books", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListBooksByAuthor returns the books owned by the given author.
func (s *Store) ListBooksByAuthor(ctx context.Context, authorID uuid.UUID) ([]*catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, bookSelect+` WHERE author_id = $1 ORDER BY created_at`, authorID)
	if err != nil {
		return nil, unavailable("list books by author", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// LoansByUser returns the user's loans filtered by returned state.
func (s *Store) LoansByUser(ctx context.Context, userID uuid.UUID, returned bool) ([]*ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		transactionSelect+` WHERE user_id = $1 AND returned = $2 ORDER BY issued_at DESC`,
		userID, returned)
	if err != nil {
		return nil, unavailable("list loans", err)
	}
	defer rows.Close()

	var loans []*ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list loans", err)
	}
	return loans, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*identity.User, error) {
	user := &identity.User{}
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Role,
		&user.Earnings,
		&user.PasswordHash,
		&user.Salt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, unavailable("scan user", err)
	}
	return user, nil
}

func scanBook(row scanner) (*catalog.Book, error) {
	book := &catalog.Book{}
	err := row.Scan(
		&book.ID,
		&book.Name,
		&book.Description,
		&book.Genre,
		&book.AvailableCopies,
		&book.Price,
		&book.AuthorID,
		&book.ThumbnailURL,
		&book.PublishedAt,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, unavailable("scan book", err)
	}
	return book, nil
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	txn := &ledger.Transaction{}
	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.BookID,
		&txn.IssuedAt,
		&txn.ReturnAt,
		&txn.Returned,
		&txn.ReturnedAt,
		&txn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, unavailable("scan transaction", err)
	}
	return txn, nil
}

func collectBooks(rows *sql.Rows) ([]*catalog.Book, error) {
	var books []*catalog.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("collect books", err)
	}
	return books, nil
}
