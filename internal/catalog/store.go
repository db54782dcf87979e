package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence contract for books.
type Store interface {
	InsertBook(ctx context.Context, book *Book) error
	BookByID(ctx context.Context, id uuid.UUID) (*Book, error)
	UpdateBook(ctx context.Context, book *Book) error
	DeleteBook(ctx context.Context, id uuid.UUID) error
	SearchBooks(ctx context.Context, query string) ([]*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	ListBooksByAuthor(ctx context.Context, authorID uuid.UUID) ([]*Book, error)
}
