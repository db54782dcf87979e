package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, authorID uuid.UUID, book *Book) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	UpdateBook(ctx context.Context, actorID, bookID uuid.UUID, update Update) (*Book, error)
	RemoveBook(ctx context.Context, actorID, bookID uuid.UUID) error
	Search(ctx context.Context, query string) ([]*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*Book, error)
}
