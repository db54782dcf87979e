package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface.
type service struct {
	store Store
}

// NewService creates a new catalog service instance.
func NewService(store Store) Service {
	return &service{store: store}
}

// AddBook creates a new book owned by the given author.
func (s *service) AddBook(ctx context.Context, authorID uuid.UUID, book *Book) (*Book, error) {
	book.ID = uuid.New()
	book.AuthorID = authorID
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	if err := book.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.InsertBook(ctx, book); err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.store.BookByID(ctx, id)
}

// UpdateBook applies the non-nil fields of update to the book. Only the
// owning author may update a book.
func (s *service) UpdateBook(ctx context.Context, actorID, bookID uuid.UUID, update Update) (*Book, error) {
	book, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.AuthorID != actorID {
		return nil, ErrNotOwner
	}

	if update.Name != nil {
		book.Name = *update.Name
	}
	if update.Description != nil {
		book.Description = *update.Description
	}
	if update.Genre != nil {
		book.Genre = *update.Genre
	}
	if update.AvailableCopies != nil {
		book.AvailableCopies = *update.AvailableCopies
	}
	if update.Price != nil {
		book.Price = *update.Price
	}
	if update.ThumbnailURL != nil {
		book.ThumbnailURL = *update.ThumbnailURL
	}
	book.UpdatedAt = time.Now().UTC()

	if err := book.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// RemoveBook deletes a book. Only the owning author may remove it.
func (s *service) RemoveBook(ctx context.Context, actorID, bookID uuid.UUID) error {
	book, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return err
	}
	if book.AuthorID != actorID {
		return ErrNotOwner
	}
	return s.store.DeleteBook(ctx, bookID)
}

// Search finds books whose name or genre matches the query.
func (s *service) Search(ctx context.Context, query string) ([]*Book, error) {
	return s.store.SearchBooks(ctx, query)
}

// ListBooks returns the whole catalog.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.store.ListBooks(ctx)
}

// ListByAuthor returns the books owned by the given author.
func (s *service) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*Book, error) {
	return s.store.ListBooksByAuthor(ctx, authorID)
}
