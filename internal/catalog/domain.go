package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested book does not exist.
	ErrNotFound = errors.New("book not found")
	// ErrDuplicateName indicates a book with the same name already exists.
	ErrDuplicateName = errors.New("book name already taken")
	// ErrNotOwner indicates the caller is not the author of the book.
	ErrNotOwner = errors.New("not the owner of this book")
	// ErrInvalidBook indicates the book fails validation.
	ErrInvalidBook = errors.New("invalid book")
)

// Book represents a title in the catalog. AvailableCopies is mutated only
// through the lending service's atomic operations and never goes negative.
type Book struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Genre           string     `json:"genre"`
	AvailableCopies int        `json:"available_copies"`
	Price           float64    `json:"price"`
	AuthorID        uuid.UUID  `json:"author_id"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate checks the fields a client controls.
func (b *Book) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.Join(ErrInvalidBook, errors.New("name is required"))
	}
	if strings.TrimSpace(b.Genre) == "" {
		return errors.Join(ErrInvalidBook, errors.New("genre is required"))
	}
	if b.AvailableCopies < 0 {
		return errors.Join(ErrInvalidBook, errors.New("available copies must not be negative"))
	}
	if b.Price < 0 {
		return errors.Join(ErrInvalidBook, errors.New("price must not be negative"))
	}
	return nil
}

// Update carries the partially updatable fields of a book. Nil means
// leave the field unchanged.
type Update struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Genre           *string  `json:"genre,omitempty"`
	AvailableCopies *int     `json:"available_copies,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	ThumbnailURL    *string  `json:"thumbnail_url,omitempty"`
}
