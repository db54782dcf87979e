package lending

import "errors"

var (
	// ErrOutOfStock indicates a borrow was requested with zero inventory.
	ErrOutOfStock = errors.New("no copies available")
	// ErrAlreadyBorrowed indicates the user already holds an open loan for
	// the book.
	ErrAlreadyBorrowed = errors.New("book already borrowed")
	// ErrAlreadyReturned indicates a second return attempt on the same
	// transaction.
	ErrAlreadyReturned = errors.New("book already returned")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)

// Purchase summarizes a completed buy operation.
type Purchase struct {
	BookName       string  `json:"book_name"`
	Price          float64 `json:"price"`
	AuthorName     string  `json:"author_name"`
	AuthorEarnings float64 `json:"author_earnings"`
}
