// Package memory implements the store contracts in process memory. It
// backs the unit and property tests and the STORAGE=memory development
// mode. A store-wide mutex makes every transaction serializable; writes
// are staged on copies and merged only when the transaction function
// succeeds, so a failing operation leaves no partial mutation behind.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
	"libraverse/internal/lending"
)

// Store implements catalog.Store, identity.Store and lending.Store.
type Store struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*identity.User
	books        map[uuid.UUID]*catalog.Book
	transactions map[uuid.UUID]*ledger.Transaction
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*identity.User),
		books:        make(map[uuid.UUID]*catalog.Book),
		transactions: make(map[uuid.UUID]*ledger.Transaction),
	}
}

// WithinTx runs fn while holding the store lock. Staged writes are
// merged on success and discarded on error.
func (s *Store) WithinTx(ctx context.Context, fn func(tx lending.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store: s,
		users: make(map[uuid.UUID]*identity.User),
		books: make(map[uuid.UUID]*catalog.Book),
		txns:  make(map[uuid.UUID]*ledger.Transaction),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, user := range tx.users {
		s.users[id] = user
	}
	for id, book := range tx.books {
		s.books[id] = book
	}
	for id, txn := range tx.txns {
		s.transactions[id] = txn
	}
	return nil
}

// memTx stages mutations on copies of the records it touches.
type memTx struct {
	store *Store
	users map[uuid.UUID]*identity.User
	books map[uuid.UUID]*catalog.Book
	txns  map[uuid.UUID]*ledger.Transaction
}

func (t *memTx) userFor(id uuid.UUID) (*identity.User, bool) {
	if user, ok := t.users[id]; ok {
		return user, true
	}
	user, ok := t.store.users[id]
	if !ok {
		return nil, false
	}
	clone := *user
	t.users[id] = &clone
	return &clone, true
}

func (t *memTx) bookFor(id uuid.UUID) (*catalog.Book, bool) {
	if book, ok := t.books[id]; ok {
		return book, true
	}
	book, ok := t.store.books[id]
	if !ok {
		return nil, false
	}
	clone := *book
	t.books[id] = &clone
	return &clone, true
}

func (t *memTx) txnFor(id uuid.UUID) (*ledger.Transaction, bool) {
	if txn, ok := t.txns[id]; ok {
		return txn, true
	}
	txn, ok := t.store.transactions[id]
	if !ok {
		return nil, false
	}
	clone := *txn
	t.txns[id] = &clone
	return &clone, true
}

func (t *memTx) UserByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	user, ok := t.userFor(id)
	if !ok {
		return nil, identity.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (t *memTx) BookByID(_ context.Context, id uuid.UUID) (*catalog.Book, error) {
	book, ok := t.bookFor(id)
	if !ok {
		return nil, catalog.ErrNotFound
	}
	copied := *book
	return &copied, nil
}

func (t *memTx) TransactionByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	txn, ok := t.txnFor(id)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	copied := *txn
	return &copied, nil
}

func (t *memTx) OpenLoanExists(_ context.Context, userID, bookID uuid.UUID) (bool, error) {
	for _, txn := range t.txns {
		if txn.UserID == userID && txn.BookID == bookID && !txn.Returned {
			return true, nil
		}
	}
	for id, txn := range t.store.transactions {
		if _, staged := t.txns[id]; staged {
			continue
		}
		if txn.UserID == userID && txn.BookID == bookID && !txn.Returned {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertTransaction(ctx context.Context, txn *ledger.Transaction) error {
	open, err := t.OpenLoanExists(ctx, txn.UserID, txn.BookID)
	if err != nil {
		return err
	}
	if open {
		return lending.ErrAlreadyBorrowed
	}
	copied := *txn
	t.txns[txn.ID] = &copied
	return nil
}

func (t *memTx) CloseTransaction(_ context.Context, id uuid.UUID, returnedAt time.Time) error {
	txn, ok := t.txnFor(id)
	if !ok {
		return ledger.ErrNotFound
	}
	if txn.Returned {
		return lending.ErrAlreadyReturned
	}
	txn.Close(returnedAt)
	return nil
}

func (t *memTx) AdjustCopies(_ context.Context, bookID uuid.UUID, delta int) error {
	book, ok := t.bookFor(bookID)
	if !ok {
		return catalog.ErrNotFound
	}
	if book.AvailableCopies+delta < 0 {
		return lending.ErrOutOfStock
	}
	book.AvailableCopies += delta
	book.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) CreditEarnings(_ context.Context, authorID uuid.UUID, amount float64) error {
	user, ok := t.userFor(authorID)
	if !ok {
		return identity.ErrNotFound
	}
	user.Earnings += amount
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// --- identity.Store ---

func (s *Store) InsertUser(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return identity.ErrDuplicateEmail
		}
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*identity.User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// --- catalog.Store ---

func (s *Store) InsertBook(_ context.Context, book *catalog.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.books {
		if strings.EqualFold(existing.Name, book.Name) {
			return catalog.ErrDuplicateName
		}
	}
	copied := *book
	s.books[book.ID] = &copied
	return nil
}

func (s *Store) BookByID(_ context.Context, id uuid.UUID) (*catalog.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	copied := *book
	return &copied, nil
}

func (s *Store) UpdateBook(_ context.Context, book *catalog.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[book.ID]; !ok {
		return catalog.ErrNotFound
	}
	for id, existing := range s.books {
		if id != book.ID && strings.EqualFold(existing.Name, book.Name) {
			return catalog.ErrDuplicateName
		}
	}
	copied := *book
	s.books[book.ID] = &copied
	return nil
}

func (s *Store) DeleteBook(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *Store) SearchBooks(_ context.Context, query string) ([]*catalog.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(query)
	var books []*catalog.Book
	for _, book := range s.books {
		if strings.Contains(strings.ToLower(book.Name), needle) ||
			strings.Contains(strings.ToLower(book.Genre), needle) {
			copied := *book
			books = append(books, &copied)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Name < books[j].Name })
	return books, nil
}

func (s *Store) ListBooks(_ context.Context) ([]*catalog.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectBooks(func(*catalog.Book) bool { return true }), nil
}

func (s *Store) ListBooksByAuthor(_ context.Context, authorID uuid.UUID) ([]*catalog.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectBooks(func(b *catalog.Book) bool { return b.AuthorID == authorID }), nil
}

func (s *Store) collectBooks(keep func(*catalog.Book) bool) []*catalog.Book {
	var books []*catalog.Book
	for _, book := range s.books {
		if keep(book) {
			copied := *book
			books = append(books, &copied)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].CreatedAt.Before(books[j].CreatedAt) })
	return books
}

// --- lending.Store reads ---

func (s *Store) LoansByUser(_ context.Context, userID uuid.UUID, returned bool) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var loans []*ledger.Transaction
	for _, txn := range s.transactions {
		if txn.UserID == userID && txn.Returned == returned {
			copied := *txn
			loans = append(loans, &copied)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].IssuedAt.After(loans[j].IssuedAt) })
	return loans, nil
}
