package lending_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraverse/internal/catalog"
	"libraverse/internal/identity"
	"libraverse/internal/ledger"
	"libraverse/internal/lending"
	"libraverse/internal/notify"
	"libraverse/internal/platform/logger"
	"libraverse/internal/storage/memory"
)

// capture records enqueued notifications instead of delivering them.
type capture struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *capture) Enqueue(msg notify.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *capture) all() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.msgs...)
}

type fixture struct {
	store *memory.Store
	svc   lending.Service
	notes *capture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	notes := &capture{}
	return &fixture{
		store: store,
		svc:   lending.NewService(store, notes, logger.NewNop()),
		notes: notes,
	}
}

func (f *fixture) seedUser(t *testing.T, name, role string) *identity.User {
	t.Helper()
	now := time.Now().UTC()
	user := &identity.User{
		ID:        uuid.New(),
		FullName:  name,
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.InsertUser(context.Background(), user))
	return user
}

func (f *fixture) seedBook(t *testing.T, authorID uuid.UUID, copies int, price float64) *catalog.Book {
	t.Helper()
	now := time.Now().UTC()
	book := &catalog.Book{
		ID:              uuid.New(),
		Name:            fmt.Sprintf("Book %s", uuid.NewString()[:8]),
		Description:     "a book",
		Genre:           "fiction",
		AvailableCopies: copies,
		Price:           price,
		AuthorID:        authorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.store.InsertBook(context.Background(), book))
	return book
}

func (f *fixture) copies(t *testing.T, bookID uuid.UUID) int {
	t.Helper()
	book, err := f.store.BookByID(context.Background(), bookID)
	require.NoError(t, err)
	return book.AvailableCopies
}

func (f *fixture) earnings(t *testing.T, userID uuid.UUID) float64 {
	t.Helper()
	user, err := f.store.UserByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Earnings
}

func TestBorrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 1, 10)

	txn, err := f.svc.Borrow(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, reader.ID, txn.UserID)
	assert.Equal(t, book.ID, txn.BookID)
	assert.False(t, txn.Returned)
	assert.Nil(t, txn.ReturnedAt)
	assert.Equal(t, ledger.LoanPeriod, txn.ReturnAt.Sub(txn.IssuedAt))
	assert.Equal(t, 0, f.copies(t, book.ID))

	msgs := f.notes.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindBorrow, msgs[0].Kind)
	assert.Equal(t, reader.Email, msgs[0].UserEmail)
	assert.Equal(t, book.Name, msgs[0].BookName)
	assert.Equal(t, author.FullName, msgs[0].AuthorName)
}

func TestBorrowSameBookTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 5, 10)

	_, err := f.svc.Borrow(ctx, reader.ID, book.ID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, reader.ID, book.ID)
	assert.ErrorIs(t, err, lending.ErrAlreadyBorrowed)
	assert.Equal(t, 4, f.copies(t, book.ID), "failed borrow must not touch stock")
}

func TestBorrowOutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 0, 10)

	_, err := f.svc.Borrow(ctx, reader.ID, book.ID)
	assert.ErrorIs(t, err, lending.ErrOutOfStock)
	assert.Empty(t, f.notes.all())
}

func TestBorrowMissingRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 1, 10)

	_, err := f.svc.Borrow(ctx, uuid.New(), book.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, err = f.svc.Borrow(ctx, reader.ID, uuid.New())
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.Equal(t, 1, f.copies(t, book.ID))
}

func TestReturnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 1, 10)

	borrowed, err := f.svc.Borrow(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, f.copies(t, book.ID))

	returned, err := f.svc.Return(ctx, borrowed.ID)
	require.NoError(t, err)
	assert.True(t, returned.Returned)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, 1, f.copies(t, book.ID))

	_, err = f.svc.Return(ctx, borrowed.ID)
	assert.ErrorIs(t, err, lending.ErrAlreadyReturned)
	assert.Equal(t, 1, f.copies(t, book.ID), "stock must be incremented exactly once")
}

func TestReturnUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Return(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 3, 10)

	txn, err := f.svc.Borrow(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, txn.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, f.copies(t, book.ID))

	msgs := f.notes.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, notify.KindReturn, msgs[1].Kind)
}

func TestBuyCreditsAuthorRegardlessOfStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 1, 100)

	first, err := f.svc.Buy(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Name, first.BookName)
	assert.Equal(t, 100.0, first.Price)
	assert.Equal(t, author.FullName, first.AuthorName)
	assert.Equal(t, 100.0, first.AuthorEarnings)
	assert.Equal(t, 0, f.copies(t, book.ID))

	// Stock is exhausted; the second buy still succeeds and still pays.
	second, err := f.svc.Buy(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, second.AuthorEarnings)
	assert.Equal(t, 0, f.copies(t, book.ID))

	assert.Equal(t, 200.0, f.earnings(t, author.ID))
}

func TestBuyMissingAuthorRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)

	// A book whose author reference points nowhere.
	book := f.seedBook(t, uuid.New(), 2, 50)
	_ = author

	_, err := f.svc.Buy(ctx, reader.ID, book.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.Equal(t, 2, f.copies(t, book.ID), "failed buy must not touch stock")
}

func TestConcurrentBorrowSingleCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	book := f.seedBook(t, author.ID, 1, 10)

	const readers = 20
	users := make([]*identity.User, readers)
	for i := range users {
		users[i] = f.seedUser(t, fmt.Sprintf("Reader Number %d", i), identity.RoleReader)
	}

	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i, user := range users {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.Borrow(ctx, userID, book.ID)
		}(i, user.ID)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, lending.ErrOutOfStock)
	}
	assert.Equal(t, 1, successes, "exactly one concurrent borrow may succeed")
	assert.Equal(t, 0, f.copies(t, book.ID))
}

func TestConcurrentBorrowSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	book := f.seedBook(t, author.ID, 10, 10)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Borrow(ctx, reader.ID, book.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, lending.ErrAlreadyBorrowed)
	}
	assert.Equal(t, 1, successes, "one open loan per user and book")
	assert.Equal(t, 9, f.copies(t, book.ID))
}

func TestListLoans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.seedUser(t, "Jane Austen", identity.RoleAuthor)
	reader := f.seedUser(t, "Avid Reader", identity.RoleReader)
	first := f.seedBook(t, author.ID, 1, 10)
	second := f.seedBook(t, author.ID, 1, 10)

	txn, err := f.svc.Borrow(ctx, reader.ID, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, reader.ID, second.ID)
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, txn.ID)
	require.NoError(t, err)

	open, err := f.svc.ListLoans(ctx, reader.ID, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].BookID)

	closed, err := f.svc.ListLoans(ctx, reader.ID, true)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, first.ID, closed[0].BookID)
}
