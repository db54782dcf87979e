package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraverse/internal/catalog"
	"libraverse/internal/storage/memory"
)

func newBook(name string) *catalog.Book {
	return &catalog.Book{
		Name:            name,
		Description:     "a book",
		Genre:           "fiction",
		AvailableCopies: 3,
		Price:           20,
	}
}

func TestAddBook(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	authorID := uuid.New()

	book, err := svc.AddBook(ctx, authorID, newBook("Persuasion"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.Equal(t, authorID, book.AuthorID)
	assert.False(t, book.CreatedAt.IsZero())

	fetched, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persuasion", fetched.Name)
}

func TestAddBookValidation(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	authorID := uuid.New()

	invalid := newBook("")
	_, err := svc.AddBook(ctx, authorID, invalid)
	assert.ErrorIs(t, err, catalog.ErrInvalidBook)

	negative := newBook("Persuasion")
	negative.AvailableCopies = -1
	_, err = svc.AddBook(ctx, authorID, negative)
	assert.ErrorIs(t, err, catalog.ErrInvalidBook)

	priced := newBook("Persuasion")
	priced.Price = -5
	_, err = svc.AddBook(ctx, authorID, priced)
	assert.ErrorIs(t, err, catalog.ErrInvalidBook)
}

func TestAddBookDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	authorID := uuid.New()

	_, err := svc.AddBook(ctx, authorID, newBook("Persuasion"))
	require.NoError(t, err)

	_, err = svc.AddBook(ctx, authorID, newBook("Persuasion"))
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)
}

func TestUpdateBookOwnership(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	authorID := uuid.New()

	book, err := svc.AddBook(ctx, authorID, newBook("Persuasion"))
	require.NoError(t, err)

	price := 35.0
	copies := 7

	_, err = svc.UpdateBook(ctx, uuid.New(), book.ID, catalog.Update{Price: &price})
	assert.ErrorIs(t, err, catalog.ErrNotOwner)

	updated, err := svc.UpdateBook(ctx, authorID, book.ID, catalog.Update{Price: &price, AvailableCopies: &copies})
	require.NoError(t, err)
	assert.Equal(t, 35.0, updated.Price)
	assert.Equal(t, 7, updated.AvailableCopies)
	assert.Equal(t, "Persuasion", updated.Name, "unset fields stay untouched")
}

func TestRemoveBook(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	authorID := uuid.New()

	book, err := svc.AddBook(ctx, authorID, newBook("Persuasion"))
	require.NoError(t, err)

	err = svc.RemoveBook(ctx, uuid.New(), book.ID)
	assert.ErrorIs(t, err, catalog.ErrNotOwner)

	require.NoError(t, svc.RemoveBook(ctx, authorID, book.ID))

	_, err = svc.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	err = svc.RemoveBook(ctx, authorID, book.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	authorID := uuid.New()

	_, err := svc.AddBook(ctx, authorID, newBook("Pride and Prejudice"))
	require.NoError(t, err)
	scifi := newBook("Dune")
	scifi.Genre = "science fiction"
	_, err = svc.AddBook(ctx, authorID, scifi)
	require.NoError(t, err)

	byName, err := svc.Search(ctx, "pride")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Pride and Prejudice", byName[0].Name)

	byGenre, err := svc.Search(ctx, "science")
	require.NoError(t, err)
	require.Len(t, byGenre, 1)
	assert.Equal(t, "Dune", byGenre[0].Name)

	none, err := svc.Search(ctx, "cookbook")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListByAuthor(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.NewStore())
	first := uuid.New()
	second := uuid.New()

	_, err := svc.AddBook(ctx, first, newBook("Persuasion"))
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, second, newBook("Dune"))
	require.NoError(t, err)

	all, err := svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListByAuthor(ctx, first)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Persuasion", mine[0].Name)
}
