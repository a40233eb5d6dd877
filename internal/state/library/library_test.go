package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/ebook-reader/internal/api"
	"github.com/drallgood/ebook-reader/internal/models"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Books(ctx context.Context, params models.GetBooksParams) (*models.BooksPage, error) {
	args := m.Called(ctx, params)
	page, _ := args.Get(0).(*models.BooksPage)
	return page, args.Error(1)
}

func (m *mockCatalog) Book(ctx context.Context, id string) (*models.Book, error) {
	args := m.Called(ctx, id)
	book, _ := args.Get(0).(*models.Book)
	return book, args.Error(1)
}

func (m *mockCatalog) Categories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]models.Category)
	return categories, args.Error(1)
}

func (m *mockCatalog) Search(ctx context.Context, params models.SearchBooksParams) (*models.BooksPage, error) {
	args := m.Called(ctx, params)
	page, _ := args.Get(0).(*models.BooksPage)
	return page, args.Error(1)
}

func (m *mockCatalog) BooksByCategory(ctx context.Context, categoryID string, params models.GetBooksParams) (*models.BooksPage, error) {
	args := m.Called(ctx, categoryID, params)
	page, _ := args.Get(0).(*models.BooksPage)
	return page, args.Error(1)
}

func (m *mockCatalog) books(args mock.Arguments) ([]models.Book, error) {
	books, _ := args.Get(0).([]models.Book)
	return books, args.Error(1)
}

func (m *mockCatalog) Popular(ctx context.Context, limit int) ([]models.Book, error) {
	return m.books(m.Called(ctx, limit))
}

func (m *mockCatalog) Recent(ctx context.Context, limit int) ([]models.Book, error) {
	return m.books(m.Called(ctx, limit))
}

func (m *mockCatalog) Favorites(ctx context.Context) ([]models.Book, error) {
	return m.books(m.Called(ctx))
}

func (m *mockCatalog) AddFavorite(ctx context.Context, bookID string) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *mockCatalog) RemoveFavorite(ctx context.Context, bookID string) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *mockCatalog) ReadingList(ctx context.Context) ([]models.Book, error) {
	return m.books(m.Called(ctx))
}

func (m *mockCatalog) AddToReadingList(ctx context.Context, bookID string) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *mockCatalog) RemoveFromReadingList(ctx context.Context, bookID string) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *mockCatalog) ReadingProgress(ctx context.Context, bookID string) (*models.ReadingProgress, error) {
	args := m.Called(ctx, bookID)
	progress, _ := args.Get(0).(*models.ReadingProgress)
	return progress, args.Error(1)
}

func (m *mockCatalog) UpdateReadingProgress(ctx context.Context, progress models.ReadingProgress) error {
	return m.Called(ctx, progress).Error(0)
}

func (m *mockCatalog) DownloadURL(ctx context.Context, bookID string) (string, error) {
	args := m.Called(ctx, bookID)
	return args.String(0), args.Error(1)
}

func book(id string) models.Book {
	return models.Book{ID: id, Title: "Book " + id, Format: models.FormatEPUB}
}

func newContainer(t *testing.T) (*Container, *mockCatalog) {
	t.Helper()
	m := &mockCatalog{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return New(m, nil), m
}

func TestNewContainer(t *testing.T) {
	c, _ := newContainer(t)
	snap := c.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.CurrentlyReading)
	assert.Equal(t, models.DefaultPagination(), snap.Pagination)
}

func TestFetchBooks(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	page := 2
	params := models.GetBooksParams{Page: &page}

	m.On("Books", ctx, params).Return(&models.BooksPage{
		Data: []models.Book{book("1"), book("2")},
		Meta: models.PaginationMeta{CurrentPage: 2, TotalPages: 3, TotalItems: 25},
	}, nil).Once()

	var loading []bool
	unsubscribe := c.Subscribe(func(s Snapshot) { loading = append(loading, s.IsLoading) })
	defer unsubscribe()

	require.NoError(t, c.FetchBooks(ctx, params))
	snap := c.Snapshot()
	assert.Len(t, snap.Items, 2)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)
	assert.Equal(t, models.PaginationMeta{CurrentPage: 2, TotalPages: 3, TotalItems: 25, HasNext: true, HasPrevious: true}, snap.Pagination)
	assert.Equal(t, []bool{true, false}, loading)
}

func TestFetchBooksFailureKeepsData(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	params := models.GetBooksParams{}

	m.On("Books", ctx, params).Return(&models.BooksPage{Data: []models.Book{book("1")}}, nil).Once()
	m.On("Books", ctx, params).Return(nil, &api.RequestFailure{Message: "Server down", StatusCode: 503}).Once()

	require.NoError(t, c.FetchBooks(ctx, params))
	err := c.FetchBooks(ctx, params)
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, "Server down", snap.Error)
	assert.False(t, snap.IsLoading)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "1", snap.Items[0].ID)
}

func TestFetchErrorFallback(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Search", ctx, models.SearchBooksParams{Query: "dune"}).Return(nil, errors.New("")).Once()

	require.Error(t, c.SearchBooks(ctx, models.SearchBooksParams{Query: "dune"}))
	assert.Equal(t, SearchFailed, c.Snapshot().Error)
}

// The final items are those of the call that settled last, not the call
// that started last.
func TestFetchBooksLastSettledWins(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	first := models.GetBooksParams{Search: "first"}
	second := models.GetBooksParams{Search: "second"}

	release := make(chan struct{})
	started := make(chan struct{})
	m.On("Books", ctx, first).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(&models.BooksPage{Data: []models.Book{book("old")}}, nil).Once()
	m.On("Books", ctx, second).Return(&models.BooksPage{Data: []models.Book{book("new")}}, nil).Once()

	done := make(chan error)
	go func() { done <- c.FetchBooks(ctx, first) }()
	<-started

	require.NoError(t, c.FetchBooks(ctx, second))
	assert.Equal(t, "new", c.Snapshot().Items[0].ID)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "old", c.Snapshot().Items[0].ID)
	assert.False(t, c.Snapshot().IsLoading)
}

func TestFetchCategories(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Categories", ctx).Return([]models.Category{{ID: "c1", Name: "Fiction"}}, nil).Once()

	require.NoError(t, c.FetchCategories(ctx))
	snap := c.Snapshot()
	require.Len(t, snap.Categories, 1)
	assert.Equal(t, "Fiction", snap.Categories[0].Name)
	assert.False(t, snap.IsLoading)
}

func TestFetchBooksByCategory(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("BooksByCategory", ctx, "c1", models.GetBooksParams{}).Return(&models.BooksPage{
		Data: []models.Book{book("1")},
		Meta: models.PaginationMeta{CurrentPage: 1, TotalPages: 1},
	}, nil).Once()

	require.NoError(t, c.FetchBooksByCategory(ctx, "c1", models.GetBooksParams{}))
	assert.Len(t, c.Snapshot().Items, 1)
	assert.False(t, c.Snapshot().Pagination.HasNext)
}

func TestSearchAndClear(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Search", ctx, models.SearchBooksParams{Query: "go"}).
		Return(&models.BooksPage{Data: []models.Book{book("1"), book("2")}}, nil).Once()

	require.NoError(t, c.SearchBooks(ctx, models.SearchBooksParams{Query: "go"}))
	assert.Len(t, c.Snapshot().SearchResults, 2)
	assert.Empty(t, c.Snapshot().Items)

	c.ClearSearchResults()
	assert.Empty(t, c.Snapshot().SearchResults)
}

func TestFetchListsDeduplicate(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Favorites", ctx).Return([]models.Book{book("1"), book("2"), book("1")}, nil).Once()
	m.On("ReadingList", ctx).Return([]models.Book{book("3"), book("3")}, nil).Once()
	m.On("Popular", ctx, 5).Return([]models.Book{book("p")}, nil).Once()
	m.On("Recent", ctx, 10).Return([]models.Book{book("r")}, nil).Once()

	require.NoError(t, c.FetchFavorites(ctx))
	require.NoError(t, c.FetchReadingList(ctx))
	require.NoError(t, c.FetchPopular(ctx, 5))
	require.NoError(t, c.FetchRecent(ctx, 10))

	snap := c.Snapshot()
	assert.Equal(t, []models.Book{book("1"), book("2")}, snap.Favorites)
	assert.Equal(t, []models.Book{book("3")}, snap.ReadingList)
	assert.Equal(t, []models.Book{book("p")}, snap.Popular)
	assert.Equal(t, []models.Book{book("r")}, snap.Recent)
}

func TestFetchFavoritesFailure(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Favorites", ctx).Return(nil, errors.New("")).Once()

	require.Error(t, c.FetchFavorites(ctx))
	assert.Equal(t, FetchFavoritesFailed, c.Snapshot().Error)
	assert.False(t, c.Snapshot().IsLoading)
}

func TestAddToFavorites(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	b := book("1")
	m.On("AddFavorite", ctx, "1").Return(nil).Twice()
	m.On("Book", ctx, "1").Return(&b, nil).Twice()

	require.NoError(t, c.AddToFavorites(ctx, "1"))
	assert.Equal(t, []models.Book{b}, c.Snapshot().Favorites)

	// Adding again keeps a single entry
	require.NoError(t, c.AddToFavorites(ctx, "1"))
	assert.Len(t, c.Snapshot().Favorites, 1)
}

func TestAddRelationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("add call fails", func(t *testing.T) {
		c, m := newContainer(t)
		m.On("AddFavorite", ctx, "1").Return(&api.RequestFailure{Message: "Not allowed", StatusCode: 403}).Once()

		require.Error(t, c.AddToFavorites(ctx, "1"))
		assert.Empty(t, c.Snapshot().Favorites)
		assert.Equal(t, "Not allowed", c.Snapshot().Error)
		m.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
	})

	t.Run("book fetch fails", func(t *testing.T) {
		c, m := newContainer(t)
		m.On("AddToReadingList", ctx, "1").Return(nil).Once()
		m.On("Book", ctx, "1").Return(nil, errors.New("")).Once()

		require.Error(t, c.AddToReadingList(ctx, "1"))
		assert.Empty(t, c.Snapshot().ReadingList)
		assert.Equal(t, AddReadingListFailed, c.Snapshot().Error)
	})
}

func TestFavoritesRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	existing := []models.Book{book("a"), book("b")}
	x := book("X")
	m.On("Favorites", ctx).Return(existing, nil).Once()
	m.On("AddFavorite", ctx, "X").Return(nil).Once()
	m.On("Book", ctx, "X").Return(&x, nil).Once()
	m.On("RemoveFavorite", ctx, "X").Return(nil).Once()

	require.NoError(t, c.FetchFavorites(ctx))
	require.NoError(t, c.AddToFavorites(ctx, "X"))
	assert.Len(t, c.Snapshot().Favorites, 3)
	require.NoError(t, c.RemoveFromFavorites(ctx, "X"))
	assert.ElementsMatch(t, existing, c.Snapshot().Favorites)
}

func TestRemoveFromFavoritesByID(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Favorites", ctx).Return([]models.Book{book("0"), book("1"), book("2")}, nil).Once()
	m.On("RemoveFavorite", ctx, "1").Return(nil).Once()

	require.NoError(t, c.FetchFavorites(ctx))
	require.NoError(t, c.RemoveFromFavorites(ctx, "1"))
	assert.Equal(t, []models.Book{book("0"), book("2")}, c.Snapshot().Favorites)
}

func TestRemoveFromReadingListFailure(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("ReadingList", ctx).Return([]models.Book{book("1")}, nil).Once()
	m.On("RemoveFromReadingList", ctx, "1").Return(errors.New("boom")).Once()

	require.NoError(t, c.FetchReadingList(ctx))
	require.Error(t, c.RemoveFromReadingList(ctx, "1"))
	assert.Len(t, c.Snapshot().ReadingList, 1)
	assert.Equal(t, "boom", c.Snapshot().Error)
}

func TestUpdateReadingProgress(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	progress := models.ReadingProgress{BookID: "1", CurrentPage: 10, TotalPages: 100}
	m.On("UpdateReadingProgress", ctx, progress).Return(nil).Once()
	m.On("UpdateReadingProgress", ctx, progress).Return(errors.New("")).Once()

	b := book("1")
	c.SetCurrentlyReading(b)

	require.NoError(t, c.UpdateReadingProgress(ctx, progress))
	snap := c.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)
	assert.Equal(t, &b, snap.CurrentlyReading)

	require.Error(t, c.UpdateReadingProgress(ctx, progress))
	assert.Equal(t, UpdateProgressFailed, c.Snapshot().Error)
}

func TestCurrentlyReadingAndClearError(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Categories", ctx).Return(nil, errors.New("offline")).Once()

	c.SetCurrentlyReading(book("1"))
	require.Error(t, c.FetchCategories(ctx))
	assert.Equal(t, "offline", c.Snapshot().Error)

	c.ClearError()
	snap := c.Snapshot()
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.CurrentlyReading)
	assert.Equal(t, "1", snap.CurrentlyReading.ID)

	c.ClearCurrentlyReading()
	assert.Nil(t, c.Snapshot().CurrentlyReading)
}

func TestQueriesDoNotTouchState(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("DownloadURL", ctx, "1").Return("https://cdn.example.com/1.epub", nil).Once()
	m.On("ReadingProgress", ctx, "1").Return(&models.ReadingProgress{BookID: "1", CurrentPage: 5}, nil).Once()

	var published int
	defer c.Subscribe(func(Snapshot) { published++ })()

	url, err := c.DownloadURL(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/1.epub", url)

	progress, err := c.ReadingProgress(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 5, progress.CurrentPage)
	assert.Zero(t, published)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	m.On("Favorites", ctx).Return([]models.Book{book("1")}, nil).Once()
	require.NoError(t, c.FetchFavorites(ctx))

	snap := c.Snapshot()
	snap.Favorites[0].Title = "changed"
	assert.Equal(t, "Book 1", c.Snapshot().Favorites[0].Title)
}

func TestUnsupportedIntent(t *testing.T) {
	c, _ := newContainer(t)
	assert.Error(t, c.Dispatch(context.Background(), nil))
}

func TestConcurrentRelationsKeepSetSemantics(t *testing.T) {
	ctx := context.Background()
	c, m := newContainer(t)
	b := book("1")
	m.On("AddFavorite", ctx, "1").Return(nil).After(time.Millisecond)
	m.On("Book", ctx, "1").Return(&b, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddToFavorites(ctx, "1")
		}()
	}
	wg.Wait()
	assert.Len(t, c.Snapshot().Favorites, 1)
}
