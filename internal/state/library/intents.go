package library

import (
	"context"
	"fmt"

	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state"
)

// Intent is one of the operations the catalog accepts
type Intent interface {
	libraryIntent()
}

type (
	FetchBooks           struct{ Params models.GetBooksParams }
	FetchCategories      struct{}
	SearchBooks          struct{ Params models.SearchBooksParams }
	FetchBooksByCategory struct {
		CategoryID string
		Params     models.GetBooksParams
	}
	FetchFavorites        struct{}
	FetchReadingList      struct{}
	FetchPopular          struct{ Limit int }
	FetchRecent           struct{ Limit int }
	AddToFavorites        struct{ BookID string }
	RemoveFromFavorites   struct{ BookID string }
	AddToReadingList      struct{ BookID string }
	RemoveFromReadingList struct{ BookID string }
	// UpdateReadingProgress only records success or failure; the progress
	// itself is not kept in the snapshot.
	UpdateReadingProgress struct{ Progress models.ReadingProgress }
	ClearSearchResults    struct{}
	ClearError            struct{}
	SetCurrentlyReading   struct{ Book models.Book }
	ClearCurrentlyReading struct{}
)

func (FetchBooks) libraryIntent()            {}
func (FetchCategories) libraryIntent()       {}
func (SearchBooks) libraryIntent()           {}
func (FetchBooksByCategory) libraryIntent()  {}
func (FetchFavorites) libraryIntent()        {}
func (FetchReadingList) libraryIntent()      {}
func (FetchPopular) libraryIntent()          {}
func (FetchRecent) libraryIntent()           {}
func (AddToFavorites) libraryIntent()        {}
func (RemoveFromFavorites) libraryIntent()   {}
func (AddToReadingList) libraryIntent()      {}
func (RemoveFromReadingList) libraryIntent() {}
func (UpdateReadingProgress) libraryIntent() {}
func (ClearSearchResults) libraryIntent()    {}
func (ClearError) libraryIntent()            {}
func (SetCurrentlyReading) libraryIntent()   {}
func (ClearCurrentlyReading) libraryIntent() {}

// list selects one of the two user book lists
type list int

const (
	favorites list = iota
	readingList
)

func (l list) of(s *Snapshot) *[]models.Book {
	if l == favorites {
		return &s.Favorites
	}
	return &s.ReadingList
}

// Dispatch runs intent to completion. The snapshot is already updated when
// Dispatch returns; the error is informational.
func (c *Container) Dispatch(ctx context.Context, intent Intent) error {
	switch in := intent.(type) {
	case FetchBooks:
		return c.fetchPage(ctx, "fetchBooks", FetchBooksFailed, func(ctx context.Context) (*models.BooksPage, error) {
			return c.catalog.Books(ctx, in.Params)
		}, func(s *Snapshot, page *models.BooksPage) {
			s.Items = page.Data
			s.Pagination = page.Meta.Normalize()
		})
	case FetchBooksByCategory:
		return c.fetchPage(ctx, "fetchBooksByCategory", FetchCategoryBooksFailed, func(ctx context.Context) (*models.BooksPage, error) {
			return c.catalog.BooksByCategory(ctx, in.CategoryID, in.Params)
		}, func(s *Snapshot, page *models.BooksPage) {
			s.Items = page.Data
			s.Pagination = page.Meta.Normalize()
		})
	case SearchBooks:
		return c.fetchPage(ctx, "searchBooks", SearchFailed, func(ctx context.Context) (*models.BooksPage, error) {
			return c.catalog.Search(ctx, in.Params)
		}, func(s *Snapshot, page *models.BooksPage) {
			s.SearchResults = page.Data
		})
	case FetchCategories:
		return c.fetchCategories(ctx)
	case FetchFavorites:
		return c.fetchList(ctx, "fetchFavorites", FetchFavoritesFailed, c.catalog.Favorites, func(s *Snapshot, books []models.Book) {
			s.Favorites = models.UniqueBooks(books)
		})
	case FetchReadingList:
		return c.fetchList(ctx, "fetchReadingList", FetchReadingListFailed, c.catalog.ReadingList, func(s *Snapshot, books []models.Book) {
			s.ReadingList = models.UniqueBooks(books)
		})
	case FetchPopular:
		return c.fetchList(ctx, "fetchPopular", FetchPopularFailed, func(ctx context.Context) ([]models.Book, error) {
			return c.catalog.Popular(ctx, in.Limit)
		}, func(s *Snapshot, books []models.Book) { s.Popular = books })
	case FetchRecent:
		return c.fetchList(ctx, "fetchRecent", FetchRecentFailed, func(ctx context.Context) ([]models.Book, error) {
			return c.catalog.Recent(ctx, in.Limit)
		}, func(s *Snapshot, books []models.Book) { s.Recent = books })
	case AddToFavorites:
		return c.addRelation(ctx, "addToFavorites", AddFavoriteFailed, favorites, in.BookID, c.catalog.AddFavorite)
	case AddToReadingList:
		return c.addRelation(ctx, "addToReadingList", AddReadingListFailed, readingList, in.BookID, c.catalog.AddToReadingList)
	case RemoveFromFavorites:
		return c.removeRelation(ctx, "removeFromFavorites", RemoveFavoriteFailed, favorites, in.BookID, c.catalog.RemoveFavorite)
	case RemoveFromReadingList:
		return c.removeRelation(ctx, "removeFromReadingList", RemoveReadingListFailed, readingList, in.BookID, c.catalog.RemoveFromReadingList)
	case UpdateReadingProgress:
		return c.updateProgress(ctx, in.Progress)
	case ClearSearchResults:
		c.apply("clearSearchResults", state.Fulfilled, 0, func(s *Snapshot) { s.SearchResults = nil })
		return nil
	case ClearError:
		c.apply("clearError", state.Fulfilled, 0, func(s *Snapshot) { s.Error = "" })
		return nil
	case SetCurrentlyReading:
		book := in.Book
		c.apply("setCurrentlyReading", state.Fulfilled, 0, func(s *Snapshot) { s.CurrentlyReading = &book })
		return nil
	case ClearCurrentlyReading:
		c.apply("clearCurrentlyReading", state.Fulfilled, 0, func(s *Snapshot) { s.CurrentlyReading = nil })
		return nil
	default:
		return fmt.Errorf("library: unsupported intent %T", intent)
	}
}

// FetchBooks loads one page of the catalog into Items
func (c *Container) FetchBooks(ctx context.Context, params models.GetBooksParams) error {
	return c.Dispatch(ctx, FetchBooks{Params: params})
}

// FetchCategories dispatches FetchCategories
func (c *Container) FetchCategories(ctx context.Context) error {
	return c.Dispatch(ctx, FetchCategories{})
}

// SearchBooks loads matches into SearchResults
func (c *Container) SearchBooks(ctx context.Context, params models.SearchBooksParams) error {
	return c.Dispatch(ctx, SearchBooks{Params: params})
}

// FetchBooksByCategory loads one page of a category into Items
func (c *Container) FetchBooksByCategory(ctx context.Context, categoryID string, params models.GetBooksParams) error {
	return c.Dispatch(ctx, FetchBooksByCategory{CategoryID: categoryID, Params: params})
}

// FetchFavorites dispatches FetchFavorites
func (c *Container) FetchFavorites(ctx context.Context) error {
	return c.Dispatch(ctx, FetchFavorites{})
}

// FetchReadingList dispatches FetchReadingList
func (c *Container) FetchReadingList(ctx context.Context) error {
	return c.Dispatch(ctx, FetchReadingList{})
}

// FetchPopular loads up to limit popular books
func (c *Container) FetchPopular(ctx context.Context, limit int) error {
	return c.Dispatch(ctx, FetchPopular{Limit: limit})
}

// FetchRecent loads up to limit recently added books
func (c *Container) FetchRecent(ctx context.Context, limit int) error {
	return c.Dispatch(ctx, FetchRecent{Limit: limit})
}

// AddToFavorites dispatches AddToFavorites
func (c *Container) AddToFavorites(ctx context.Context, bookID string) error {
	return c.Dispatch(ctx, AddToFavorites{BookID: bookID})
}

// RemoveFromFavorites dispatches RemoveFromFavorites
func (c *Container) RemoveFromFavorites(ctx context.Context, bookID string) error {
	return c.Dispatch(ctx, RemoveFromFavorites{BookID: bookID})
}

// AddToReadingList dispatches AddToReadingList
func (c *Container) AddToReadingList(ctx context.Context, bookID string) error {
	return c.Dispatch(ctx, AddToReadingList{BookID: bookID})
}

// RemoveFromReadingList dispatches RemoveFromReadingList
func (c *Container) RemoveFromReadingList(ctx context.Context, bookID string) error {
	return c.Dispatch(ctx, RemoveFromReadingList{BookID: bookID})
}

// UpdateReadingProgress records progress on the server only
func (c *Container) UpdateReadingProgress(ctx context.Context, progress models.ReadingProgress) error {
	return c.Dispatch(ctx, UpdateReadingProgress{Progress: progress})
}

// ClearSearchResults dispatches ClearSearchResults
func (c *Container) ClearSearchResults() {
	c.Dispatch(context.Background(), ClearSearchResults{})
}

// ClearError dispatches ClearError
func (c *Container) ClearError() {
	c.Dispatch(context.Background(), ClearError{})
}

// SetCurrentlyReading dispatches SetCurrentlyReading
func (c *Container) SetCurrentlyReading(book models.Book) {
	c.Dispatch(context.Background(), SetCurrentlyReading{Book: book})
}

// ClearCurrentlyReading dispatches ClearCurrentlyReading
func (c *Container) ClearCurrentlyReading() {
	c.Dispatch(context.Background(), ClearCurrentlyReading{})
}

func pending(s *Snapshot) {
	s.IsLoading = true
	s.Error = ""
}

// failed leaves the data fields untouched
func failed(err error, fallback string) func(*Snapshot) {
	return func(s *Snapshot) {
		s.IsLoading = false
		s.Error = state.Message(err, fallback)
	}
}

func (c *Container) fetchPage(ctx context.Context, intent, fallback string,
	call func(context.Context) (*models.BooksPage, error), set func(*Snapshot, *models.BooksPage)) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, pending)

	page, err := call(ctx)
	if err != nil {
		c.apply(intent, state.Rejected, id, failed(err, fallback))
		return err
	}

	c.apply(intent, state.Fulfilled, id, func(s *Snapshot) {
		s.IsLoading = false
		s.Error = ""
		set(s, page)
	})
	return nil
}

func (c *Container) fetchCategories(ctx context.Context) error {
	id := c.requests.Begin()
	c.apply("fetchCategories", state.Pending, id, pending)

	categories, err := c.catalog.Categories(ctx)
	if err != nil {
		c.apply("fetchCategories", state.Rejected, id, failed(err, FetchCategoriesFailed))
		return err
	}

	c.apply("fetchCategories", state.Fulfilled, id, func(s *Snapshot) {
		s.IsLoading = false
		s.Categories = categories
	})
	return nil
}

// fetchList replaces one book list without toggling IsLoading
func (c *Container) fetchList(ctx context.Context, intent, fallback string,
	call func(context.Context) ([]models.Book, error), set func(*Snapshot, []models.Book)) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, func(*Snapshot) {})

	books, err := call(ctx)
	if err != nil {
		c.apply(intent, state.Rejected, id, func(s *Snapshot) { s.Error = state.Message(err, fallback) })
		return err
	}

	c.apply(intent, state.Fulfilled, id, func(s *Snapshot) { set(s, books) })
	return nil
}

// addRelation adds the book remotely, then fetches it. The list only changes
// when both calls succeed.
func (c *Container) addRelation(ctx context.Context, intent, fallback string, which list, bookID string,
	add func(context.Context, string) error) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, func(*Snapshot) {})

	var book *models.Book
	err := add(ctx, bookID)
	if err == nil {
		book, err = c.catalog.Book(ctx, bookID)
	}
	if err != nil {
		c.apply(intent, state.Rejected, id, func(s *Snapshot) { s.Error = state.Message(err, fallback) })
		return err
	}

	c.apply(intent, state.Fulfilled, id, func(s *Snapshot) {
		books := which.of(s)
		if i := models.IndexOfBook(*books, book.ID); i >= 0 {
			(*books)[i] = *book
			return
		}
		*books = append(*books, *book)
	})
	return nil
}

func (c *Container) removeRelation(ctx context.Context, intent, fallback string, which list, bookID string,
	remove func(context.Context, string) error) error {
	id := c.requests.Begin()
	c.apply(intent, state.Pending, id, func(*Snapshot) {})

	if err := remove(ctx, bookID); err != nil {
		c.apply(intent, state.Rejected, id, func(s *Snapshot) { s.Error = state.Message(err, fallback) })
		return err
	}

	c.apply(intent, state.Fulfilled, id, func(s *Snapshot) {
		books := which.of(s)
		kept := make([]models.Book, 0, len(*books))
		for _, b := range *books {
			if b.ID != bookID {
				kept = append(kept, b)
			}
		}
		*books = kept
	})
	return nil
}

func (c *Container) updateProgress(ctx context.Context, progress models.ReadingProgress) error {
	id := c.requests.Begin()
	c.apply("updateReadingProgress", state.Pending, id, pending)

	if err := c.catalog.UpdateReadingProgress(ctx, progress); err != nil {
		c.apply("updateReadingProgress", state.Rejected, id, failed(err, UpdateProgressFailed))
		return err
	}

	c.apply("updateReadingProgress", state.Fulfilled, id, func(s *Snapshot) { s.IsLoading = false })
	return nil
}
