// Package library holds the catalog state: browsed books, categories, the
// user's favorites and reading list, and search results.
package library

import (
	"context"
	"sync"

	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state"
)

// Default error messages per intent
const (
	FetchBooksFailed         = "Failed to fetch books"
	FetchCategoriesFailed    = "Failed to fetch categories"
	SearchFailed             = "Search failed"
	FetchFavoritesFailed     = "Failed to fetch favorite books"
	AddFavoriteFailed        = "Failed to add to favorites"
	RemoveFavoriteFailed     = "Failed to remove from favorites"
	FetchReadingListFailed   = "Failed to fetch reading list"
	AddReadingListFailed     = "Failed to add to reading list"
	RemoveReadingListFailed  = "Failed to remove from reading list"
	UpdateProgressFailed     = "Failed to update reading progress"
	FetchPopularFailed       = "Failed to fetch popular books"
	FetchRecentFailed        = "Failed to fetch recent books"
	FetchCategoryBooksFailed = "Failed to fetch books for category"
)

// CatalogAPI is the remote side of the catalog
type CatalogAPI interface {
	Books(ctx context.Context, params models.GetBooksParams) (*models.BooksPage, error)
	Book(ctx context.Context, id string) (*models.Book, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Search(ctx context.Context, params models.SearchBooksParams) (*models.BooksPage, error)
	BooksByCategory(ctx context.Context, categoryID string, params models.GetBooksParams) (*models.BooksPage, error)
	Popular(ctx context.Context, limit int) ([]models.Book, error)
	Recent(ctx context.Context, limit int) ([]models.Book, error)
	Favorites(ctx context.Context) ([]models.Book, error)
	AddFavorite(ctx context.Context, bookID string) error
	RemoveFavorite(ctx context.Context, bookID string) error
	ReadingList(ctx context.Context) ([]models.Book, error)
	AddToReadingList(ctx context.Context, bookID string) error
	RemoveFromReadingList(ctx context.Context, bookID string) error
	ReadingProgress(ctx context.Context, bookID string) (*models.ReadingProgress, error)
	UpdateReadingProgress(ctx context.Context, progress models.ReadingProgress) error
	DownloadURL(ctx context.Context, bookID string) (string, error)
}

// Snapshot is the observable catalog state.
// Favorites and ReadingList hold at most one entry per book ID.
type Snapshot struct {
	Items            []models.Book
	Categories       []models.Category
	Favorites        []models.Book
	ReadingList      []models.Book
	CurrentlyReading *models.Book
	SearchResults    []models.Book
	Popular          []models.Book
	Recent           []models.Book
	IsLoading        bool
	Error            string
	Pagination       models.PaginationMeta
}

func cloneBooks(books []models.Book) []models.Book {
	if books == nil {
		return nil
	}
	return append(make([]models.Book, 0, len(books)), books...)
}

func (s Snapshot) clone() Snapshot {
	s.Items = cloneBooks(s.Items)
	s.Favorites = cloneBooks(s.Favorites)
	s.ReadingList = cloneBooks(s.ReadingList)
	s.SearchResults = cloneBooks(s.SearchResults)
	s.Popular = cloneBooks(s.Popular)
	s.Recent = cloneBooks(s.Recent)
	if s.Categories != nil {
		s.Categories = append(make([]models.Category, 0, len(s.Categories)), s.Categories...)
	}
	if s.CurrentlyReading != nil {
		b := *s.CurrentlyReading
		s.CurrentlyReading = &b
	}
	return s
}

// Container serializes catalog transitions
type Container struct {
	mu      sync.Mutex
	current Snapshot

	catalog  CatalogAPI
	hub      state.Hub[Snapshot]
	requests state.Tracker
	version  state.Version
	logger   *logger.Logger
}

// New creates an empty catalog
func New(catalog CatalogAPI, log *logger.Logger) *Container {
	if log == nil {
		log = logger.Component("library")
	}
	return &Container{
		catalog: catalog,
		current: Snapshot{Pagination: models.DefaultPagination()},
		logger:  log,
	}
}

// Snapshot returns a copy of the current state
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.clone()
}

// Subscribe calls fn with every new snapshot until the returned function is called
func (c *Container) Subscribe(fn func(Snapshot)) func() {
	return c.hub.Subscribe(fn)
}

// DownloadURL resolves the download link of a book without touching state
func (c *Container) DownloadURL(ctx context.Context, bookID string) (string, error) {
	return c.catalog.DownloadURL(ctx, bookID)
}

// ReadingProgress fetches the stored reader position of a book without
// touching state
func (c *Container) ReadingProgress(ctx context.Context, bookID string) (*models.ReadingProgress, error) {
	return c.catalog.ReadingProgress(ctx, bookID)
}

func (c *Container) apply(intent string, phase state.Phase, id state.RequestID, fn func(*Snapshot)) {
	c.mu.Lock()
	fn(&c.current)
	c.version++
	version, snap := c.version, c.current.clone()
	c.mu.Unlock()

	if id != 0 {
		fields := map[string]interface{}{
			"intent":     intent,
			"phase":      phase.String(),
			"request_id": uint64(id),
		}
		if phase != state.Pending && c.requests.Superseded(id) {
			fields["superseded"] = true
		}
		c.logger.Debug("Library transition", fields)
	}
	c.hub.Publish(version, snap)
}
