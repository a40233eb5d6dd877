// Package catalog wraps the book, category and per-user library endpoints
package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/drallgood/ebook-reader/internal/api"
	"github.com/drallgood/ebook-reader/internal/models"
)

// DefaultListLimit is used by Popular and Recent when no limit is given
const DefaultListLimit = 10

// Client talks to /books, /categories and /user
type Client struct {
	api api.Requester
}

// NewClient creates a catalog client on top of a shared requester
func NewClient(r api.Requester) *Client {
	return &Client{api: r}
}

// Books lists books page by page
func (c *Client) Books(ctx context.Context, params models.GetBooksParams) (*models.BooksPage, error) {
	var page models.BooksPage
	if err := c.api.Do(ctx, http.MethodGet, api.Endpoint("/books", params), nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Book fetches a single book
func (c *Client) Book(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := c.api.Do(ctx, http.MethodGet, "/books/"+api.PathEscape(id), nil, true, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.api.Do(ctx, http.MethodGet, "/categories", nil, true, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Search runs a full-text query over the catalog
func (c *Client) Search(ctx context.Context, params models.SearchBooksParams) (*models.BooksPage, error) {
	var page models.BooksPage
	if err := c.api.Do(ctx, http.MethodGet, api.Endpoint("/books/search", params), nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// BooksByCategory lists the books of one category. The category id is sent
// both in the path and as a filter.
func (c *Client) BooksByCategory(ctx context.Context, categoryID string, params models.GetBooksParams) (*models.BooksPage, error) {
	params.CategoryID = categoryID
	endpoint := api.Endpoint(fmt.Sprintf("/categories/%s/books", api.PathEscape(categoryID)), params)

	var page models.BooksPage
	if err := c.api.Do(ctx, http.MethodGet, endpoint, nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Popular returns the most read books; limit <= 0 means DefaultListLimit
func (c *Client) Popular(ctx context.Context, limit int) ([]models.Book, error) {
	return c.list(ctx, "/books/popular", limit)
}

// Recent returns the most recently added books; limit <= 0 means DefaultListLimit
func (c *Client) Recent(ctx context.Context, limit int) ([]models.Book, error) {
	return c.list(ctx, "/books/recent", limit)
}

func (c *Client) list(ctx context.Context, path string, limit int) ([]models.Book, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var books []models.Book
	endpoint := api.Endpoint(path, map[string]interface{}{"limit": limit})
	if err := c.api.Do(ctx, http.MethodGet, endpoint, nil, true, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) Favorites(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.api.Do(ctx, http.MethodGet, "/user/favorites", nil, true, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) AddFavorite(ctx context.Context, bookID string) error {
	return c.api.Do(ctx, http.MethodPost, "/user/favorites", models.BookRelation{BookID: bookID}, true, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, bookID string) error {
	return c.api.Do(ctx, http.MethodDelete, "/user/favorites/"+api.PathEscape(bookID), nil, true, nil)
}

func (c *Client) ReadingList(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.api.Do(ctx, http.MethodGet, "/user/reading-list", nil, true, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) AddToReadingList(ctx context.Context, bookID string) error {
	return c.api.Do(ctx, http.MethodPost, "/user/reading-list", models.BookRelation{BookID: bookID}, true, nil)
}

func (c *Client) RemoveFromReadingList(ctx context.Context, bookID string) error {
	return c.api.Do(ctx, http.MethodDelete, "/user/reading-list/"+api.PathEscape(bookID), nil, true, nil)
}

// ReadingProgress returns the stored progress for a book
func (c *Client) ReadingProgress(ctx context.Context, bookID string) (*models.ReadingProgress, error) {
	var progress models.ReadingProgress
	if err := c.api.Do(ctx, http.MethodGet, "/user/reading-progress/"+api.PathEscape(bookID), nil, true, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (c *Client) UpdateReadingProgress(ctx context.Context, progress models.ReadingProgress) error {
	return c.api.Do(ctx, http.MethodPost, "/user/reading-progress", progress, true, nil)
}

// DownloadURL resolves a signed download link for a book file
func (c *Client) DownloadURL(ctx context.Context, bookID string) (string, error) {
	var link models.DownloadLink
	if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/books/%s/download", api.PathEscape(bookID)), nil, true, &link); err != nil {
		return "", err
	}
	return link.DownloadURL, nil
}
