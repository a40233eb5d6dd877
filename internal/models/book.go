package models

// BookFormat is the file format a book is distributed in
type BookFormat string

const (
	FormatPDF  BookFormat = "PDF"
	FormatEPUB BookFormat = "EPUB"
	FormatMOBI BookFormat = "MOBI"
)

// Valid reports whether f is one of the known formats
func (f BookFormat) Valid() bool {
	switch f {
	case FormatPDF, FormatEPUB, FormatMOBI:
		return true
	}
	return false
}

// Category groups books in the catalog
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Book is a catalog entry. Identity is ID.
type Book struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Description   string     `json:"description"`
	CoverImage    string     `json:"coverImage"`
	CategoryID    string     `json:"categoryId"`
	Category      Category   `json:"category"`
	PublishedDate string     `json:"publishedDate"`
	PageCount     int        `json:"pageCount"`
	Language      string     `json:"language"`
	ISBN          string     `json:"isbn"`
	Rating        float64    `json:"rating"`
	DownloadURL   string     `json:"downloadUrl"`
	FileSize      int64      `json:"fileSize"`
	Format        BookFormat `json:"format"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// SortField is a field the catalog can be sorted by
type SortField string

const (
	SortByTitle         SortField = "title"
	SortByAuthor        SortField = "author"
	SortByPublishedDate SortField = "publishedDate"
	SortByRating        SortField = "rating"
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// GetBooksParams are the optional filters of GET /books.
// Nil pointers and empty values are left out of the query string.
type GetBooksParams struct {
	Page       *int      `query:"page"`
	Limit      *int      `query:"limit"`
	CategoryID string    `query:"categoryId"`
	Search     string    `query:"search"`
	SortBy     SortField `query:"sortBy"`
	SortOrder  SortOrder `query:"sortOrder"`
}

// SearchBooksParams are the parameters of GET /books/search
type SearchBooksParams struct {
	Query      string `query:"query"`
	Page       *int   `query:"page"`
	Limit      *int   `query:"limit"`
	CategoryID string `query:"categoryId"`
}

// BooksPage is a paginated list of books
type BooksPage struct {
	Data []Book         `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// ReadingProgress is the reader position for one book
type ReadingProgress struct {
	BookID      string `json:"bookId"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	LastReadAt  string `json:"lastReadAt"`
	IsCompleted bool   `json:"isCompleted"`
}

// BookRelation is the body used to add a book to a user list
type BookRelation struct {
	BookID string `json:"bookId"`
}

// DownloadLink is returned by GET /books/{id}/download
type DownloadLink struct {
	DownloadURL string `json:"downloadUrl"`
}

// IndexOfBook returns the position of the book with id in books, or -1
func IndexOfBook(books []Book, id string) int {
	for i := range books {
		if books[i].ID == id {
			return i
		}
	}
	return -1
}

// UniqueBooks drops later duplicates by ID, keeping first-seen order
func UniqueBooks(books []Book) []Book {
	if books == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(books))
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}
