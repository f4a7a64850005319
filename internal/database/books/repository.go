// Package books provides database operations for the shared catalog and the
// per-user reading records.
//
// The repository implements the persistence side of the import pipeline and
// of metadata enrichment:
//
//	var _ importers.LibraryStore = (*Repository)(nil)
//	var _ metadata.BookUpdater = (*Repository)(nil)
//
// # Usage
//
//	repo := books.NewRepository(db)
//	entries, total, err := repo.ListLibrary(userID, books.LibraryFilter{Limit: 50})
package books

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/importers"
	"github.com/mrlokans/bookie/internal/metadata"
)

var (
	_ importers.LibraryStore = (*Repository)(nil)
	_ metadata.BookUpdater   = (*Repository)(nil)
)

// ErrBookNotFound is returned when a book id does not exist.
var ErrBookNotFound = errors.New("book not found")

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Repository handles catalog and library database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindBook returns the catalog entry matching isbn, or else the exact
// (title, author) pair. An ISBN match is preferred. Returns nil when absent.
func (r *Repository) FindBook(isbn *string, title, author string) (*entities.Book, error) {
	var book entities.Book
	query := r.db.Model(&entities.Book{})
	if isbn != nil {
		query = query.
			Where("isbn = ? OR (title = ? AND author = ?)", *isbn, title, author).
			Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "CASE WHEN isbn = ? THEN 0 ELSE 1 END, id ASC",
				Vars:               []any{*isbn},
				WithoutParentheses: true,
			}})
	} else {
		query = query.Where("title = ? AND author = ?", title, author).Order("id ASC")
	}

	// Take keeps the ORDER BY above; First would append the primary key.
	err := query.Take(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// CreateBook inserts book. If a concurrent writer already created the same
// catalog entry, book is replaced by the stored row and false is returned.
func (r *Repository) CreateBook(book *entities.Book) (bool, error) {
	err := r.db.Create(book).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	existing, findErr := r.FindBook(book.ISBN, book.Title, book.Author)
	if findErr != nil {
		return false, fmt.Errorf("failed to load conflicting book: %w", findErr)
	}
	if existing == nil {
		return false, err
	}
	*book = *existing
	return false, nil
}

// GetBookByID retrieves a catalog entry.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBookMetadata writes the non-nil fields of an enrichment.
func (r *Repository) UpdateBookMetadata(id uint, fields metadata.BookUpdateFields) error {
	updates := make(map[string]any)
	if fields.CoverURL != nil {
		updates["cover_url"] = *fields.CoverURL
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Pages != nil {
		updates["pages"] = *fields.Pages
	}
	if fields.Year != nil {
		updates["year"] = *fields.Year
	}
	if fields.MetadataFetchedAt != nil {
		updates["metadata_fetched_at"] = *fields.MetadataFetchedAt
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// GetBooksMissingMetadata returns books that were never looked up.
func (r *Repository) GetBooksMissingMetadata() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("metadata_fetched_at IS NULL").Order("id ASC").Find(&books).Error
	return books, err
}

// FindUserBook returns the reading record of userID for bookID, or nil.
func (r *Repository) FindUserBook(userID, bookID uint) (*entities.UserBook, error) {
	var ub entities.UserBook
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&ub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ub, nil
}

// CreateUserBook inserts ub unless the user already has the book.
func (r *Repository) CreateUserBook(ub *entities.UserBook) (bool, error) {
	result := r.db.Omit("Book").Clauses(clause.OnConflict{DoNothing: true}).Create(ub)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LibraryFilter narrows ListLibrary.
type LibraryFilter struct {
	Status entities.ReadingStatus
	Query  string // case-insensitive match on title or author
	Limit  int
	Offset int
}

// ListLibrary returns a page of the user's reading records with their
// catalog entries, most recently added first, and the unpaged total.
func (r *Repository) ListLibrary(userID uint, filter LibraryFilter) ([]entities.UserBook, int64, error) {
	query := r.db.Model(&entities.UserBook{}).
		Joins("JOIN books ON books.id = user_books.book_id").
		Where("user_books.user_id = ?", userID)
	if filter.Status != "" {
		query = query.Where("user_books.status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		query = query.Where("LOWER(books.title) LIKE LOWER(?) OR LOWER(books.author) LIKE LOWER(?)", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := max(filter.Offset, 0)

	var entries []entities.UserBook
	err := query.Preload("Book").
		Order("user_books.created_at DESC, user_books.id DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	return entries, total, err
}

// GetLibraryForExport returns every reading record of the user ordered by
// title, with catalog data preloaded.
func (r *Repository) GetLibraryForExport(userID uint) ([]entities.UserBook, error) {
	var entries []entities.UserBook
	err := r.db.Model(&entities.UserBook{}).
		Joins("JOIN books ON books.id = user_books.book_id").
		Where("user_books.user_id = ?", userID).
		Preload("Book").
		Order("books.title ASC, books.author ASC").
		Find(&entries).Error
	return entries, err
}

// CountByStatus returns how many of the user's books are in each status.
func (r *Repository) CountByStatus(userID uint) (map[entities.ReadingStatus]int64, error) {
	var rows []struct {
		Status entities.ReadingStatus
		Count  int64
	}
	err := r.db.Model(&entities.UserBook{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.ReadingStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
