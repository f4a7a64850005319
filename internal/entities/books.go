package entities

import (
	"strings"
	"time"
)

// UnknownAuthor is stored when an import names no author.
const UnknownAuthor = "Auteur inconnu"

type ReadingStatus string

const (
	StatusToRead   ReadingStatus = "to_read"
	StatusReading  ReadingStatus = "reading"
	StatusRead     ReadingStatus = "read"
	StatusWishlist ReadingStatus = "wishlist"
	StatusPAL      ReadingStatus = "pal" // "pile à lire", owned but not started
)

func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusToRead, StatusReading, StatusRead, StatusWishlist, StatusPAL:
		return true
	}
	return false
}

// Book is the canonical catalog entry shared by all users.
// It is keyed by ISBN when one is known, otherwise by (title, author).
type Book struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Title             string     `gorm:"size:512;not null;uniqueIndex:idx_books_title_author,where:isbn IS NULL" json:"title"`
	Author            string     `gorm:"size:256;not null;uniqueIndex:idx_books_title_author,where:isbn IS NULL" json:"author"`
	ISBN              *string    `gorm:"size:13;uniqueIndex:idx_books_isbn,where:isbn IS NOT NULL" json:"isbn,omitempty"`
	Publisher         string     `gorm:"size:256" json:"publisher,omitempty"`
	Pages             *int       `json:"pages,omitempty"`
	Year              *int       `json:"year,omitempty"`
	CoverURL          string     `gorm:"size:2048" json:"cover_url,omitempty"`
	Description       string     `gorm:"type:text" json:"description,omitempty"`
	Genres            string     `gorm:"size:512" json:"genres,omitempty"` // comma-joined
	Language          string     `gorm:"size:32" json:"language,omitempty"`
	MetadataFetchedAt *time.Time `gorm:"index" json:"metadata_fetched_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// GenreList splits the stored genre string back into its parts.
func (b *Book) GenreList() []string {
	if b.Genres == "" {
		return nil
	}
	parts := strings.Split(b.Genres, ",")
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			genres = append(genres, p)
		}
	}
	return genres
}

// UserBook is one user's reading record for a canonical book.
type UserBook struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	UserID          uint          `gorm:"not null;uniqueIndex:idx_user_books_user_book" json:"user_id"`
	BookID          uint          `gorm:"not null;uniqueIndex:idx_user_books_user_book;index" json:"book_id"`
	Book            Book          `gorm:"foreignKey:BookID" json:"book"`
	Status          ReadingStatus `gorm:"size:20;index;default:to_read" json:"status"`
	Rating          *float64      `json:"rating,omitempty"` // 0-20
	Review          string        `gorm:"type:text" json:"review,omitempty"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty"`
	DateRead        *time.Time    `json:"date_read,omitempty"`
	PlannedReadDate *time.Time    `json:"planned_read_date,omitempty"`
	Source          string        `gorm:"size:50" json:"source,omitempty"` // e.g. "csv", "xlsx"
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (UserBook) TableName() string {
	return "user_books"
}
