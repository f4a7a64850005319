// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, default user
//	├── books/           # Shared catalog and per-user reading records
//	├── users/           # User accounts and API token lookup
//	├── audit/           # Audit event storage
//	└── sync/            # Metadata backfill progress
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type built from the shared *gorm.DB:
//
//	db, err := database.NewDatabase("./bookie.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	usersRepo := users.NewRepository(db.DB)
//
//	book, err := booksRepo.GetBookByID(123)
//
// # Interface Implementations
//
//   - books.Repository: implements importers.LibraryStore and metadata.BookUpdater
//   - sync.Repository: implements metadata.ProgressReporter
//
// # Uniqueness
//
// Catalog identity is enforced by partial unique indexes: one book per ISBN,
// and one book per (title, author) among books without ISBN. Reading records
// are unique per (user, book). The connection is opened with TranslateError
// so conflicts surface as gorm.ErrDuplicatedKey.
package database
