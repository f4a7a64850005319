package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./bookie.db"

	// DefaultGoogleBooksURL is the volumes search endpoint of the Google Books API
	DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1/volumes"

	// DefaultMaxImportFileSize caps uploaded import files (10MB)
	DefaultMaxImportFileSize = 10 << 20
)
