package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
)

type Database struct {
	DB *gorm.DB
}

// Options tune the connection. The zero value is fine for tests.
type Options struct {
	// LogSQL routes every statement to the debug logger.
	LogSQL bool
}

func NewDatabase(dbPath string) (*Database, error) {
	return NewDatabaseWithOptions(dbPath, Options{})
}

func NewDatabaseWithOptions(dbPath string, opts Options) (*Database, error) {
	level := logger.Warn
	if opts.LogSQL {
		level = logger.Info
	}

	// WAL and a busy timeout let concurrent import workers share the file.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Book{},
		&entities.UserBook{},
		&entities.AuditEvent{},
		&entities.SyncProgress{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Info().Str("path", dbPath).Msg("database initialized")

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection, used by the health endpoint.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// EnsureUser returns the user with the given name, creating a passwordless
// admin account when it does not exist. It backs the implicit
// user of the no-auth mode and the CLI.
func (d *Database) EnsureUser(username string) (*entities.User, error) {
	var user entities.User
	err := d.DB.Where("username = ?", username).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = entities.User{Username: username, Role: entities.UserRoleAdmin}
	if err := d.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return d.EnsureUser(username)
		}
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	logging.Info().Str("username", username).Msg("created default user")
	return &user, nil
}

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logging.Debug().Str("component", "gorm").Msgf(format, args...)
}

func newGormLogger(level logger.LogLevel) logger.Interface {
	return logger.New(gormWriter{}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
