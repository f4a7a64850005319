package cli

import (
	"fmt"
	"path/filepath"

	"github.com/mrlokans/bookie/internal/database"
	"github.com/mrlokans/bookie/internal/entities"
)

// openDatabase resolves path to an absolute one and opens it.
func openDatabase(path string) (*database.Database, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for database: %w", err)
	}

	db, err := database.NewDatabase(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// lookupUser finds an existing account. The CLI never creates accounts
// implicitly except through create-user.
func lookupUser(db *database.Database, username string) (*entities.User, error) {
	var user entities.User
	result := db.DB.Where("username = ?", username).Limit(1).Find(&user)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", username, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("user %s not found, create it with create-user", username)
	}
	return &user, nil
}
