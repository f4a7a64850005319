package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/database/users"
	"github.com/mrlokans/bookie/internal/entities"
)

// CreateUserCommand adds an account for local authentication.
type CreateUserCommand struct {
	DatabasePath string
	Username     string
	Password     string
	Email        string
	Admin        bool

	out io.Writer
}

func NewCreateUserCommand() *CreateUserCommand {
	return &CreateUserCommand{out: os.Stdout}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.Username, "username", "", "Login name (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password, at least 12 characters (required)")
	fs.StringVar(&cmd.Email, "email", "", "Optional e-mail address, also accepted as login")
	fs.BoolVar(&cmd.Admin, "admin", false, "Grant the admin role")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user -username <name> -password <password> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Username == "" {
		return fmt.Errorf("required flag -username not provided")
	}
	if cmd.Password == "" {
		return fmt.Errorf("required flag -password not provided")
	}
	return nil
}

func (cmd *CreateUserCommand) Run() error {
	db, err := openDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.NewConfig()
	service := auth.NewService(users.NewRepository(db.DB), cfg.Auth)

	role := entities.UserRoleReader
	if cmd.Admin {
		role = entities.UserRoleAdmin
	}

	user, err := service.CreateUser(cmd.Username, cmd.Email, cmd.Password, role)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(cmd.out, "Created %s user %q (id %d)\n", user.Role, user.Username, user.ID)
	return nil
}
