package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/frahmantamala/leaf/internal/auth"
	"github.com/frahmantamala/leaf/internal/core/common/validation"
	"github.com/frahmantamala/leaf/internal/permission"
	"github.com/frahmantamala/leaf/internal/user"
	userPostgres "github.com/frahmantamala/leaf/internal/user/postgres"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User administration commands",
}

var createUserCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an active user, prompting for the password",
	RunE:  runCreateUser,
}

type createUserOptions struct {
	Email       string   `validate:"required,email,max=255"`
	FirstName   string   `validate:"required,max=255"`
	LastName    string   `validate:"required,max=255"`
	Permissions []string `validate:"dive,required"`
	Groups      []string `validate:"dive,required"`
	Password    string   `validate:"required,min=8,max=72"`
}

var newUser createUserOptions

// readPassword is swapped in tests.
var readPassword = func(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	createUserCmd.Flags().StringVar(&newUser.Email, "email", "", "email address, used as the login")
	createUserCmd.Flags().StringVar(&newUser.FirstName, "first-name", "", "first name")
	createUserCmd.Flags().StringVar(&newUser.LastName, "last-name", "", "last name")
	createUserCmd.Flags().StringSliceVar(&newUser.Permissions, "permissions", nil,
		"permissions to grant: "+strings.Join(permission.Names(), ", "))
	createUserCmd.Flags().StringSliceVar(&newUser.Groups, "group", nil, "groups to join")
	_ = createUserCmd.MarkFlagRequired("email")

	userCmd.AddCommand(createUserCmd)
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := newLogger(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprint(os.Stderr, "Password: ")
	opts := newUser
	if opts.Password, err = readPassword(os.Stdin); err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := initGorm(db, cfg.AppEnv)
	if err != nil {
		return err
	}

	u, err := createUser(ctx, userPostgres.NewUserRepository(gdb), cfg.Security.BCryptCost, opts)
	if err != nil {
		return err
	}
	lg.Info("User created", "user", u.Email, "id", u.ID, "permissions", u.Permissions)
	return nil
}

type userCreator interface {
	Create(ctx context.Context, attrs user.CreateAttrs) (*user.User, error)
	AddToGroup(ctx context.Context, u *user.User, groupName string) error
}

func createUser(ctx context.Context, repo userCreator, bcryptCost int, opts createUserOptions) (*user.User, error) {
	if err := validation.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}

	mask, err := permission.Mask(opts.Permissions...)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(opts.Password, bcryptCost)
	if err != nil {
		return nil, err
	}

	disabled := false
	u, err := repo.Create(ctx, user.CreateAttrs{
		Email:          opts.Email,
		HashedPassword: hash,
		FirstName:      opts.FirstName,
		LastName:       opts.LastName,
		Permissions:    mask,
		Disabled:       &disabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", opts.Email, err)
	}

	for _, g := range opts.Groups {
		if err := repo.AddToGroup(ctx, u, g); err != nil {
			return nil, err
		}
	}
	return u, nil
}
