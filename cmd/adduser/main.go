package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"spendbook/internal/auth"
	"spendbook/internal/storage"

	"golang.org/x/term"
)

const defaultDBPath = "expense_tracker.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("adduser", flag.ContinueOnError)
	flags.SetOutput(stderr)

	username := flags.String("user", "", "Username")
	email := flags.String("email", "", "Email address used to log in")
	passwordFlag := flags.String("password", "", "Password (prompted for when omitted)")
	dbPath := flags.String("db", "", "Path to database file (default $DB_PATH or "+defaultDBPath+")")

	if err := flags.Parse(args); err != nil {
		return err
	}

	var missing []string
	if *username == "" {
		missing = append(missing, "user")
	}
	if *email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> -email <email> [-password <password>] [-db <db_path>]")
		flags.PrintDefaults()
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	path := *dbPath
	if path == "" {
		path = os.Getenv("DB_PATH")
	}
	if path == "" {
		path = defaultDBPath
	}

	db, err := storage.NewDB(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	accounts, err := auth.NewService(db)
	if err != nil {
		return err
	}

	user, err := accounts.CreateUser(ctx, *username, *email, password)
	switch {
	case errors.Is(err, storage.ErrDuplicateUser):
		if _, lookupErr := db.GetUserByUsername(ctx, strings.TrimSpace(*username)); lookupErr == nil {
			return fmt.Errorf("user %s already exists", *username)
		}
		return fmt.Errorf("email %s already exists", auth.NormalizeEmail(*email))
	case err != nil:
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s <%s> created with ID %d\n", user.Username, user.Email, user.ID)
	return nil
}

// readPassword reads without echo from a terminal, or one line otherwise.
func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
