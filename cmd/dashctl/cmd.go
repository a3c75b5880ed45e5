package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/session"
	"semaphore/dashboard/internal/storage"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	client *api.Client
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL   - sign in against the backend and show the session identity")
	fmt.Fprintln(cli.out, "  decode -token TOKEN  - print the expiry of an access token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginCmd.SetOutput(cli.out)
	loginEmail := loginCmd.String("email", "", "The account email. The password will be prompted next.")

	decodeCmd := flag.NewFlagSet("decode", flag.ContinueOnError)
	decodeCmd.SetOutput(cli.out)
	decodeToken := decodeCmd.String("token", "", "The access token to inspect.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginEmail, string(pwd))
	case "decode":
		if err := decodeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *decodeToken == "" {
			decodeCmd.Usage()
			return errHelp
		}
		return cli.decode(*decodeToken)
	default:
		cli.printUsage()
		return errHelp
	}
}

// login runs the same gate the dashboard applies: only admins and teachers
// get a session.
func (cli *commandLine) login(email, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := cli.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	store := session.NewStore(storage.Scope(storage.NewMemoryBackend(), "dashctl"), nil, nil, 0)
	if err := store.Restore(ctx); err != nil {
		return err
	}
	if err := store.Login(ctx, result.User, result.Token.AccessToken, result.Token.RefreshToken); err != nil {
		return err
	}

	user := store.CurrentUser()
	fmt.Fprintf(cli.out, "Signed in as %s <%s> (%s)\n", user.FullName(), user.Email, user.Role.Label())
	return cli.decode(store.Token())
}

func (cli *commandLine) decode(token string) error {
	exp, err := session.DecodeExpiry(token)
	if err != nil {
		return err
	}
	state := "valid"
	if session.Expired(token, time.Now()) {
		state = "expired"
	}
	fmt.Fprintf(cli.out, "Token expires at %s (%s)\n", exp.UTC().Format(time.RFC3339), state)
	return nil
}
