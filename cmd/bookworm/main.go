// Package main is the BookWorm command line client.
//
// Usage:
//
//	bookworm [-v] <command> [flags]
//
// The API address comes from BOOKWORM_API_URL (default http://localhost:3000)
// and credentials live in BOOKWORM_HOME (default ~/.bookworm).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/pkg/client/apiclient"
	"github.com/bookwormapp/bookworm/pkg/client/session"
	"github.com/bookwormapp/bookworm/pkg/client/tokenstore"
)

const defaultAPIURL = "http://localhost:3000"

// errUsage is returned after usage text has been printed.
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	auth    bool
	run     func(ctx context.Context, app *app, args []string) error
}

var commands = []command{
	{"register", "create an account and sign in", false, runRegister},
	{"login", "sign in with email and password", false, runLogin},
	{"logout", "forget the stored token", false, runLogout},
	{"whoami", "show the signed-in user", false, runWhoami},
	{"feed", "page through the public feed", false, runFeed},
	{"search", "search titles and captions", false, runSearch},
	{"mine", "list your books", true, runMine},
	{"post", "list a new book", true, runPost},
	{"delete", "delete one of your books", true, runDelete},
	{"health", "check the server", false, runHealth},
}

type app struct {
	client  *apiclient.Client
	machine *session.Machine
	out     io.Writer
	logger  *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", apiclient.MessageOf(err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("bookworm", flag.ContinueOnError)
	verbose := global.Bool("v", false, "verbose logging")
	apiURL := global.String("api", envOr("BOOKWORM_API_URL", defaultAPIURL), "API base URL")
	home := global.String("home", envOr("BOOKWORM_HOME", defaultHome()), "directory for the token and profile")
	global.Usage = func() { printUsage(global.Output()) }

	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		printUsage(global.Output())
		return errUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.New(logger.Config{
		Writer:  os.Stderr,
		Level:   level,
		Format:  "pretty",
		NoColor: os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stderr),
	}).Logger

	name, rest := global.Arg(0), global.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(global.Output(), "unknown command %q\n\n", name)
		printUsage(global.Output())
		return errUsage
	}

	a, err := newApp(ctx, *apiURL, *home, out, log)
	if err != nil {
		return err
	}
	defer a.client.Close()

	if cmd.auth && !a.machine.State().Authenticated() {
		return errors.New("not signed in, run: bookworm login")
	}
	return cmd.run(ctx, a, rest)
}

func newApp(ctx context.Context, apiURL, home string, out io.Writer, log *slog.Logger) (*app, error) {
	tokens, err := tokenstore.NewFileStore(home, log)
	if err != nil {
		return nil, err
	}
	profiles, err := session.NewFileProfileStore(home)
	if err != nil {
		return nil, err
	}

	client, err := apiclient.New(apiURL, tokens, apiclient.WithLogger(log))
	if err != nil {
		return nil, err
	}

	machine := session.New(client, tokens, session.WithProfileStore(profiles), session.WithLogger(log))
	client.OnUnauthorized(machine.HandleUnauthorized)

	if _, err := machine.Restore(ctx); err != nil {
		log.Warn("could not restore session", "error", err)
	}

	return &app{client: client, machine: machine, out: out, logger: log}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: bookworm [-v] [-api URL] [-home DIR] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".bookworm"
	}
	return filepath.Join(dir, ".bookworm")
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
