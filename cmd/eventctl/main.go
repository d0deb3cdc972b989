// eventctl signs in to the event service and authors events from draft
// files. The session credential is kept in the configured store between
// invocations, so "eventctl login" followed by "eventctl create" works the
// way a signed-in client would.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	// needsSession restores the persisted credential before run
	needsSession bool
	run          func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "login", summary: "sign in and persist the credential", run: runLogin},
	{name: "signup", summary: "register a new account", run: runSignup},
	{name: "logout", summary: "forget the persisted credential", needsSession: true, run: runLogout},
	{name: "whoami", summary: "show the signed-in identity", needsSession: true, run: runWhoami},
	{name: "profile", summary: "update profile fields and image", needsSession: true, run: runProfile},
	{name: "passwd", summary: "change the account password", needsSession: true, run: runPasswd},
	{name: "create", summary: "author and submit an event from a draft file", needsSession: true, run: runCreate},
	{name: "events", summary: "list published events", needsSession: true, run: runEvents},
	{name: "event", summary: "show one event", needsSession: true, run: runEvent},
	{name: "orphans", summary: "list failed submissions that left uploaded media behind", run: runOrphans},
	{name: "keygen", summary: "generate the age key that seals the credential file", run: runKeygen},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout io.Writer) error {
	var configPath string
	var debug bool

	flagSet := pflag.NewFlagSet("eventctl", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "env-format config file (default: .env in the working directory)")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")
	flagSet.BoolP("help", "h", false, "show help")
	// Flags after the subcommand name belong to the subcommand
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}

	name, args := flagSet.Arg(0), flagSet.Args()[1:]
	cmd, ok := lookup(name)
	if !ok {
		return fmt.Errorf("unknown command %q, see eventctl --help", name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, debug, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if cmd.needsSession {
		if err := a.restore(ctx); err != nil {
			return err
		}
	}
	return cmd.run(ctx, a, args)
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `eventctl authors events against the event service.

Usage:
  eventctl [global flags] <command> [flags]

Commands:
`)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nGlobal flags:\n")
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
