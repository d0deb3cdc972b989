package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/internal/draft"
	"github.com/prohmpiriya/event-studio/internal/session"
	"github.com/prohmpiriya/event-studio/internal/workflow"
)

// passwordEnv lets scripts pass a password without putting it on the command line
const passwordEnv = "EVENTCTL_PASSWORD"

func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	flagSet.SetOutput(os.Stderr)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q", flagSet.Name(), flagSet.Arg(0))
	}
	return nil
}

// readPassword returns flagValue, then $EVENTCTL_PASSWORD, then one line of stdin
func readPassword(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) printIdentity(identity *domain.Identity) {
	fmt.Fprintf(a.stdout, "%s <%s> role=%s id=%s\n", identity.FullName(), identity.Email, identity.Role, identity.ID)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	var email, password string
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	flagSet.StringVarP(&email, "email", "e", "", "account email")
	flagSet.StringVarP(&password, "password", "p", "", "account password (default: $"+passwordEnv+" or stdin)")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if email == "" {
		return errors.New("login: --email is required")
	}
	password, err := readPassword(password, "Password: ")
	if err != nil {
		return err
	}

	ctrl, err := a.controller(ctx)
	if err != nil {
		return err
	}
	identity, err := ctrl.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.printIdentity(identity)
	return nil
}

func runSignup(ctx context.Context, a *app, args []string) error {
	var reg domain.Registration
	var role string
	flagSet := pflag.NewFlagSet("signup", pflag.ContinueOnError)
	flagSet.StringVarP(&reg.Email, "email", "e", "", "account email")
	flagSet.StringVarP(&reg.Password, "password", "p", "", "account password (default: $"+passwordEnv+" or stdin)")
	flagSet.StringVar(&reg.ConfirmPassword, "confirm-password", "", "password confirmation (default: same as password)")
	flagSet.StringVar(&reg.FirstName, "first-name", "", "first name")
	flagSet.StringVar(&reg.LastName, "last-name", "", "last name")
	flagSet.StringVar(&reg.PhoneNumber, "phone", "", "phone number")
	flagSet.StringVar(&role, "role", string(domain.RoleAttendee), "account type: attendee or organizer")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if reg.Email == "" {
		return errors.New("signup: --email is required")
	}

	var err error
	if reg.Password, err = readPassword(reg.Password, "Password: "); err != nil {
		return err
	}
	if !flagSet.Changed("confirm-password") {
		reg.ConfirmPassword = reg.Password
	}
	reg.UserType = domain.Role(role)
	if !reg.UserType.IsValid() {
		return fmt.Errorf("signup: invalid role %q", role)
	}

	ctrl, err := a.controller(ctx)
	if err != nil {
		return err
	}
	identity, err := ctrl.Signup(ctx, reg)
	if err != nil {
		return err
	}
	a.printIdentity(identity)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(pflag.NewFlagSet("logout", pflag.ContinueOnError), args); err != nil {
		return err
	}
	a.session.Logout(ctx)
	fmt.Fprintln(a.stdout, "signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(pflag.NewFlagSet("whoami", pflag.ContinueOnError), args); err != nil {
		return err
	}
	identity, err := a.session.Require()
	if err != nil {
		return err
	}
	a.printIdentity(identity)
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	current, err := a.session.Require()
	if err != nil {
		return err
	}

	update := domain.ProfileUpdate{
		FirstName:    current.FirstName,
		LastName:     current.LastName,
		Email:        current.Email,
		PhoneNumber:  current.PhoneNumber,
		ProfileImage: current.ProfileImage,
	}
	var imagePath string
	flagSet := pflag.NewFlagSet("profile", pflag.ContinueOnError)
	flagSet.StringVar(&update.FirstName, "first-name", update.FirstName, "first name")
	flagSet.StringVar(&update.LastName, "last-name", update.LastName, "last name")
	flagSet.StringVar(&update.Email, "email", update.Email, "email")
	flagSet.StringVar(&update.PhoneNumber, "phone", update.PhoneNumber, "phone number")
	flagSet.StringVar(&imagePath, "image", "", "profile image file to upload")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	var image *domain.MediaItem
	if imagePath != "" {
		item, err := readMedia(imagePath)
		if err != nil {
			return err
		}
		image = &item
	}

	identity, err := a.session.UpdateProfile(ctx, update, image)
	if err != nil {
		return err
	}
	a.printIdentity(identity)
	return nil
}

func runPasswd(ctx context.Context, a *app, args []string) error {
	var current, next, confirm string
	flagSet := pflag.NewFlagSet("passwd", pflag.ContinueOnError)
	flagSet.StringVar(&current, "current", "", "current password")
	flagSet.StringVar(&next, "new", "", "new password")
	flagSet.StringVar(&confirm, "confirm", "", "new password again (default: same as --new)")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if current == "" || next == "" {
		return errors.New("passwd: --current and --new are required")
	}
	if !flagSet.Changed("confirm") {
		confirm = next
	}

	if err := a.session.ChangePassword(ctx, current, next, confirm); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "password changed")
	return nil
}

func readMedia(path string) (domain.MediaItem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("reading media: %w", err)
	}
	return domain.MediaItem{Name: filepath.Base(path), Content: content}, nil
}

func runCreate(ctx context.Context, a *app, args []string) error {
	var draftPath string
	var mediaPaths []string
	var concurrency int
	flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
	flagSet.StringVarP(&draftPath, "draft", "f", "", "YAML draft file")
	flagSet.StringArrayVarP(&mediaPaths, "media", "m", nil, "image to attach (repeatable)")
	flagSet.IntVar(&concurrency, "upload-concurrency", a.cfg.Workflow.UploadConcurrency, "parallel uploads, 0 for all at once")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if draftPath == "" {
		return errors.New("create: --draft is required")
	}

	f, err := os.Open(draftPath)
	if err != nil {
		return fmt.Errorf("opening draft: %w", err)
	}
	d, err := draft.Load(f)
	f.Close()
	if err != nil {
		return err
	}
	for _, p := range mediaPaths {
		item, err := readMedia(p)
		if err != nil {
			return err
		}
		d.AddMedia(item)
	}

	loc, err := a.cfg.Workflow.Location()
	if err != nil {
		return err
	}
	j, err := a.submissions(ctx)
	if err != nil {
		return err
	}

	engine, err := workflow.NewEngine(a.session, a.gw, workflow.Options{
		Draft:             d,
		UploadConcurrency: concurrency,
		Location:          loc,
		Journal:           j,
		Logger:            a.log,
		Metrics:           a.metrics,
	})
	if err != nil {
		return err
	}

	for engine.State().ActiveStep < engine.State().StepCount-1 {
		step := engine.State().StepName
		if err := engine.GoNext(); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", step)
	}

	result, err := engine.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "created event %s (submission %s)\n", result.EventID, result.SubmissionID)
	return nil
}

func runEvents(ctx context.Context, a *app, args []string) error {
	var filter domain.EventListFilter
	flagSet := pflag.NewFlagSet("events", pflag.ContinueOnError)
	flagSet.StringVar(&filter.Category, "category", "", "filter by category")
	flagSet.StringVarP(&filter.Search, "search", "s", "", "free-text search")
	flagSet.StringVar(&filter.Date, "date", "", "filter by date (YYYY-MM-DD)")
	flagSet.IntVar(&filter.Limit, "limit", 20, "page size")
	flagSet.IntVar(&filter.Offset, "offset", 0, "page offset")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	page, err := a.gw.ListEvents(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tDATE\tSTATUS")
	for _, ev := range page.Events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ev.ResourceID(), ev.Title, ev.Category, ev.Date.Format(time.RFC3339), ev.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d of %d\n", len(page.Events), page.Total)
	return nil
}

func runEvent(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("event", pflag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("usage: eventctl event <id>")
	}

	ev, err := a.gw.GetEvent(ctx, flagSet.Arg(0))
	if err != nil {
		return err
	}
	return a.printJSON(ev)
}

func runOrphans(ctx context.Context, a *app, args []string) error {
	var limit int
	flagSet := pflag.NewFlagSet("orphans", pflag.ContinueOnError)
	flagSet.IntVar(&limit, "limit", 50, "maximum attempts to list, 0 for all")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	j, err := a.submissions(ctx)
	if err != nil {
		return err
	}
	if j == nil {
		return errors.New("orphans: the submission journal is disabled (JOURNAL_BACKEND=none)")
	}

	attempts, err := j.ListOrphaned(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBMISSION\tTITLE\tPHASE\tERROR\tFAILED AT\tREFS")
	for _, at := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			at.ID, at.Title, at.FailedPhase, at.ErrorKind,
			at.UpdatedAt.Format(time.RFC3339), strings.Join(at.UploadedRefs, ","))
	}
	return w.Flush()
}

func runKeygen(ctx context.Context, a *app, args []string) error {
	keyFile := a.cfg.Credential.AgeKeyFile
	flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	flagSet.StringVarP(&keyFile, "output", "o", keyFile, "key file to create (default: CREDENTIAL_AGE_KEY_FILE)")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if keyFile == "" {
		return errors.New("keygen: set --output or CREDENTIAL_AGE_KEY_FILE")
	}

	recipient, err := session.GenerateAgeKey(keyFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s\npublic key: %s\n", keyFile, recipient)
	return nil
}
