// mock-api serves an in-memory event service for local development with
// eventctl. State is lost on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/internal/testserver"
	"github.com/prohmpiriya/event-studio/pkg/logger"
)

var defaultUsers = []string{
	"organizer@example.com:secret123:organizer",
	"admin@example.com:secret123:admin",
	"attendee@example.com:secret123:attendee",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	var (
		addr        string
		secret      string
		tokenTTL    time.Duration
		mediaURL    string
		legacyIDs   bool
		uploadDelay time.Duration
		users       []string
		logLevel    string
	)

	flagSet := pflag.NewFlagSet("mock-api", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "localhost:5000", "listen address")
	flagSet.StringVar(&secret, "secret", "", "JWT signing secret")
	flagSet.DurationVar(&tokenTTL, "token-ttl", time.Hour, "lifetime of issued tokens")
	flagSet.StringVar(&mediaURL, "media-base-url", "", "prefix of returned upload URLs")
	flagSet.BoolVar(&legacyIDs, "legacy-ids", false, "return _id instead of id for created events")
	flagSet.DurationVar(&uploadDelay, "upload-delay", 0, "artificial latency for each media upload")
	flagSet.StringArrayVar(&users, "user", defaultUsers, "seed account as email:password:role (repeatable)")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.ServiceName = "mock-api"
	logCfg.Level = logLevel
	logCfg.Development = true
	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	defer log.Sync()

	gin.SetMode(gin.ReleaseMode)
	backend := testserver.New(testserver.Options{
		Secret:       secret,
		TokenTTL:     tokenTTL,
		MediaBaseURL: mediaURL,
		LegacyIDs:    legacyIDs,
		Logger:       log,
	})
	backend.SetUploadDelay(uploadDelay)

	for _, entry := range users {
		identity, password, err := parseUser(entry)
		if err != nil {
			return err
		}
		seeded := backend.AddUser(identity, password)
		log.Info("seeded account",
			zap.String("email", seeded.Email),
			zap.String("role", string(seeded.Role)),
			zap.String("user_id", seeded.ID),
		)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parseUser reads "email:password:role"
func parseUser(entry string) (domain.Identity, string, error) {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return domain.Identity{}, "", fmt.Errorf("invalid --user %q, want email:password:role", entry)
	}
	role := domain.Role(parts[2])
	if !role.IsValid() {
		return domain.Identity{}, "", fmt.Errorf("invalid role in --user %q", entry)
	}
	name, _, _ := strings.Cut(parts[0], "@")
	if name == "" {
		return domain.Identity{}, "", fmt.Errorf("invalid email in --user %q", entry)
	}
	return domain.Identity{
		FirstName: strings.ToUpper(name[:1]) + name[1:],
		Email:     parts[0],
		Role:      role,
	}, parts[1], nil
}
