// gardenreminders runs the garden task reminder service.
//
// Commands:
//
//	serve              run the HTTP API and the reminder dispatcher
//	notifications      print a user's notifications
//	set-smtp-password  store the SMTP password in the system keyring
//	init-config        write a default config file
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

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/garden-reminders/internal/credential"
	"github.com/nhle/garden-reminders/internal/dispatch"
	"github.com/nhle/garden-reminders/internal/httpapi"
	"github.com/nhle/garden-reminders/internal/logging"
	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/notification"
	"github.com/nhle/garden-reminders/internal/scheduler"
	"github.com/nhle/garden-reminders/internal/theme"
	"github.com/nhle/garden-reminders/internal/transport"
	"github.com/nhle/garden-reminders/internal/verification"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return nil
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "notifications":
		return runNotifications(args[1:])
	case "set-smtp-password":
		return runSetSMTPPassword()
	case "init-config":
		return runInitConfig(args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Garden reminders: verification codes and task reminder notifications.

Usage:
  gardenreminders serve [--config PATH] [--addr ADDR]
  gardenreminders notifications --user ID [--limit N] [--config PATH]
  gardenreminders set-smtp-password
  gardenreminders init-config [--config PATH] [--force]

Configuration is read from ~/.config/gardenreminders/config.yaml and
GARDEN_* environment variables. SMTP delivery uses SMTP_HOST, SMTP_PORT,
SMTP_USERNAME, SMTP_PASSWORD and SMTP_FROM.
`)
}

// loadConfig parses the shared flags of fs and resolves the configuration
// with flags bound into viper.
func loadConfig(fs *pflag.FlagSet, args []string) (*model.AppConfig, error) {
	configPath := fs.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if f := fs.Lookup("addr"); f != nil {
		if err := v.BindPFlag("server.addr", f); err != nil {
			return nil, fmt.Errorf("binding --addr: %w", err)
		}
	}
	return model.LoadConfigWith(v, *configPath)
}

func runServe(args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("addr", "", "HTTP listen address (overrides server.addr)")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	router, err := newRouter(logger, cfg.Verification.ExposeCode)
	if err != nil {
		return err
	}

	verifier := verification.New(stores.verifications, router, verification.Options{
		TTL:          cfg.Verification.TTL,
		MaxAttempts:  cfg.Verification.MaxAttempts,
		StoreTimeout: cfg.Store.Timeout,
		ExposeCode:   cfg.Verification.ExposeCode,
		Logger:       logger,
	})
	notes := notification.NewService(stores.notifications,
		notification.WithTimeout(cfg.Store.Timeout),
		notification.WithLogger(logger),
	)
	sched := scheduler.New(notes, scheduler.Options{
		Location:     loc,
		ReminderHour: cfg.Scheduler.ReminderHour,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(verifier, notes, sched, stores.tasks, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Dispatcher.Enabled {
		d := dispatch.New(stores.tasks, router, dispatch.Options{
			Interval:    cfg.Dispatcher.Interval,
			LeadDays:    cfg.Dispatcher.LeadDays,
			MaxAttempts: cfg.Dispatcher.MaxAttempts,
			RetryMin:    cfg.Dispatcher.RetryMin,
			RetryMax:    cfg.Dispatcher.RetryMax,
			Location:    loc,
			Logger:      logger,
		})
		g.Go(func() error { return d.Run(ctx) })
	}

	err = g.Wait()
	verifier.Wait()
	if err != nil {
		return err
	}
	logger.Info().Msg("shut down cleanly")
	return nil
}

// newRouter sends email over SMTP when configured and logs everything
// else. Without SMTP, email bodies are logged only when codes are exposed
// anyway; otherwise they are redacted.
func newRouter(logger zerolog.Logger, exposeCode bool) (*transport.Router, error) {
	logTransport := transport.NewLogTransport(logger)
	router := transport.NewRouter().Handle(model.ChannelWeb, logTransport)

	smtpCfg, err := transport.LoadSMTPConfig()
	if err != nil {
		return nil, err
	}
	if !smtpCfg.Configured() {
		if exposeCode {
			logger.Warn().Msg("SMTP_HOST not set, email is logged instead of sent")
			router.Handle(model.ChannelEmail, logTransport)
		} else {
			logger.Warn().Msg("SMTP_HOST not set, email is dropped and only its envelope logged")
			router.Handle(model.ChannelEmail, transport.NewRedactedLogTransport(logger))
		}
		return router, nil
	}

	smtp, err := transport.NewSMTPTransport(smtpCfg)
	if err != nil {
		return nil, err
	}
	router.Handle(model.ChannelEmail, smtp)
	return router, nil
}

func runNotifications(args []string) error {
	fs := pflag.NewFlagSet("notifications", pflag.ContinueOnError)
	userID := fs.String("user", "", "user id to list notifications for")
	limit := fs.Int("limit", 20, "maximum number of notifications")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("--user is required")
	}

	logger := logging.New("warn", true)
	ctx := context.Background()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	notes := notification.NewService(stores.notifications, notification.WithTimeout(cfg.Store.Timeout))
	items, err := notes.List(ctx, *userID, *limit)
	if err != nil {
		return err
	}

	fmt.Println(theme.RenderNotifications(*userID, items))
	return nil
}

func runInitConfig(args []string) error {
	fs := pflag.NewFlagSet("init-config", pflag.ContinueOnError)
	path := fs.String("config", model.DefaultConfigPath(), "path to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", *path)
	}
	if err := model.SaveConfig(*path, model.DefaultAppConfig()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", *path)
	return nil
}

// smtpPasswordForm asks for the SMTP password without echoing it.
func smtpPasswordForm(password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP password").
				Description("Stored in the system keyring, used when SMTP_PASSWORD is unset").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(validateRequired("Password")),
		),
	)
}

func runSetSMTPPassword() error {
	var password string
	if err := smtpPasswordForm(&password).Run(); err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if err := credential.Set(credential.SMTPPasswordKey, password); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "stored in system keyring")
	return nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
