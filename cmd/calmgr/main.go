package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"calmgr/internal/calendar"
	"calmgr/internal/command"
	"calmgr/internal/config"
	"calmgr/internal/ics"
	appLog "calmgr/internal/log"
	"calmgr/internal/refresh"
	"calmgr/internal/web"
)

const version = "0.1.0"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	app := &cli.App{
		Name:    "calmgr",
		Usage:   "Manage calendars, recurring series and ICS subscriptions.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "./calmgr.yaml", Usage: "Path to config file", EnvVars: []string{"CALMGR_CONFIG"}},
			&cli.StringFlag{Name: "log-format", Value: "console", Usage: "Log encoding: console or json"},
		},
		Before: func(c *cli.Context) error {
			appLog.SetOutput(os.Stderr, c.String("log-format"))
			return nil
		},
		After: func(*cli.Context) error {
			appLog.Sync()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
			importCommand(),
			exportCommand(),
			refreshCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		appLog.Error("calmgr failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and refresh subscriptions on schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			if l := c.String("listen"); l != "" {
				conf.Listen = l
			}
			mgr, err := newManager(conf)
			if err != nil {
				return err
			}

			ctx := c.Context
			r := newRefresher(conf, mgr)
			if err := r.Start(ctx, conf.RefreshCron); err != nil {
				return err
			}
			defer r.Stop()

			srv := &http.Server{
				Addr:              conf.Listen,
				Handler:           web.NewServer(mgr, conf.BasicAuth).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				appLog.Error("http shutdown failed", err)
			}
			appLog.Info("calmgr exiting")
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute calendar commands interactively or from a script.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "interactive", Usage: "interactive or headless"},
			&cli.StringFlag{Name: "file", Usage: "Command script (headless mode reads it to exit)"},
			&cli.BoolFlag{Name: "refresh", Usage: "Import subscriptions before reading commands"},
		},
		Action: func(c *cli.Context) error {
			var headless bool
			switch c.String("mode") {
			case "interactive":
			case "headless":
				headless = true
			default:
				return fmt.Errorf("unknown mode %q", c.String("mode"))
			}
			path := c.String("file")
			if headless && path == "" {
				return errors.New("headless mode needs --file")
			}

			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			mgr, err := newManager(conf)
			if err != nil {
				return err
			}
			if c.Bool("refresh") {
				// Per-source failures are already logged.
				_, _ = newRefresher(conf, mgr).RunOnce(c.Context)
			}

			in := os.Stdin
			if path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return command.New(mgr, os.Stdout).Run(c.Context, in, headless)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import an .ics file into a fresh calendar and print a summary.",
		ArgsUsage: "<file.ics>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "calendar", Value: calendar.DefaultName, Usage: "Calendar name"},
			&cli.StringFlag{Name: "timezone", Usage: "Calendar time zone (defaults to config timezone)"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("import needs an .ics file")
			}
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			tz := c.String("timezone")
			if tz == "" {
				tz = conf.Timezone
			}
			zone, err := calendar.LoadZone(tz)
			if err != nil {
				return err
			}
			body, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			name := c.String("calendar")
			cal := calendar.New(zone)
			stats, err := ics.ImportBytes(cal, ics.Source{ID: path, Calendar: name}, body)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			fmt.Printf("%s: added=%d skipped=%d invalid=%d\n", name, stats.Added, stats.Skipped, stats.Invalid)
			for _, e := range cal.AllEvents() {
				fmt.Printf("  %s\n", e)
			}
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Fetch and import every subscription once, then print a summary.",
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			mgr, err := newManager(conf)
			if err != nil {
				return err
			}
			results, err := newRefresher(conf, mgr).RunOnce(c.Context)
			for _, res := range results {
				status := "ok"
				if res.Err != nil {
					status = res.Err.Error()
				}
				fmt.Printf("%s -> %s: added=%d skipped=%d invalid=%d cached=%v %s\n",
					res.Source.ID, res.Source.Calendar,
					res.Stats.Added, res.Stats.Skipped, res.Stats.Invalid,
					res.FromCache, status)
			}
			return err
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Import subscriptions and write one calendar as an .ics file.",
		ArgsUsage: "<file.ics>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "calendar", Value: calendar.DefaultName, Usage: "Calendar name"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("export needs an output file")
			}
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			mgr, err := newManager(conf)
			if err != nil {
				return err
			}
			_, refreshErr := newRefresher(conf, mgr).RunOnce(c.Context)

			name := c.String("calendar")
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			err = mgr.View(name, func(cal *calendar.Calendar) error { return ics.Export(f, cal) })
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			appLog.Info("calendar exported", "calendar", name, "file", path)
			return refreshErr
		},
	}
}

// loadConfig reads the config file, applies environment overrides and
// configures logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	conf, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	config.ApplyEnv(conf)
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := refresh.ValidateSchedule(conf.RefreshCron); err != nil {
		return nil, err
	}
	appLog.SetLevel(appLog.Level(conf.LogLevel))

	appLog.Info("effective config",
		"config_path", path,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"calendars", len(conf.Calendars),
		"subscriptions", len(conf.Subscriptions),
	)
	return conf, nil
}

// newManager builds the registry with every configured calendar plus the
// default one unless the config already names it.
func newManager(conf *config.Config) (*calendar.Manager, error) {
	zone, err := calendar.LoadZone(conf.Timezone)
	if err != nil {
		return nil, err
	}
	mgr := calendar.NewManager(zone)
	for _, cc := range conf.Calendars {
		calZone := zone
		if cc.Timezone != "" {
			if calZone, err = calendar.LoadZone(cc.Timezone); err != nil {
				return nil, fmt.Errorf("calendar %s: %w", cc.Name, err)
			}
		}
		if _, err := mgr.Create(cc.Name, calZone); err != nil {
			return nil, fmt.Errorf("calendar %s: %w", cc.Name, err)
		}
	}
	mgr.Default()
	return mgr, nil
}

func newRefresher(conf *config.Config, mgr *calendar.Manager) *refresh.Refresher {
	sources := make([]ics.Source, 0, len(conf.Subscriptions))
	for _, s := range conf.Subscriptions {
		sources = append(sources, ics.Source{ID: s.ID, Calendar: s.Calendar, URL: s.URL})
	}
	fallback, err := calendar.LoadZone(conf.Timezone)
	if err != nil {
		fallback = time.UTC
	}
	return refresh.New(mgr, ics.NewFetcher(conf.CacheDir, nil), sources, fallback)
}
