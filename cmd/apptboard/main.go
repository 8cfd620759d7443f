package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"apptboard/internal/annotate"
	"apptboard/internal/appointment"
	"apptboard/internal/capture"
	"apptboard/internal/config"
	"apptboard/internal/feed"
	appLog "apptboard/internal/log"
	"apptboard/internal/render"
	"apptboard/internal/web"
)

const version = "0.1.0"

func main() {
	// .env is optional.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "apptboard",
		Usage:   "Live appointment board for a service-bay booking system.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"APPTBOARD_CONFIG"},
			},
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			fetchCommand(),
			snapshotCommand(),
			initCommand(),
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("apptboard failed", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Fetch appointments on a schedule and serve the board UI and API.",
		Action: runServe,
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch and validate the appointment list once and print the rendered board as JSON.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			client, f, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			snap, err := f.Refresh(c.Context)
			if err != nil {
				return fmt.Errorf("fetch appointments: %w", err)
			}

			vms := render.Render(snap.Appointments, annotate.NewSet(nil), render.Options{
				Location: cfg.Location(),
				AssetURL: client.AssetURL,
			})
			for _, recErr := range snap.RecordErrors {
				appLog.Info("record skipped", "reason", recErr.Error())
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(vms)
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Capture a PNG of a running board with headless Chromium.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Board URL (default: http://<listen>/)"},
			&cli.StringFlag{Name: "out", Usage: "Output PNG path (default: snapshot_path from config)"},
			&cli.IntFlag{Name: "width", Value: capture.DefaultWidth, Usage: "Viewport width in pixels"},
			&cli.IntFlag{Name: "height", Value: capture.DefaultHeight, Usage: "Viewport height in pixels"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			target := c.String("url")
			if target == "" {
				target = "http://" + cfg.Listen + "/"
			}
			out := c.String("out")
			if out == "" {
				out = cfg.SnapshotPath
			}
			if out == "" {
				out = "board.png"
			}

			return capture.BoardPNG(c.Context, capture.Options{
				URL:        target,
				OutputPath: out,
				Width:      c.Int("width"),
				Height:     c.Int("height"),
			})
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a starter config file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Required: true, Usage: "Origin of the booking service, e.g. http://192.168.1.10:8080"},
			&cli.StringFlag{Name: "timezone", Value: "UTC", Usage: "IANA timezone for display"},
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing config file"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.BaseURL = c.String("base-url")
			cfg.Timezone = c.String("timezone")
			if listen := c.String("listen"); listen != "" {
				cfg.Listen = listen
			}
			cfg.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			appLog.Info("config written", "path", path)
			return nil
		},
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	appLog.Info("apptboard starting", "version", version)
	appLog.Info("effective config",
		"base_url", cfg.BaseURL,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"request_timeout", cfg.RequestTimeout,
		"basic_auth", cfg.BasicAuth != nil,
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, f, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	// A failed first fetch is not fatal; the board shows the error and the
	// scheduler keeps retrying.
	if _, err := f.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}

	if _, err := feed.StartScheduler(ctx, cfg.RefreshCron, f); err != nil {
		return err
	}

	srv := web.NewServer(cfg, f, annotate.NewStore(), client.AssetURL)
	defer srv.Close()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	appLog.Info("apptboard exiting")
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Listen = listen
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func newPipeline(cfg *config.Config) (*appointment.Client, *feed.Feed, error) {
	client, err := appointment.NewClient(cfg.BaseURL, appointment.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, nil, err
	}
	f := feed.New(client, appointment.NewValidator(cfg.Location()))
	return client, f, nil
}
