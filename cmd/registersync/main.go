package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"RegisterSync/internal/app"
	"RegisterSync/internal/config"
	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		slog.Error("registersync stopped", "error", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	daysFlag := &cli.IntFlag{
		Name:    "days",
		Aliases: []string{"d"},
		Usage:   "Trailing window size in days (0 uses fetch.windowDays)",
	}

	return &cli.App{
		Name:  "registersync",
		Usage: "Mirror Federal Register daily publications into a searchable SQL store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config (defaults to $REGISTERSYNC_CONFIG)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: validateFlags,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Fetch the trailing window, then merge every raw artifact",
				Flags:  []cli.Flag{daysFlag},
				Action: runCommand,
			},
			{
				Name:   "fetch",
				Usage:  "Fetch the trailing window into the raw area only",
				Flags:  []cli.Flag{daysFlag},
				Action: fetchCommand,
			},
			{
				Name:   "process",
				Usage:  "Merge every raw artifact into the canonical store",
				Action: processCommand,
			},
			{
				Name:  "search",
				Usage: "Query the canonical store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keywords", Aliases: []string{"q"}, Usage: "Substring of title, abstract or excerpts"},
					&cli.StringFlag{Name: "type", Usage: "Exact document type (Rule, Proposed Rule, Notice, ...)"},
					&cli.StringFlag{Name: "start", Usage: "Earliest publication date, YYYY-MM-DD"},
					&cli.StringFlag{Name: "end", Usage: "Latest publication date, YYYY-MM-DD"},
					&cli.StringFlag{Name: "agency", Usage: "Substring of the agency name"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum documents to return", Value: 5},
				},
				Action: searchCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the search API and rerun the pipeline on the scheduler interval",
				Action: serveCommand,
			},
		},
	}
}

func validateFlags(c *cli.Context) error {
	if level := c.String("log-level"); level != "" {
		return logging.ValidLevel(level)
	}
	return nil
}

func loadApp(c *cli.Context) (*app.Application, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger := logging.New(cfg.Logging.Level)
	slog.SetDefault(logger)

	application, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init application: %w", err)
	}
	return application, nil
}

func runCommand(c *cli.Context) error {
	application, err := loadApp(c)
	if err != nil {
		return err
	}
	defer application.Close()

	_, err = application.Run(c.Context, c.Int("days"))
	return err
}

func fetchCommand(c *cli.Context) error {
	application, err := loadApp(c)
	if err != nil {
		return err
	}
	defer application.Close()

	_, err = application.Fetch(c.Context, c.Int("days"))
	return err
}

func processCommand(c *cli.Context) error {
	application, err := loadApp(c)
	if err != nil {
		return err
	}
	defer application.Close()

	_, err = application.Process(c.Context)
	return err
}

func searchCommand(c *cli.Context) error {
	application, err := loadApp(c)
	if err != nil {
		return err
	}
	defer application.Close()

	resp := application.Search(c.Context, domain.SearchParams{
		Keywords:     c.String("keywords"),
		DocumentType: c.String("type"),
		StartDate:    c.String("start"),
		EndDate:      c.String("end"),
		AgencyName:   c.String("agency"),
		Limit:        c.Int("limit"),
	})

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if resp.Status == domain.SearchError {
		return cli.Exit(resp.Message, 1)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	application, err := loadApp(c)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(c.Context)
}
