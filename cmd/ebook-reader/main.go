// Command ebook-reader is a terminal client for the e-book catalog: sign in,
// browse and search books, manage favorites and the reading list, and read
// notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/drallgood/ebook-reader/internal/config"
	"github.com/drallgood/ebook-reader/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	logger.Setup(logger.Config{
		Level:      "info",
		Format:     logger.FormatConsole,
		TimeFormat: time.RFC3339,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		logger.Get().Error("Command failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

// cliApp carries the runtime from Before to the command actions
type cliApp struct {
	rt  *runtime
	out io.Writer
}

func newApp(out io.Writer) *cli.App {
	a := &cliApp{out: out}
	return &cli.App{
		Name:      "ebook-reader",
		Usage:     "Browse and read books from the e-book catalog",
		Version:   fmt.Sprintf("%s (%s) %s", version, commit, date),
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` if it exists",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
			&cli.BoolFlag{
				Name:  "ephemeral",
				Usage: "Keep credentials in memory only",
			},
		},
		Before:   a.before,
		After:    a.after,
		Commands: a.commands(),
	}
}

func (a *cliApp) before(c *cli.Context) error {
	if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	logger.ForceSetup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: logger.ParseLogFormat(cfg.Logging.Format),
	})

	rt, err := newRuntime(c.Context, cfg, c.Bool("ephemeral"), a.out)
	if err != nil {
		return err
	}
	a.rt = rt
	return nil
}

func (a *cliApp) after(c *cli.Context) error {
	if a.rt == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.rt.Close(ctx)
	a.rt = nil
	return err
}
