// recipe-cli runs the recipe pipeline on image files from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/raine/telegram-recipe-bot/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const name = "recipe-cli"

func main() {
	config.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		code := 1
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: "Find recipes for the ingredients in a photo",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log debug output to stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd.Bool("verbose"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			findCmd(),
			conceptsCmd(),
			favoritesCmd(),
		},
		// Exit codes are handled in main.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	fd := os.Stderr.Fd()
	noColor := !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig reads the environment and checks the keys a pipeline run needs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if missing := cfg.Missing(cfg.RequiredForPipeline()...); len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v (set them or add them to the config file)", missing)
	}
	return cfg, nil
}
