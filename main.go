package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-recipe-bot/config"
	"github.com/raine/telegram-recipe-bot/internal/api"
	"github.com/raine/telegram-recipe-bot/internal/app"
	"github.com/raine/telegram-recipe-bot/internal/bot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const logFileName = "telegram-recipe-bot.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing config file
	config.LoadEnvFile()

	cfg, err := config.FromEnv()
	if err != nil {
		fatalWithWait("invalid config: %v", err)
	}

	// Check if required config is missing
	required := append([]string{config.EnvBotToken}, cfg.RequiredForPipeline()...)
	if missing := cfg.Missing(required...); len(missing) > 0 {
		if isInteractiveTerminal() {
			if !runSetupWizard() {
				waitOnWindows()
				os.Exit(1)
			}
			if cfg, err = config.FromEnv(); err != nil {
				fatalWithWait("invalid config: %v", err)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	closeLog, err := setupLogging()
	if err != nil {
		fatalWithWait("failed to open log file: %v", err)
	}
	defer closeLog()

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	services, err := app.New(ctx, cfg)
	if err != nil {
		fatalWithWait("failed to initialize recipe services: %v", err)
	}
	defer services.Close()

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		fatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b := bot.NewBot(tg, services.Pipeline, services.Exporter, services.Favorites)
		defer b.Shutdown()
		return runBot(ctx, tg, b)
	})

	if cfg.APIAddr != "" {
		serverCfg := api.DefaultConfig()
		serverCfg.Addr = cfg.APIAddr
		serverCfg.RateLimit = rate.Limit(cfg.RateLimit)
		serverCfg.RateBurst = cfg.RateBurst
		server := api.NewServer(serverCfg, services.Pipeline, services.Exporter, services.Favorites)
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// setupLogging writes to stderr, plus a plain-text copy in logFileName when
// not running under systemd. journald already keeps the output there and the
// unit's working directory may be read-only.
func setupLogging() (func(), error) {
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	if _, ok := os.LookupEnv("JOURNAL_STREAM"); ok {
		log.Logger = log.Output(console)
		return func() {}, nil
	}

	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	log.Logger = log.Output(io.MultiWriter(console, zerolog.ConsoleWriter{Out: f, NoColor: true}))
	log.Info().Str("logFile", logFileName).Msg("logging to file")
	return func() { f.Close() }, nil
}

// errUpdatesClosed is returned when the update channel closes while the
// bot is still meant to be running.
var errUpdatesClosed = errors.New("update channel closed")

// runBot long-polls for updates until ctx is cancelled.
func runBot(ctx context.Context, tg *tgbotapi.BotAPI, b *bot.Bot) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return pollUpdates(ctx, tg.GetUpdatesChan(u), tg.StopReceivingUpdates, b.HandleUpdate)
}

// pollUpdates hands each update to handle on its own goroutine; per-user
// ordering is kept by the session workers behind it. It waits for in-flight
// updates before returning.
func pollUpdates(
	ctx context.Context,
	updates tgbotapi.UpdatesChannel,
	stop func(),
	handle func(context.Context, tgbotapi.Update),
) error {
	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping update polling")
			stop()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("update channel closed")
				return errUpdatesClosed
			}
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				handle(ctx, update)
			}()
		}
	}
}
