package main

import (
	"context"
	"os"

	"github.com/raine/telegram-recipe-bot/config"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/urfave/cli/v3"
)

func favoritesCmd() *cli.Command {
	return &cli.Command{
		Name:  "favorites",
		Usage: "List saved recipes",
		Flags: []cli.Flag{formatFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := parseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			favorites, err := storage.NewFavorites(cfg.FavoritesPath).List()
			if err != nil {
				return err
			}
			return writeFavorites(os.Stdout, format, favorites)
		},
	}
}
