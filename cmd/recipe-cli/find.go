package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/telegram-recipe-bot/internal/app"
	"github.com/raine/telegram-recipe-bot/internal/export"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/raine/telegram-recipe-bot/internal/view"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func findCmd() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "Detect ingredients in an image and find matching recipes",
		ArgsUsage: "<image>",
		Description: `Runs the full pipeline: ingredient recognition, recipe search and
recipe details. Exits with status 2 when a service call fails.`,
		Flags: []cli.Flag{
			formatFlag,
			&cli.StringFlag{
				Name:  "pdf",
				Usage: "Write a PDF of every recipe found into this directory",
			},
			&cli.IntFlag{
				Name:  "save",
				Usage: "Save the n-th recipe (1-based) to favorites",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := parseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			img, err := readImageArg(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Pipeline.Run(ctx, img)
			if err := writeRecipes(os.Stdout, format, view.NewRecipesResponse(res)); err != nil {
				return err
			}
			if res.Outcome.Failed() {
				return cli.Exit("", 2)
			}

			if dir := cmd.String("pdf"); dir != "" {
				if err := writePDFs(ctx, a.Exporter, dir, res.Recipes); err != nil {
					return err
				}
			}
			if n := int(cmd.Int("save")); n != 0 {
				return saveFavorite(a.Favorites, res, n)
			}
			return nil
		},
	}
}

func readImageArg(cmd *cli.Command) (recipe.Image, error) {
	path := cmd.Args().First()
	if path == "" {
		return recipe.Image{}, fmt.Errorf("missing <image> argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return recipe.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return recipe.NewImage(data, ""), nil
}

// writePDFs renders every recipe into dir, named by its title.
func writePDFs(ctx context.Context, exporter *export.Exporter, dir string, recipes []recipe.Detail) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create pdf directory: %w", err)
	}
	names := pdfFilenames(recipes)
	for i, d := range recipes {
		data, err := exporter.Render(ctx, d)
		if err != nil {
			return fmt.Errorf("failed to render %q: %w", d.Title, err)
		}
		path := filepath.Join(dir, names[i])
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write pdf: %w", err)
		}
		log.Info().Str("path", path).Int("bytes", len(data)).Msg("wrote recipe pdf")
		fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	}
	return nil
}

// pdfFilenames names each recipe's PDF after its title. Titles that clash,
// ignoring case, get the recipe ID and then a counter appended.
func pdfFilenames(recipes []recipe.Detail) []string {
	used := make(map[string]bool, len(recipes))
	names := make([]string, len(recipes))
	for i, d := range recipes {
		name := export.Filename(d.Title)
		base := strings.TrimSuffix(name, ".pdf")
		for n := 1; used[strings.ToLower(name)]; n++ {
			if n == 1 {
				name = fmt.Sprintf("%s (%d).pdf", base, d.ID)
			} else {
				name = fmt.Sprintf("%s (%d-%d).pdf", base, d.ID, n)
			}
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func saveFavorite(favorites *storage.Favorites, res pipeline.Result, n int) error {
	if n < 1 || n > len(res.Recipes) {
		return fmt.Errorf("--save must be between 1 and %d", len(res.Recipes))
	}
	d := res.Recipes[n-1]
	added, err := favorites.Add(d)
	if err != nil {
		return err
	}
	if added == storage.AlreadyPresent {
		fmt.Fprintf(os.Stderr, "%q is already in favorites\n", d.Title)
	} else {
		fmt.Fprintf(os.Stderr, "Saved %q to favorites\n", d.Title)
	}
	return nil
}
