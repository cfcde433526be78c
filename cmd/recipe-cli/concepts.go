package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/raine/telegram-recipe-bot/config"
	"github.com/raine/telegram-recipe-bot/internal/app"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/vision"
	"github.com/urfave/cli/v3"
)

// conceptRow is one scored concept as printed by the concepts command.
type conceptRow struct {
	Name       string  `json:"name" yaml:"name"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Accepted   bool    `json:"accepted" yaml:"accepted"`
}

func conceptsCmd() *cli.Command {
	return &cli.Command{
		Name:      "concepts",
		Usage:     "Show the ingredients recognized in an image",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			formatFlag,
			&cli.StringFlag{
				Name:  "provider",
				Usage: fmt.Sprintf("Recognition service (%s, %s); defaults to %s", config.ProviderClarifai, config.ProviderGemini, config.EnvConceptProvider),
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
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			extractor, closer, err := app.NewExtractor(ctx, cfg, cmd.String("provider"))
			if err != nil {
				return err
			}
			defer closer.Close()

			rows, err := scoreConcepts(ctx, extractor, img)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return cli.Exit("", 2)
			}
			return writeConcepts(format, rows)
		},
	}
}

// scoreConcepts lists every scored concept when the extractor exposes
// scores, and only the accepted names otherwise.
func scoreConcepts(ctx context.Context, extractor vision.Extractor, img recipe.Image) ([]conceptRow, error) {
	if scorer, ok := extractor.(vision.Scorer); ok {
		scored, err := scorer.Score(ctx, img)
		if err != nil {
			return nil, err
		}
		rows := make([]conceptRow, len(scored))
		for i, c := range scored {
			rows[i] = conceptRow{Name: c.Name, Confidence: c.Confidence, Accepted: c.Confidence > vision.ConfidenceThreshold}
		}
		return rows, nil
	}

	names, err := extractor.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	rows := make([]conceptRow, len(names))
	for i, n := range names {
		rows[i] = conceptRow{Name: n, Accepted: true}
	}
	return rows, nil
}

func writeConcepts(format outputFormat, rows []conceptRow) error {
	if format != formatTable {
		return encode(os.Stdout, format, rows)
	}
	if len(rows) == 0 {
		fmt.Println("No concepts recognized.")
		return nil
	}

	table := make([][]string, len(rows))
	for i, r := range rows {
		accepted := ""
		if r.Accepted {
			accepted = "yes"
		}
		table[i] = []string{r.Name, strconv.FormatFloat(r.Confidence, 'f', 3, 64), accepted}
	}
	fmt.Println(renderTable(
		[]string{"Concept", "Confidence", "Accepted"},
		table,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	))
	return nil
}
