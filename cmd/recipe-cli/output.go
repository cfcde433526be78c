package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/view"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"o"},
	Value:   string(formatTable),
	Usage:   "Output format (table, json, yaml)",
}

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format: %q", s)
	}
}

// encode writes v as JSON or YAML. Table output is handled by the caller.
func encode(w io.Writer, format outputFormat, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q cannot encode values", format)
	}
}

func writeRecipes(w io.Writer, format outputFormat, resp view.RecipesResponse) error {
	if format != formatTable {
		return encode(w, format, resp)
	}

	fmt.Fprintln(w, resp.Message)
	if len(resp.Concepts) > 0 {
		names := make([]string, len(resp.Concepts))
		for i, c := range resp.Concepts {
			names[i] = recipe.DisplayName(c)
		}
		fmt.Fprintf(w, "Detected ingredients: %s\n", strings.Join(names, ", "))
	}
	if len(resp.Recipes) == 0 {
		return nil
	}

	rows := make([][]string, len(resp.Recipes))
	for i, r := range resp.Recipes {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			r.Title,
			minutesText(r.ReadyInMinutes),
			countText(r.Servings),
			strconv.Itoa(len(r.Ingredients)),
			strconv.Itoa(r.ID),
		}
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Title", "Ready", "Serves", "Ingredients", "ID"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func writeFavorites(w io.Writer, format outputFormat, favorites []recipe.Detail) error {
	resp := view.NewFavoritesResponse(favorites)
	if format != formatTable {
		return encode(w, format, resp)
	}

	if len(favorites) == 0 {
		fmt.Fprintln(w, "No favorites yet.")
		return nil
	}
	rows := make([][]string, len(favorites))
	for i, d := range favorites {
		rows[i] = []string{strconv.Itoa(i + 1), d.Title, minutesText(d.ReadyInMinutes), strconv.Itoa(d.ID)}
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Title", "Ready", "ID"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
	))
	return nil
}

func minutesText(minutes int) string {
	if minutes <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d min", minutes)
}

func countText(n int) string {
	if n <= 0 {
		return "N/A"
	}
	return strconv.Itoa(n)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
