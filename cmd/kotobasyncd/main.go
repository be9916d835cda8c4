// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Command kotobasyncd is the kotobadb CLI: it drives the Sync Coordinator
// and Retry Supervisor to pull a local replica up to date, and exposes the
// Query Engine for ad-hoc lookups against the store it maintains.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kotobadb/kotobadb/internal/config"
	"github.com/kotobadb/kotobadb/internal/logging"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/query"
	"github.com/kotobadb/kotobadb/internal/retry"
	"github.com/kotobadb/kotobadb/internal/shape"
	"github.com/kotobadb/kotobadb/internal/store"
	"github.com/kotobadb/kotobadb/internal/syncer"
	"github.com/kotobadb/kotobadb/internal/transport"
	"github.com/kotobadb/kotobadb/internal/version"
)

// app bundles the long-lived services a command needs, built once in the
// root Before hook and torn down in After.
type app struct {
	cfg   config.Config
	log   *logging.Logger
	store *store.Store
	coord *syncer.Coordinator
	sup   *retry.Supervisor
	eng   *query.Engine
}

func newApp(c *cli.Context) (*app, error) {
	cfg := config.Config{
		Verbose:    c.Bool("verbose"),
		Lang:       c.String("lang"),
		UpdateNow:  c.Bool("now"),
		ForceFetch: c.Bool("force"),
		BaseURL:    c.String("base"),
		StorePath:  c.String("store"),
	}

	log := logging.New(cfg.Verbose)

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher := transport.NewFetcher()
	vc := version.New(cfg.BaseURL, fetcher)
	coord := syncer.New(s, vc, fetcher, cfg.BaseURL, log)
	sup := retry.New(coord, log)
	sup.SetOnline(true)

	return &app{
		cfg:   cfg,
		log:   log,
		store: s,
		coord: coord,
		sup:   sup,
		eng:   query.New(s),
	}, nil
}

func (a *app) Close() {
	a.coord.Destroy()
	a.log.Sync()
}

func main() {
	var a *app

	cliApp := &cli.App{
		Name:  "kotobasyncd",
		Usage: "maintain and query a local kotobadb replica",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "enable diagnostic logging"},
			&cli.StringFlag{Name: "base", Usage: "content host root", Value: "https://content.kotobadb.example.test"},
			&cli.StringFlag{Name: "store", Usage: "on-disk store path", Value: "kotobadb.db"},
		},
		Before: func(c *cli.Context) error {
			built, err := newApp(c)
			if err != nil {
				return err
			}
			a = built
			return nil
		},
		After: func(c *cli.Context) error {
			if a != nil {
				a.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			syncCommand(&a),
			syncAllCommand(&a),
			queryCommand(&a),
			statusCommand(&a),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kotobasyncd:", err)
		os.Exit(1)
	}
}

func syncCommand(a **app) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "update one series to the latest manifest version",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "series", Required: true, Usage: "words|kanji|names"},
			&cli.StringFlag{Name: "lang", Value: "en"},
			&cli.BoolFlag{Name: "now", Usage: "skip the offline gate (coalescing still applies)"},
			&cli.BoolFlag{Name: "force", Usage: "bypass the manifest cache"},
		},
		Action: func(c *cli.Context) error {
			series := model.MajorDataSeries(c.String("series"))
			if !validMajorSeries(series) {
				return fmt.Errorf("unknown series %q", c.String("series"))
			}

			ctx := context.Background()
			if err := (*a).sup.UpdateWithRetry(ctx, series, c.String("lang"), c.Bool("now") || (*a).cfg.UpdateNow); err != nil {
				return fmt.Errorf("sync %s: %w", series, err)
			}
			fmt.Fprintf(c.App.Writer, "%s: ok\n", series)
			return nil
		},
	}
}

func syncAllCommand(a **app) *cli.Command {
	return &cli.Command{
		Name:  "sync-all",
		Usage: "update every major series concurrently",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Value: "en"},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			if err := (*a).coord.UpdateAll(ctx, model.AllMajorSeries, c.String("lang")); err != nil {
				return fmt.Errorf("sync-all: %w", err)
			}
			fmt.Fprintln(c.App.Writer, "ok")
			return nil
		},
	}
}

func validMajorSeries(s model.MajorDataSeries) bool {
	for _, known := range model.AllMajorSeries {
		if known == s {
			return true
		}
	}
	return false
}

func statusCommand(a **app) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print the lifecycle state of every series",
		Action: func(c *cli.Context) error {
			for _, series := range model.AllSeries {
				v, err := (*a).store.GetDataVersion(series)
				if err != nil {
					return err
				}
				if v == nil {
					fmt.Fprintf(c.App.Writer, "%-10s empty\n", series)
					continue
				}
				fmt.Fprintf(c.App.Writer, "%-10s %s (lang=%s)\n", series, v.VersionNumber, v.Lang)
			}
			return nil
		},
	}
}

func queryCommand(a **app) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "look up records in the local replica",
		Subcommands: []*cli.Command{
			{
				Name:      "words",
				Usage:     "getWords(search)",
				ArgsUsage: "<term>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "prefix", Usage: "match startsWith instead of exact"},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: func(c *cli.Context) error {
					term := strings.Join(c.Args().Slice(), " ")
					if term == "" {
						return fmt.Errorf("query words: missing <term>")
					}
					matches, err := (*a).eng.GetWords(term, c.Bool("prefix"), c.Int("limit"))
					if err != nil {
						return err
					}
					for _, m := range matches {
						w := shape.Word(m)
						printWord(c, w)
					}
					return nil
				},
			},
			{
				Name:      "kanji",
				Usage:     "getKanji({kanji:[...]})",
				ArgsUsage: "<char...>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Value: "en"},
				},
				Action: func(c *cli.Context) error {
					chars := []rune(strings.Join(c.Args().Slice(), ""))
					if len(chars) == 0 {
						return fmt.Errorf("query kanji: missing <char>")
					}
					lang := c.String("lang")
					results, err := (*a).eng.GetKanji(chars, lang, func(msg string) {
						fmt.Fprintln(c.App.ErrWriter, "warning:", msg)
					})
					if err != nil {
						return err
					}
					for _, k := range results {
						printKanji(c, k)
					}
					return nil
				},
			},
			{
				Name:      "names",
				Usage:     "getNames(search)",
				ArgsUsage: "<term>",
				Action: func(c *cli.Context) error {
					term := strings.Join(c.Args().Slice(), " ")
					if term == "" {
						return fmt.Errorf("query names: missing <term>")
					}
					matches, err := (*a).eng.GetNames(term)
					if err != nil {
						return err
					}
					for _, m := range matches {
						n := shape.Name(m)
						fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\n", n.ID, strings.Join(n.Kanji, "/"), strings.Join(n.Kana, "/"))
					}
					return nil
				},
			},
		},
	}
}

func printWord(c *cli.Context, w *shape.WordResult) {
	fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\n", w.ID, strings.Join(w.Kanji, "/"), strings.Join(w.Kana, "/"))
	for i, s := range w.Senses {
		glosses := make([]string, len(s.Glosses))
		for gi, g := range s.Glosses {
			glosses[gi] = g.Text
		}
		fmt.Fprintf(c.App.Writer, "  %d. %s\n", i+1, strings.Join(glosses, "; "))
	}
}

func printKanji(c *cli.Context, k *shape.KanjiResult) {
	fmt.Fprintf(c.App.Writer, "%s\ton:%s kun:%s meanings:%s\n",
		string(k.Codepoint), strings.Join(k.OnReadings, " "), strings.Join(k.KunReadings, " "), strings.Join(k.Meanings, ", "))
	if k.Radical != nil {
		fmt.Fprintf(c.App.Writer, "  radical: %s (%s)\n", k.Radical.ID, strings.Join(k.Radical.Meanings, ", "))
	}
	for _, comp := range k.Components {
		fmt.Fprintf(c.App.Writer, "  component %s: %s\n", string(comp.Codepoint), describeComponent(comp))
	}
}

func describeComponent(c shape.Component) string {
	switch {
	case c.Radical != nil:
		if c.IsOwnRadical {
			return "own radical " + c.Radical.ID
		}
		return "radical " + c.Radical.ID
	case c.Kanji != nil:
		return "kanji " + strconv.QuoteRune(c.Kanji.Codepoint)
	case c.Label != "":
		return c.Label
	case c.Reading != "":
		return c.Reading
	default:
		return "unresolved"
	}
}
