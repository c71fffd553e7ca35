package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/engine"
	"phdhunt-engine/internal/poll"
)

var (
	scrapeSources  []string
	scrapeMaxPages int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one collection over the enabled sources and print the report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		cfg := rt.cfg
		if err := config.Overlay(&cfg, poll.Request{Sources: scrapeSources, MaxPages: scrapeMaxPages}.Overlay()); err != nil {
			return err
		}
		cfg, v := config.NormalizeAndValidate(cfg)
		if err := v.Err(); err != nil {
			return err
		}

		sources, err := poll.BuildSources(cfg)
		if err != nil {
			return err
		}
		eng := engine.New(rt.db, poll.EngineOptions(cfg, rt.locker, rt.sinks, slog.Default()))

		rep, err := eng.Run(cmd.Context(), sources)
		printReport(rep)
		return err
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeSources, "source", nil, "only these sources (repeatable)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "page cap per feed for this run")
	rootCmd.AddCommand(scrapeCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printReport(rep domain.RunReport) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("run %s: %s in %s", rep.RunID, rep.Status, rep.Duration.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Source", "Fetched", "New", "Updated", "Invalid", "Pages", "Failed pages", "Parse errors", "Feeds"})
	for _, s := range rep.Sources {
		var states []string
		for _, f := range s.Feeds {
			states = append(states, string(f.State))
		}
		name := string(s.Source)
		if s.Failed {
			name += " (failed)"
		}
		t.AppendRow(table.Row{name, s.Fetched, s.New, s.Updated, s.Invalid, s.PagesFetched, s.FailedPages, s.ParseErrors, strings.Join(states, " ")})
	}
	t.AppendFooter(table.Row{"total", rep.Fetched(), rep.Inserted, rep.Updated})
	t.Render()

	for _, e := range rep.Errors {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
	if rep.Fatal != "" {
		fmt.Fprintln(os.Stderr, "fatal:", rep.Fatal)
	}
}
