package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"phdhunt-engine/internal/httpapi"
)

var (
	listCountry, listDiscipline, listFunding string
	listRegion, listSource, listQuery        string
	listWindow, listSince, listSort          string
	listLimit                                int
	listJSON                                 bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored listings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		q := map[string][]string{}
		for k, v := range map[string]string{
			"country": listCountry, "discipline": listDiscipline, "funding": listFunding,
			"region": listRegion, "source": listSource, "q": listQuery,
			"window": listWindow, "since": listSince, "sort": listSort,
		} {
			if v != "" {
				q[k] = []string{v}
			}
		}
		if listLimit > 0 {
			q["limit"] = []string{fmt.Sprint(listLimit)}
		}
		f, err := httpapi.ParseFilter(q, time.Now().UTC())
		if err != nil {
			return err
		}

		listings, err := rt.db.List(cmd.Context(), f)
		if err != nil {
			return err
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(listings)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Title", "Institution", "Country", "Discipline", "Funding", "Deadline", "Source"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
			{Number: 2, WidthMax: 30, WidthMaxEnforcer: text.WrapSoft},
		})
		for _, l := range listings {
			deadline := l.DeadlineText
			if l.Deadline != nil {
				deadline = l.Deadline.Format(time.DateOnly)
			}
			t.AppendRow(table.Row{l.Title, l.Institution, l.Country, l.Discipline, l.FundingType, deadline, l.Source})
		}
		t.AppendFooter(table.Row{fmt.Sprintf("%d listings", len(listings))})
		t.Render()
		return nil
	},
}

var pruneOlderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete listings not seen by any run for a while.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.db.PruneStale(cmd.Context(), time.Now().Add(-pruneOlderThan))
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d listings\n", n)
		return nil
	},
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listCountry, "country", "", "country name")
	f.StringVar(&listDiscipline, "discipline", "", "discipline tag (substring)")
	f.StringVar(&listFunding, "funding", "", "rolling | fully_funded | csc | position | unknown")
	f.StringVar(&listRegion, "region", "", "europe | australia | north_america | asia | other")
	f.StringVar(&listSource, "source", "", "euraxess | scholarshipdb | findaphd")
	f.StringVarP(&listQuery, "query", "q", "", "text in title, institution or snippet")
	f.StringVar(&listWindow, "window", "all", "24h | 7d | 30d | all")
	f.StringVar(&listSince, "since", "", "first seen on or after (YYYY-MM-DD)")
	f.StringVar(&listSort, "sort", "seen", "seen | deadline | title")
	f.IntVar(&listLimit, "limit", 100, "max rows")
	f.BoolVar(&listJSON, "json", false, "print JSON")
	rootCmd.AddCommand(listCmd)

	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 90*24*time.Hour, "age since last seen")
	rootCmd.AddCommand(pruneCmd)
}
