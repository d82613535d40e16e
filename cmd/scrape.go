package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape job postings and create accounts and jobs in the CRM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}

		searchTerm, _ := cmd.Flags().GetString("search-term")
		location, _ := cmd.Flags().GetString("location")
		results, _ := cmd.Flags().GetInt("results")
		hoursOld, _ := cmd.Flags().GetInt("hours-old")

		if searchTerm == "" {
			searchTerm = cfg.Ingest.SearchTerm
		}

		query := model.ScrapeQuery{
			SearchTerm:    searchTerm,
			Location:      location,
			ResultsWanted: results,
			HoursOld:      hoursOld,
			Country:       cfg.Ingest.Country,
		}

		zap.L().Info("starting scrape",
			zap.String("search_term", query.SearchTerm),
			zap.String("location", query.Location),
		)

		summary, err := env.Pipeline.Run(ctx, query)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	scrapeCmd.Flags().String("search-term", "", "job search term (default from config)")
	scrapeCmd.Flags().String("location", "", "location filter, e.g. \"Denver, CO\"")
	scrapeCmd.Flags().Int("results", 0, "number of postings to request (default from config)")
	scrapeCmd.Flags().Int("hours-old", 0, "maximum posting age in hours (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}
