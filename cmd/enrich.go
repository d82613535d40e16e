package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/jobsync/internal/enrich"
	"github.com/sells-group/jobsync/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <account-id>",
	Short: "Enrich a single company with contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		website, _ := cmd.Flags().GetString("website")
		contacts, _ := cmd.Flags().GetInt("contacts")
		filter, _ := cmd.Flags().GetString("filter")
		force, _ := cmd.Flags().GetBool("force")

		if website == "" {
			return eris.New("--website is required")
		}

		result, err := env.Orchestrator.EnrichCompany(ctx, enrich.EnrichParams{
			CompanyID:      args[0],
			CompanyName:    name,
			Website:        website,
			MaxContacts:    contacts,
			FilterType:     model.FilterType(filter),
			SkipDuplicates: true,
			Force:          force,
		})
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	enrichCmd.Flags().String("name", "", "company name")
	enrichCmd.Flags().String("website", "", "company website URL (required)")
	enrichCmd.Flags().Int("contacts", 0, "max contacts to create (default 10)")
	enrichCmd.Flags().String("filter", "", "contact filter: all, managers, executives")
	enrichCmd.Flags().Bool("force", false, "search even if the company has contacts or is marked exhausted")
	rootCmd.AddCommand(enrichCmd)
}
