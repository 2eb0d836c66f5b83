package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-engine/internal/model"
)

var (
	runSearchID   string
	runUserID     string
	runProduct    string
	runIndustries []string
	runCountries  []string
	runSearchType string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run orchestration for a single search",
	Long:  "Runs the full pipeline for an existing search by ID, or creates one inline from the product/industry/country flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		searchID := runSearchID
		if searchID == "" {
			if runProduct == "" {
				return eris.New("either --search-id or --product is required")
			}
			search := &model.Search{
				UserID:         runUserID,
				ProductService: runProduct,
				Industries:     runIndustries,
				Countries:      runCountries,
				SearchType:     model.SearchType(runSearchType),
			}
			if err := env.store.CreateSearch(ctx, search); err != nil {
				return eris.Wrap(err, "create search")
			}
			searchID = search.ID
			zap.L().Info("search created", zap.String("search_id", searchID))
		}

		_, runErr := env.orch.Run(ctx, searchID, runUserID)

		// The terminal record is worth printing even for a failed run.
		search, err := env.store.GetSearch(ctx, searchID)
		if err == nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(search)
		}

		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runSearchID, "search-id", "", "existing search ID to run")
	runCmd.Flags().StringVar(&runUserID, "user", "", "user ID owning the search")
	runCmd.Flags().StringVar(&runProduct, "product", "", "product or service to search for")
	runCmd.Flags().StringSliceVar(&runIndustries, "industries", nil, "target industries")
	runCmd.Flags().StringSliceVar(&runCountries, "countries", nil, "target countries")
	runCmd.Flags().StringVar(&runSearchType, "type", "customer", "search type: customer or supplier")
	rootCmd.AddCommand(runCmd)
}
