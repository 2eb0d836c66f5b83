package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
)

var (
	listStatus string
	listUser   string
	listLimit  int
)

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "Inspect search records",
}

var searchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		searches, err := st.ListSearches(ctx, store.SearchFilter{
			Status: model.SearchStatus(listStatus),
			UserID: listUser,
			Limit:  listLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tPRODUCT\tPHASE\tPCT\tSTATUS\tCREATED")
		for _, s := range searches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				s.ID, s.UserID, truncate(s.ProductService, 32),
				s.Phase, s.ProgressPct, s.Status,
				s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	searchesListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	searchesListCmd.Flags().StringVar(&listUser, "user", "", "filter by user ID")
	searchesListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows")
	searchesCmd.AddCommand(searchesListCmd)
	rootCmd.AddCommand(searchesCmd)
}
