package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analysis records",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis records for a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := cmd.Flags().GetString("user")
		if err != nil {
			return fmt.Errorf("failed to read 'user' flag: %w", err)
		}
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		hist, err := svc.History()
		if err != nil {
			return err
		}
		if hist == nil {
			return fmt.Errorf("history store not configured, set history_dir in the config file")
		}

		records, err := hist.Analyses(cmd.Context(), user)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(records)
		}
		for _, r := range records {
			verdict := "real"
			if r.IsDeepfake {
				verdict = "fake"
			}
			fmt.Printf("%s  %s  %s (%.4f)\n",
				r.AnalyzedAt.Format("2006-01-02 15:04:05"), r.ID, verdict, r.Confidence)
		}
		return nil
	},
}

func init() {
	historyListCmd.Flags().String("user", "", "user ID to list records for")
	historyCmd.AddCommand(historyListCmd)
	rootCmd.AddCommand(historyCmd)
}
