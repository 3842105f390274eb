package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/logs"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/report"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/storage"
)

var (
	historyLimit int
	historyDB    string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List archived runs or show one report",
	Long: `Without arguments, lists the most recent archived runs. With a run
ID, prints that run's full report in the format selected by --output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logs.Setup(debug)

		config := storage.DefaultArchiveConfig()
		if historyDB != "" {
			config.DBPath = historyDB
		}
		store, err := storage.NewStore(config)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			return showRun(store, args[0])
		}
		return listRuns(store)
	},
}

func showRun(store *storage.Store, runID string) error {
	rep, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	if strings.ToLower(outputFormat) == "json" {
		return report.WriteJSON(os.Stdout, *rep)
	}
	fmt.Println(report.Render(*rep))
	return nil
}

func listRuns(store *storage.Store) error {
	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}

	if strings.ToLower(outputFormat) == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no archived runs")
		return nil
	}

	fmt.Printf("%-38s %-28s %-20s %-9s %-8s %s\n",
		"RUN ID", "TARGET", "STARTED", "DURATION", "VERDICT", "VIOLATIONS")
	for _, r := range runs {
		fmt.Printf("%-38s %-28s %-20s %-9s %-8s %d\n",
			r.RunID,
			r.Namespace+"/"+r.Autoscaler,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Verdict,
			r.Violations)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20,
		"maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyDB, "db", "",
		"path to the run archive (default: ~/.hpa-verify/runs.db)")
}
