package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"modelsync/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history [url]",
	Short: "Show the job ledger: every terminal outcome, or one URL's entry",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.ledger == nil {
			return errors.New("job ledger is not configured (set DatabasePath)")
		}
		if len(args) == 1 {
			entry, err := current.ledger.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", entry.Url, entry.Status, entry.CompletedAt.Format("2006-01-02 15:04:05"), entry.Path)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "URL\tSTATUS\tCOMPLETED\tPATH")
		err := current.ledger.All(func(entry models.LedgerEntry) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Url, entry.Status, entry.CompletedAt.Format("2006-01-02 15:04:05"), entry.Path)
		})
		if err != nil {
			return err
		}
		return w.Flush()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over scanned models by name, creator, or tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.index == nil {
			return errors.New("search index is not configured (set BleveIndexPath or SavePath)")
		}
		hits, err := current.index.Search(args[0])
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, path := range hits {
			fmt.Println(path)
		}
		return nil
	},
}

var bandwidthCmd = &cobra.Command{
	Use:   "bandwidth",
	Short: "Print the current rolling bandwidth window",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("current rate: %.2f bytes/sec\n", current.bandwidth.CurrentRate())
		for _, s := range current.bandwidth.GetBandwidthHistory() {
			fmt.Printf("  %s  +%d bytes\n", s.Timestamp.Format("15:04:05"), s.BytesDelta)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, searchCmd, bandwidthCmd)
}
