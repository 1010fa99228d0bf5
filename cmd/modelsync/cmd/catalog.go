// catalog commands (dupes, orphans, usage) read the storage layout without
// mutating it.
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"modelsync/internal/helpers"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "List models with more than one copy on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := current.layout.FindDuplicates()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("no duplicates found")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("%s (%s/%s) — %d copies\n", g.Name, g.Type, g.BaseModel, len(g.Models))
			for _, m := range g.Models {
				fmt.Printf("  %s\n", m.Path)
			}
		}
		return nil
	},
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List model files on disk with no metadata.json sibling",
	RunE: func(cmd *cobra.Command, args []string) error {
		orphans, err := current.layout.FindOrphans()
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			fmt.Println("no orphans found")
			return nil
		}
		for _, path := range orphans {
			fmt.Println(path)
		}
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show filesystem usage and per-category storage breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		total, free, perCategory, err := current.layout.Usage()
		if err != nil {
			return err
		}
		fmt.Printf("filesystem: %s total, %s free\n", helpers.BytesToSize(uint64(total)), helpers.BytesToSize(uint64(free)))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tSIZE")
		for category, size := range perCategory {
			fmt.Fprintf(w, "%s\t%s\n", category, helpers.BytesToSize(uint64(size)))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(dupesCmd, orphansCmd, usageCmd)
}
