package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"modelsync/internal/storage"
)

var exportTorrent bool

var exportCmd = &cobra.Command{
	Use:   "export <path>... <dest>",
	Short: "Copy model directories into dest, optionally generating .torrent files",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args[:len(args)-1]
		dest := args[len(args)-1]

		summary, err := storage.Export(paths, dest)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d of %d path(s)\n", summary.SuccessCount, summary.SuccessCount+summary.FailedCount)
		for _, d := range summary.Details {
			if !d.Success {
				log.WithField("path", d.Path).Warnf("export failed: %s", d.Error)
				continue
			}
			if exportTorrent {
				torrentPath, magnet, terr := storage.ExportTorrent(d.Dest)
				if terr != nil {
					log.WithError(terr).WithField("path", d.Dest).Warn("failed to generate torrent")
					continue
				}
				fmt.Printf("  %s -> %s\n  magnet: %s\n", d.Path, torrentPath, magnet)
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Remove a model directory from the storage layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := storage.Delete(args[0]); err != nil {
			return err
		}
		if current.index != nil {
			if err := current.index.Delete(args[0]); err != nil {
				log.WithError(err).Warn("failed to remove entry from search index")
			}
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportTorrent, "torrent", false, "also generate a .torrent file and magnet URI for each exported path")
	rootCmd.AddCommand(exportCmd, deleteCmd)
}
