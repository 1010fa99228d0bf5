package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the storage layout and refresh the search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := current.layout.Scan()
		if err != nil {
			return err
		}
		log.Infof("scanned %d model(s)", len(models))
		if current.index == nil {
			return nil
		}
		indexed := 0
		for _, m := range models {
			if err := current.index.IndexModel(m); err != nil {
				log.WithError(err).WithField("path", m.Path).Warn("failed to index model")
				continue
			}
			indexed++
		}
		log.Infof("indexed %d of %d model(s)", indexed, len(models))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
