package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <url>...",
	Short: "Add one or more model URLs to the download queue",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		added := current.queue.AddMany(args)
		log.Infof("enqueued %d of %d url(s)", added, len(args))
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}
