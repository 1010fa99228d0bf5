package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the pending download queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending jobs by priority (in-flight jobs are not listed)",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PRIORITY\tSTATUS\tPROGRESS\tURL")
		for _, url := range current.queue.Pending() {
			task, ok := current.queue.Get(url)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%d%%\t%s\n", task.Priority, task.Status, task.ModelProgress, task.Url)
		}
		w.Flush()
	},
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <url> <position>",
	Short: "Move a pending job to a new position in the queue",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			log.WithError(err).Fatal("position must be an integer")
		}
		current.queue.MoveToPosition(args[0], pos)
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <url>",
	Short: "Cancel a pending or in-flight job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if current.manager.CancelDownload(args[0]) {
			log.Infof("canceled %s", args[0])
		} else {
			log.Warnf("%s was not queued or in flight", args[0])
		}
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Cancel every pending job and empty the queue",
	Run: func(cmd *cobra.Command, args []string) {
		current.manager.CancelAll()
		log.Info("queue cleared")
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd, queueMoveCmd, queueCancelCmd, queueClearCmd)
}
