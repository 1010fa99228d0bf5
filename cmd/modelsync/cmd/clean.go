package cmd

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove leftover .tmp partial-download files from the storage root",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := current.cfg.SavePath
		if root == "" {
			log.Warn("SavePath is not configured, nothing to clean")
			return nil
		}
		info, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return os.ErrInvalid
		}

		var removed, failed int
		err = filepath.Walk(root, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				log.WithError(walkErr).Warnf("error accessing %s during scan", path)
				return nil
			}
			if fi.IsDir() || !strings.HasSuffix(strings.ToLower(fi.Name()), ".tmp") {
				return nil
			}
			if rmErr := os.Remove(path); rmErr != nil {
				log.WithError(rmErr).Warnf("failed to remove %s", path)
				failed++
				return nil
			}
			removed++
			return nil
		})
		if err != nil {
			return err
		}
		log.Infof("clean finished: removed %d .tmp file(s), %d failure(s)", removed, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
