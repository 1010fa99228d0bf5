// Package cmd implements the CLI host (C11): a Cobra command tree that is a
// pure consumer of the core packages. It never reaches into core internals,
// only the public API and observer interface, mirroring the boundary an
// external GUI would sit behind.
package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"modelsync/internal/bandwidth"
	"modelsync/internal/config"
	"modelsync/internal/ledger"
	"modelsync/internal/manager"
	"modelsync/internal/models"
	"modelsync/internal/queue"
	"modelsync/internal/remote"
	"modelsync/internal/search"
	"modelsync/internal/storage"
	"modelsync/internal/worker"
)

var cfgFile string
var logLevel string
var logFormat string

// app bundles every core collaborator the subcommands need. It is built once
// in PersistentPreRunE and torn down in PersistentPostRunE.
type app struct {
	cfg       models.Config
	layout    *storage.Layout
	client    *remote.Client
	bandwidth *bandwidth.Monitor
	queue     *queue.Queue
	ledger    *ledger.Ledger
	index     *search.Index
	worker    *worker.Worker
	manager   *manager.Manager
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "modelsync",
	Short: "Download orchestration engine for ML model artifacts",
	Long: `modelsync queues, downloads, and catalogs model artifacts from a
Civitai-style remote service: priority queue, bandwidth-aware worker pool,
filesystem storage layout, and an HTML gallery per downloaded model.`,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "logging format (text, json)")

	rootCmd.PersistentFlags().String("api-key", "", "remote service API key (overrides config)")
	_ = viper.BindPFlag("apikey", rootCmd.PersistentFlags().Lookup("api-key"))
	rootCmd.PersistentFlags().String("save-path", "", "root directory for the storage layout (overrides config)")
	_ = viper.BindPFlag("savepath", rootCmd.PersistentFlags().Lookup("save-path"))
}

func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if logFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func setup(cmd *cobra.Command, args []string) error {
	initLogging()

	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn("config file not found, using defaults and flags")
		} else {
			log.WithError(err).Warn("error reading config file")
		}
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if v := viper.GetString("apikey"); v != "" {
		cfg.ApiKey = v
	}
	if v := viper.GetString("savepath"); v != "" {
		cfg.SavePath = v
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.LogApiRequests {
		logPath := cfg.ApiLogPath
		if logPath == "" {
			logPath = filepath.Join(cfg.SavePath, "api.log")
		}
		lt, err := remote.NewLoggingTransport(transport, logPath)
		if err != nil {
			log.WithError(err).Warn("failed to enable API request logging")
		} else {
			transport = lt
		}
	}

	layout := storage.NewLayout(cfg.SavePath)
	client := remote.NewClient(cfg.ApiKey, transport)
	bw := bandwidth.NewMonitor(60)
	q := queue.New()
	w := worker.New(client, layout, bw, cfg)

	var led *ledger.Ledger
	if cfg.DatabasePath != "" {
		led, err = ledger.Open(cfg.DatabasePath)
		if err != nil {
			log.WithError(err).Warn("failed to open job ledger, history will be unavailable")
		}
	}

	var idx *search.Index
	indexPath := cfg.BleveIndexPath
	if indexPath == "" && cfg.SavePath != "" {
		indexPath = filepath.Join(cfg.SavePath, "modelsync.bleve")
	}
	if indexPath != "" {
		idx, err = search.OpenOrCreate(indexPath)
		if err != nil {
			log.WithError(err).Warn("failed to open search index, search will be unavailable")
		}
	}

	current = &app{
		cfg:       cfg,
		layout:    layout,
		client:    client,
		bandwidth: bw,
		queue:     q,
		ledger:    led,
		index:     idx,
		worker:    w,
		manager:   manager.New(q, w, bw, led),
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if current == nil {
		return nil
	}
	if current.ledger != nil {
		if err := current.ledger.Close(); err != nil {
			log.WithError(err).Warn("error closing job ledger")
		}
	}
	if current.index != nil {
		if err := current.index.Close(); err != nil {
			log.WithError(err).Warn("error closing search index")
		}
	}
	return nil
}
