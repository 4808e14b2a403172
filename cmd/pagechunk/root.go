package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pagechunk/internal/config"
	"github.com/dgallion1/pagechunk/internal/interval"
	"github.com/dgallion1/pagechunk/internal/logging"
	"github.com/dgallion1/pagechunk/internal/pipeline"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pagechunk",
	Short: "Chunk page-level markdown into breadcrumb-tagged retrieval chunks",
	Long: `pagechunk turns the per-page markdown an extractor produces into
size-bounded chunks that keep tables, code, formulas and images whole,
carry their header path, and are stitched across page breaks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		log = logging.New(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json or console)")
}

// newProcessor builds the document processor described by cfg.
func newProcessor(cfg *config.Config, log zerolog.Logger) (*pipeline.Processor, error) {
	patterns, err := interval.Compile(cfg.Pipeline.PageMarker)
	if err != nil {
		return nil, fmt.Errorf("page marker: %w", err)
	}
	return pipeline.NewProcessor(patterns, pipeline.Options{
		Chunking:         cfg.Chunking,
		DedupWindow:      cfg.Pipeline.DedupWindow,
		CarryBreadcrumbs: cfg.Pipeline.CarryBreadcrumbs,
	}, log)
}
