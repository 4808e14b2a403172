package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagechunk/internal/pipeline"
	"github.com/dgallion1/pagechunk/internal/source"
)

var (
	chunkOutputDir  string
	chunkTargetSize int
	chunkMinSize    int
	chunkMaxSize    int
	chunkNoMerge    bool
	chunkWorkers    int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk PATH...",
	Short: "Chunk documents and write one JSON file per document",
	Long: `Each PATH is a page directory (metadata.json plus page files), a
metadata.json file, or a single .md, .txt, .pdf, .docx, .html or .csv file.
Documents are processed in parallel; a failure in one does not stop the
others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVarP(&chunkOutputDir, "output", "o", ".", "output directory")
	chunkCmd.Flags().IntVar(&chunkTargetSize, "target-size", 0, "flush once a chunk reaches this many bytes")
	chunkCmd.Flags().IntVar(&chunkMinSize, "min-size", 0, "minimum bytes before a header change flushes")
	chunkCmd.Flags().IntVar(&chunkMaxSize, "max-size", 0, "text sections above this many bytes are split")
	chunkCmd.Flags().BoolVar(&chunkNoMerge, "no-merge", false, "disable merging across page breaks")
	chunkCmd.Flags().IntVar(&chunkWorkers, "workers", 0, "documents processed in parallel (default from config)")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("target-size") {
		cfg.Chunking.TargetSize = chunkTargetSize
	}
	if flags.Changed("min-size") {
		cfg.Chunking.MinSize = chunkMinSize
	}
	if flags.Changed("max-size") {
		cfg.Chunking.MaxSize = chunkMaxSize
	}
	if chunkNoMerge {
		cfg.Chunking.MergingEnabled = false
	}
	workers := cfg.Pipeline.WorkerCount
	if chunkWorkers > 0 {
		workers = chunkWorkers
	}

	proc, err := newProcessor(cfg, log)
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		failed []error
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, workers)
	for _, path := range args {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := chunkPath(proc, path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("document failed")
				mu.Lock()
				failed = append(failed, fmt.Errorf("%s: %w", path, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d documents failed: %w", len(failed), len(args), errors.Join(failed...))
	}
	return nil
}

func chunkPath(proc *pipeline.Processor, path string) error {
	start := time.Now()
	doc, err := source.ForPath(path, cfg.Source)
	if err != nil {
		return err
	}
	out := proc.Process(doc)
	written, err := out.WriteFile(chunkOutputDir)
	if err != nil {
		return err
	}
	log.Info().
		Str("document", out.Document).
		Int("pages", out.Statistics.Pages.Total).
		Int("chunks", out.TotalChunks).
		Int("duplicates_dropped", out.Statistics.DuplicatesDropped).
		Str("output", written).
		Dur("took", time.Since(start)).
		Msg("document written")
	return nil
}
