package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"townhall-comments/pkg/harvest"
	"townhall-comments/pkg/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		listURL   = flag.String("list-url", harvest.DefaultListURL, "Comment listing endpoint")
		total     = flag.Int("total", harvest.DefaultTotalComments, "Total number of comments to harvest")
		perPage   = flag.Int("per-page", harvest.DefaultPerPage, "Comments requested per listing page")
		startPage = flag.Int("start-page", 1, "Listing page to start from (manual resume after a failed run)")
		chunkSize = flag.Int("chunk", harvest.DefaultChunkSize, "Number of comments fetched concurrently per chunk")
		out       = flag.String("out", harvest.DefaultOutputPath, "Output JSONL file")
		logLevel  = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		pretty    = flag.Bool("pretty", true, "Human-readable console logging")
	)
	flag.Parse()

	logging.Setup(logging.Config{Level: *logLevel, Pretty: *pretty})

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create output directory")
		}
	}

	cfg := harvest.Config{
		ListURL:       *listURL,
		OutputPath:    *out,
		TotalComments: *total,
		PerPage:       *perPage,
		StartPage:     *startPage,
		ChunkSize:     *chunkSize,
	}

	runner, err := harvest.NewRunner(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up harvest")
	}

	start := time.Now()
	log.Info().
		Str("url", cfg.ListURL).
		Int("total", cfg.TotalComments).
		Int("start_page", cfg.StartPage).
		Str("out", cfg.OutputPath).
		Msg("Starting public comment harvest")

	if err := runner.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Harvest failed")
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Done")
}
