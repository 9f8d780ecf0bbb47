package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeSquared-Agency/Habitat/internal/config"
	"github.com/MikeSquared-Agency/Habitat/internal/export"
	"github.com/MikeSquared-Agency/Habitat/internal/labeler"
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

type options struct {
	configPath string
	in         string
	out        string
	workers    int
	weighted   bool
	upload     bool
	fromStore  bool
	rated      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config file")
	flag.StringVar(&opts.in, "in", "-", "JSON array of layout documents ('-' for stdin)")
	flag.StringVar(&opts.out, "out", "labels.csv", "CSV output path")
	flag.IntVar(&opts.workers, "workers", 0, "scoring goroutines (default from config)")
	flag.BoolVar(&opts.weighted, "weighted", false, "add the weighted aggregate column")
	flag.BoolVar(&opts.upload, "upload", false, "upload the CSV to the configured bucket")
	flag.BoolVar(&opts.fromStore, "from-store", false, "export stored rows from the database instead of scoring -in")
	flag.BoolVar(&opts.rated, "rated", false, "with -from-store, export only rows carrying an expert rating")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("labeling failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	var (
		vectors []scoring.ScoreVector
		err     error
	)
	if opts.fromStore {
		vectors, err = storedVectors(ctx, cfg, opts, logger)
	} else {
		vectors, err = labelInput(ctx, cfg, opts, logger)
	}
	if err != nil {
		return err
	}
	vetoed := 0
	for _, v := range vectors {
		if v.Vetoed {
			vetoed++
		}
	}

	var uploader export.Uploader
	if opts.upload {
		if !cfg.Storage.Enabled() {
			return errors.New("-upload needs storage.endpoint and storage.bucket")
		}
		mu, err := export.NewMinioUploader(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		uploader = mu
	}

	key, err := export.NewExporter(uploader, cfg.Storage.Prefix, nil, logger).Export(ctx, opts.out, vectors)
	if err != nil {
		return err
	}
	logger.Info("labeling complete", "rows", len(vectors), "vetoed", vetoed, "out", opts.out, "object", key)
	return nil
}

// labelInput scores the documents read from opts.in.
func labelInput(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) ([]scoring.ScoreVector, error) {
	params, err := scoring.ParamsFromConfig(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	engine, err := scoring.NewEngine(params, logger)
	if err != nil {
		return nil, err
	}

	data, err := readInput(opts.in)
	if err != nil {
		return nil, err
	}
	docs, err := layout.DecodeDocuments(data)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents in input")
	}

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Labeler.Workers
	}
	results, err := labeler.New(engine, nil, nil, nil, workers, logger).LabelBatch(ctx, docs, opts.weighted)
	if err != nil {
		return nil, err
	}
	vectors := make([]scoring.ScoreVector, len(results))
	for i, res := range results {
		vectors[i] = res.Vector
	}
	return vectors, nil
}

// storedVectors reads labeled rows, expert ratings included, back out of the database.
func storedVectors(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) ([]scoring.ScoreVector, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("-from-store needs database.url")
	}
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var filter store.ScoreFilter
	if opts.rated {
		rated := true
		filter.Rated = &rated
	}
	vectors, err := export.StoredVectors(ctx, db, filter)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no stored rows match")
	}
	logger.Info("stored rows loaded", "rows", len(vectors), "rated_only", opts.rated)
	return vectors, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
