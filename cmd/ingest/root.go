package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/humanoid-academy/coursebot/engine/ingest"
	"github.com/humanoid-academy/coursebot/pkg/config"
)

// flags are the command-line overrides shared by every subcommand. Zero
// values leave the configuration untouched.
type flags struct {
	envFile   string
	dir       string
	batchSize int
	chunkSize int
	overlap   int
	dryRun    bool
	verbose   bool
	debounce  time.Duration
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "coursebot-ingest",
		Short: "Load course pages into the vector index",
		Long: `Discovers markdown pages under the docs directory, splits them into
overlapping word windows, embeds every passage and upserts the points into
the configured Qdrant collection.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file applied before reading the environment")
	pf.StringVarP(&f.dir, "dir", "d", "", "docs directory (default $DOCS_DIR)")
	pf.IntVar(&f.batchSize, "batch-size", ingest.UpsertBatchSize, "points per upsert call")
	pf.IntVar(&f.chunkSize, "chunk-size", 0, "words per passage (default $CHUNK_SIZE)")
	pf.IntVar(&f.overlap, "overlap", 0, "words shared by neighbouring passages (default $CHUNK_OVERLAP)")
	pf.BoolVar(&f.dryRun, "dry-run", false, "embed into an in-memory index instead of Qdrant")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(f), newRebuildCmd(f), newWatchCmd(f))
	return root
}

// load reads the configuration and applies the command-line overrides.
func (f *flags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return config.Config{}, err
	}
	if f.dir != "" {
		cfg.DocsDir = f.dir
	}
	if cmd.Flags().Changed("chunk-size") {
		cfg.Retrieval.ChunkSize = f.chunkSize
	}
	if cmd.Flags().Changed("overlap") {
		cfg.Retrieval.ChunkOverlap = f.overlap
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (f *flags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ingest every page once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.runOnce(cmd, func(ctx context.Context, w *workspace) (ingest.Summary, error) {
				return w.pipeline.Run(ctx, w.root)
			})
		},
	}
}

func newRebuildCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Drop the collection and ingest from scratch",
		Long: `Deletes the collection, recreates it at the embedder's dimension and
ingests every page. Queries served during a rebuild see a partial index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.runOnce(cmd, func(ctx context.Context, w *workspace) (ingest.Summary, error) {
				return w.pipeline.Rebuild(ctx, w.root)
			})
		},
	}
}

func (f *flags) runOnce(cmd *cobra.Command, do func(context.Context, *workspace) (ingest.Summary, error)) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	w, err := open(ctx, cfg, f, f.logger(cmd))
	if err != nil {
		return err
	}
	defer w.close()

	s, err := do(ctx, w)
	s.Collection = w.collection
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(s, f.dryRun))
	if err != nil {
		return fmt.Errorf("ingest %s: %w", w.root, err)
	}
	return nil
}

func newWatchCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest once, then re-ingest pages as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := f.logger(cmd)
			w, err := open(ctx, cfg, f, log)
			if err != nil {
				return err
			}
			defer w.close()

			s, err := w.pipeline.Run(ctx, w.root)
			s.Collection = w.collection
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(s, f.dryRun))
			if err != nil {
				return fmt.Errorf("ingest %s: %w", w.root, err)
			}

			watcher := ingest.NewWatcher(w.pipeline, w.root, f.debounce)
			log.Info("watching for changes", "root", w.root, "debounce", f.debounce)
			return watcher.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&f.debounce, "debounce", ingest.DefaultDebounce, "quiet period before a changed page is re-ingested")
	return cmd
}
