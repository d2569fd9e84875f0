package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/czadmedia/FileIndexer/internal/config"
	"github.com/czadmedia/FileIndexer/internal/processor"
	"github.com/czadmedia/FileIndexer/internal/tokenizer"
	"github.com/czadmedia/FileIndexer/internal/walker"
	"github.com/czadmedia/FileIndexer/internal/watcher"
	"github.com/czadmedia/FileIndexer/pkg/fileindexer"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Index the given paths and print index statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			svc, bar, err := newService(cfg, args)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			svc.Index(args...)
			if err := svc.Wait(cmd.Context()); err != nil {
				return err
			}
			_ = bar.Finish()

			dump := svc.Dump()
			files := make(map[string]struct{})
			for _, paths := range dump {
				for _, p := range paths {
					files[p] = struct{}{}
				}
			}
			fmt.Printf("\nIndexed %d files, %d distinct tokens\n", len(files), len(dump))
			return nil
		},
	}
	return cmd
}

// newService builds a service from config with a progress bar sized to
// the files discoverable under roots.
func newService(cfg *config.Config, roots []string) (*fileindexer.Service, *progressbar.ProgressBar, error) {
	w := walker.New(walker.Options{
		ExcludePatterns: cfg.Paths.Exclude,
		MaxFileSize:     cfg.Indexing.MaxFileSize,
	})

	total := 0
	for _, root := range roots {
		total += len(w.Files(root))
	}
	bar := progressbar.Default(int64(total), "indexing")

	debounce, err := cfg.DebounceWindow()
	if err != nil {
		return nil, nil, err
	}

	svc, err := fileindexer.New(
		fileindexer.WithWorkers(cfg.Indexing.Workers),
		fileindexer.WithCacheSize(cfg.Indexing.CacheSize),
		fileindexer.WithWalker(w),
		fileindexer.WithProcessor(processor.New(tokenizer.NewWord(),
			processor.Options{ChunkSize: cfg.Indexing.ChunkSize})),
		fileindexer.WithWatcher(watcher.NewFS(watcher.Options{EventBufferSize: cfg.Watch.EventBuffer})),
		fileindexer.WithDebounce(debounce),
		fileindexer.WithProgressFunc(func(string) { _ = bar.Add(1) }),
	)
	if err != nil {
		return nil, nil, err
	}
	return svc, bar, nil
}
