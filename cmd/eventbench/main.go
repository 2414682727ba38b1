package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kode4food/eventchain"
)

type options struct {
	removeType     string
	producers      int
	events         int
	maxTimestamp   int64
	interval       int
	maxCheckpoints int
	verbose        bool
}

const defaultEventType = "teste"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "eventbench",
		Short: "Insert random events from concurrent producers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.IntVar(&opts.producers, "producers", 10, "concurrent producers")
	f.IntVar(&opts.events, "events", 35000, "events per producer")
	f.Int64Var(&opts.maxTimestamp, "max-timestamp", 2000000,
		"upper bound for random timestamps")
	f.IntVar(&opts.interval, "interval",
		eventchain.DefaultPaginationInterval, "checkpoint pagination interval")
	f.IntVar(&opts.maxCheckpoints, "max-checkpoints", 500,
		"checkpoint cap, 0 derives it from the store length")
	f.StringVar(&opts.removeType, "remove-type", "",
		"event type to remove once producers finish")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.maxTimestamp <= 0 {
		return fmt.Errorf("max-timestamp must be positive, got %d",
			opts.maxTimestamp)
	}
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := eventchain.DefaultConfig()
	cfg.Logger = logger
	cfg.PaginationInterval = opts.interval
	cfg.MaxCheckpoints = opts.maxCheckpoints

	store, err := eventchain.NewStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	start := time.Now()
	var g errgroup.Group
	for p := range opts.producers {
		g.Go(func() error {
			return produce(store, opts, p)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if opts.removeType != "" {
		err := store.RemoveAll(eventchain.EventType(opts.removeType))
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "execution time: %s\n", elapsed)
	_, _ = fmt.Fprintf(out, "count: %d\n", store.Count())
	_, _ = fmt.Fprintf(out, "length: %d\n", store.Length())
	_, _ = fmt.Fprintf(out, "sorted: %t\n", store.IsSorted())
	_, _ = fmt.Fprintf(out, "checkpoints: %d\n", store.Checkpoints())
	return nil
}

func produce(store *eventchain.Store, opts *options, id int) error {
	start := time.Now()
	for range opts.events {
		ev := &eventchain.Event{
			Type:      defaultEventType,
			Timestamp: rand.Int64N(opts.maxTimestamp),
		}
		if err := store.Insert(ev); err != nil {
			return err
		}
	}
	zap.L().Info("producer finished",
		zap.Int("producer", id),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
