// Command reldbd opens a database directory and keeps it live until
// interrupted, in the teacher's flag-parse-then-serve style. It exists
// to exercise reldb.Database as a standalone process; most consumers of
// this module will import package reldb directly instead.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bitdancer/reldb/reldb"
	"github.com/bitdancer/reldb/settings"
)

func printUsage() {
	fmt.Println("reldbd - an embedded relational-algebra database engine")
	fmt.Println("\nUsage:")
	fmt.Println("  reldbd [options]")
	fmt.Println("\nOptions:")
	flag.PrintDefaults()
}

func main() {
	args := settings.GetSettings()

	flag.StringVar(&args.DataDir, "datadir", args.DataDir, "Directory to store data files")
	flag.StringVar(&args.LogDir, "logdir", args.LogDir, "Directory to additionally write logs to (default: stdout only)")
	flag.StringVar(&args.TraceFile, "tracefile", args.TraceFile, "File to receive the per-statement store trace stream")
	flag.BoolVar(&args.Verbose, "verbose", args.Verbose, "Enable debug-level logging")
	flag.Usage = printUsage
	flag.Parse()

	logger, err := newLogger(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reldbd: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := os.MkdirAll(args.DataDir, 0o755); err != nil {
		sugar.Fatalw("could not create data directory", "dir", args.DataDir, "err", err)
	}

	db, err := reldb.Open(args.DataDir, nil, sugar)
	if err != nil {
		sugar.Fatalw("failed to open database", "err", err)
	}
	defer db.Close()

	if args.TraceFile != "" {
		f, err := os.OpenFile(args.TraceFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			sugar.Fatalw("failed to open trace file", "err", err)
		}
		defer f.Close()
		db.Trace(f)
	}

	names, err := db.ListRelations()
	if err != nil {
		sugar.Fatalw("failed to list relations", "err", err)
	}
	sugar.Infow("reldbd ready", "datadir", args.DataDir, "relations", len(names))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	sugar.Infow("shutting down")
}

func newLogger(args *settings.Arguments) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if args.Verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stdout"}
	if args.LogDir != "" {
		if err := os.MkdirAll(args.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, args.LogDir+"/reldbd.log")
	}
	return cfg.Build()
}
