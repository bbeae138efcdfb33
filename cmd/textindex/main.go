// Command textindex works on index snapshots offline: it builds them from
// document files or the Postgres document table, searches them, converts
// them to and from JSON and publishes document events to Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/joho/godotenv"
)

type command struct {
	summary string
	run     func(ctx context.Context, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"build":   {"index documents from a file or postgres and save a snapshot", runBuild},
	"search":  {"search the saved snapshot", runSearch},
	"analyze": {"show the terms the pipeline produces for some text", runAnalyze},
	"export":  {"write the saved snapshot as JSON", runExport},
	"import":  {"load a JSON snapshot and save it to the snapshot store", runImport},
	"publish": {"publish document upserts or deletes to kafka", runPublish},
	"stats":   {"print document and term counts of the saved snapshot", runStats},
}

func main() {
	global := flag.NewFlagSet("textindex", flag.ExitOnError)
	configPath := global.String("config", "", "path to YAML config file")
	global.Usage = usage
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = cmd.run(ctx, cfg, args[1:])
	stop()
	if err != nil {
		slog.Error("command failed", "command", args[0], "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: textindex [-config file] <command> [flags]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].summary)
	}
}
