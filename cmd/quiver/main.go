// Command quiver is a small operations CLI for quiver applications: run
// searches, purge objects by query, and wait for indexing tasks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	quiver "github.com/quiverhq/quiver-go"
	"github.com/quiverhq/quiver-go/internal/config"
	logpkg "github.com/quiverhq/quiver-go/internal/logger"
	"github.com/quiverhq/quiver-go/internal/version"
)

const usage = `usage: quiver [flags] <command> [args]

commands:
  search <index> <text>              run a search and print hits as JSON
  delete-by-query <index> <filters>  delete every object matching the filters
  wait-task <index> <taskID>         block until the task is published

flags:
  -config path   config file (default quiver.yaml)
  -json          log in JSON instead of console format
  -timeout d     overall deadline, e.g. 30s, 5m (default none)
`

func main() {
	configPath := flag.String("config", "quiver.yaml", "config file path")
	jsonLogs := flag.Bool("json", false, "log in JSON format")
	timeout := flag.Duration("timeout", 0, "overall deadline, 0 means none")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(cfg.Logging.Level, *jsonLogs)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("quiver CLI",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("app_id", cfg.App.ID),
	)

	client, err := newClient(cfg)
	if err != nil {
		logger.Fatal("Failed to create client", zap.Error(err))
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := run(ctx, client, logger, flag.Args()); err != nil {
		logger.Fatal("Command failed", zap.Error(err))
	}
}

func newClient(cfg config.Config) (*quiver.Client, error) {
	opts := []quiver.Option{}
	if len(cfg.Hosts.Search) > 0 || len(cfg.Hosts.Write) > 0 {
		opts = append(opts, quiver.WithHosts(cfg.Hosts.Search, cfg.Hosts.Write))
	}
	if cfg.Cache.TTL() > 0 {
		opts = append(opts, quiver.WithSearchCacheTTL(cfg.Cache.TTL()))
	}
	if len(cfg.Cache.Redis) > 0 {
		opts = append(opts, quiver.WithSharedSearchCache(cfg.Cache.Redis, cfg.Cache.RedisPassword))
	}

	client, err := quiver.New(cfg.App.ID, cfg.App.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Enabled {
		client.EnableSearchCache()
	}
	return client, nil
}

func run(ctx context.Context, client *quiver.Client, logger *zap.Logger, args []string) error {
	switch cmd := args[0]; cmd {
	case "search":
		if len(args) != 3 {
			return fmt.Errorf("usage: quiver search <index> <text>")
		}
		return runSearch(ctx, client, args[1], args[2])
	case "delete-by-query", "purge":
		if len(args) != 3 {
			return fmt.Errorf("usage: quiver delete-by-query <index> <filters>")
		}
		return runPurge(ctx, client, logger, args[1], args[2])
	case "wait-task", "wait":
		if len(args) != 3 {
			return fmt.Errorf("usage: quiver wait-task <index> <taskID>")
		}
		taskID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task ID %q: %w", args[2], err)
		}
		return runWait(ctx, client, logger, args[1], taskID)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runSearch(ctx context.Context, client *quiver.Client, index, text string) error {
	res, err := client.Index(index).Search(ctx, quiver.NewQuery(text))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runPurge(ctx context.Context, client *quiver.Client, logger *zap.Logger, index, filters string) error {
	start := time.Now()
	q := quiver.NewQuery("")
	q.SetFilters(filters)

	if err := client.Index(index).DeleteByQuery(ctx, q); err != nil {
		return err
	}
	logger.Info("Purge finished",
		zap.String("index", index),
		zap.String("filters", filters),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func runWait(ctx context.Context, client *quiver.Client, logger *zap.Logger, index string, taskID int64) error {
	start := time.Now()
	status, err := client.Index(index).WaitTask(ctx, taskID)
	if err != nil {
		return err
	}
	logger.Info("Task published",
		zap.Int64("task_id", taskID),
		zap.String("status", status.Status),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
