// Command filesource runs connector operations against a configured source:
// probe its state, discover a dataset, list a folder, check freshness, or
// drop a table.
//
// Usage:
//
//	filesource [flags] state
//	filesource [flags] discover <dotted.table.path>
//	filesource [flags] list [dotted.folder.path]
//	filesource [flags] check <dotted.table.path>
//	filesource [flags] drop <dotted.table.path>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/internal/ratelimiter"
	"github.com/skonto/filesource/pkg/catalog"
	"github.com/skonto/filesource/pkg/config"
	"github.com/skonto/filesource/pkg/connector"
	"github.com/skonto/filesource/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	identity := flag.String("identity", "", "Identity to run the operation as (requires impersonation)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: filesource [flags] <state|discover|list|check|drop> [path]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := configureLogOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure log output: %v\n", err)
		os.Exit(1)
	}

	// Cancel on SIGINT/SIGTERM so long permission or listing runs stop
	// cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, cfg, flag.Args(), *identity); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, identity string) error {
	factory, err := config.CreateFilesystemFactory(ctx, &cfg.Filesystem)
	if err != nil {
		return err
	}

	cat, err := config.CreateCatalog(ctx, &cfg.Catalog)
	if err != nil {
		return err
	}
	if closer, ok := cat.(io.Closer); ok {
		defer closer.Close()
	}

	var limiter *ratelimiter.ProbeLimiter
	if cfg.Permissions.ProbesPerSecond > 0 {
		limiter = ratelimiter.New(cfg.Permissions.ProbesPerSecond, cfg.Permissions.ProbeBurst)
	}

	var sink connector.Metrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		sink = metrics.NewConnectorMetrics()
		srv := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
	}

	conn, err := connector.New(connector.Config{
		Name:                 cfg.Source.Name,
		RootPath:             cfg.Source.RootPath,
		ImpersonationEnabled: cfg.Source.ImpersonationEnabled,
		ProcessIdentity:      cfg.Source.ProcessIdentity,
		ViewFileMode:         os.FileMode(cfg.Source.ViewFileMode),
	}, factory, cat, nil, limiter, sink)
	if err != nil {
		return err
	}
	if err := conn.Start(ctx); err != nil {
		return err
	}

	op, args := args[0], args[1:]
	switch op {
	case "state":
		state := conn.State(ctx)
		fmt.Printf("source state: %s", state.Status)
		if state.Message != "" {
			fmt.Printf(" (%s)", state.Message)
		}
		fmt.Println()
		return nil

	case "discover":
		logical, err := logicalArg(cfg, args)
		if err != nil {
			return err
		}
		return runDiscover(ctx, conn, cat, logical, identity)

	case "list":
		logical := connector.LogicalPath{sourceName(cfg)}
		if len(args) > 0 {
			logical, err = logicalArg(cfg, args)
			if err != nil {
				return err
			}
		}
		entities, err := conn.List(ctx, logical, identity)
		if err != nil {
			return err
		}
		for _, e := range entities {
			fmt.Printf("%-14s %s\n", e.Type, e.Name)
		}
		return nil

	case "check":
		logical, err := logicalArg(cfg, args)
		if err != nil {
			return err
		}
		return runCheck(ctx, conn, cat, logical)

	case "drop":
		logical, err := logicalArg(cfg, args)
		if err != nil {
			return err
		}
		if err := conn.DropTable(ctx, logical, identity); err != nil {
			return err
		}
		if err := cat.DeleteDataset(ctx, catalogKey(logical)); err != nil {
			return err
		}
		fmt.Printf("dropped %s\n", logical)
		return nil

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func runDiscover(ctx context.Context, conn *connector.Connector, cat catalog.Catalog, logical connector.LogicalPath, identity string) error {
	descriptor, err := conn.Discover(ctx, logical, nil, identity, connector.DiscoverOptions{})
	if err != nil {
		return err
	}
	if descriptor == nil {
		return fmt.Errorf("no dataset at %s", logical)
	}

	record, err := descriptor.Record()
	if err != nil {
		return err
	}
	if err := cat.SaveDataset(ctx, record); err != nil {
		return err
	}

	fmt.Printf("dataset:  %s\n", descriptor.Key)
	fmt.Printf("format:   %s\n", descriptor.Format.Type)
	fmt.Printf("splits:   %d\n", len(descriptor.Splits))
	fmt.Printf("snapshot: %d entries\n", len(descriptor.UpdateKey.Entries))
	return nil
}

func runCheck(ctx context.Context, conn *connector.Connector, cat catalog.Catalog, logical connector.LogicalPath) error {
	record, err := cat.GetDataset(ctx, catalogKey(logical))
	if err != nil {
		return fmt.Errorf("dataset %s is not registered (discover it first): %w", logical, err)
	}

	result, err := conn.CheckFreshness(ctx, record)
	if err != nil {
		return err
	}
	fmt.Printf("freshness: %s\n", result.Status)

	switch result.Status {
	case connector.StatusChanged:
		updated, err := result.Descriptor.Record()
		if err != nil {
			return err
		}
		updated.ID = record.ID
		if err := cat.SaveDataset(ctx, updated); err != nil {
			return err
		}
		fmt.Printf("refreshed: %d splits\n", len(updated.Splits))
	case connector.StatusDeleted:
		if err := cat.DeleteDataset(ctx, record.Key); err != nil {
			return err
		}
		fmt.Println("removed from catalog")
	}
	return nil
}

func catalogKey(logical connector.LogicalPath) catalog.Key {
	return catalog.Key(logical)
}

// logicalArg parses a dotted path argument, prepending the source name
// when the argument omits it.
func logicalArg(cfg *config.Config, args []string) (connector.LogicalPath, error) {
	if len(args) != 1 {
		return nil, errors.New("expected exactly one dotted table path argument")
	}
	components := strings.Split(args[0], ".")
	if components[0] != sourceName(cfg) {
		components = append([]string{sourceName(cfg)}, components...)
	}
	return connector.LogicalPath(components), nil
}

func sourceName(cfg *config.Config) string {
	if cfg.Source.Name != "" {
		return cfg.Source.Name
	}
	return "source"
}

func configureLogOutput(output string) error {
	switch output {
	case "", "stdout":
		return nil
	case "stderr":
		logger.SetOutput(os.Stderr)
		return nil
	default:
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		logger.SetOutput(f)
		return nil
	}
}
