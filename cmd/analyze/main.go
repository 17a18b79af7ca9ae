package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sizeview/sizeview/internal/config"
	"github.com/sizeview/sizeview/internal/logging"
	"github.com/sizeview/sizeview/internal/metrics"
	"github.com/sizeview/sizeview/internal/nav"
	"github.com/sizeview/sizeview/internal/scan"
	"github.com/sizeview/sizeview/internal/watch"
)

type options struct {
	configPath  string
	concurrency int
	wrap        bool
	strict      bool
	exclude     []string
	logFile     string
	logLevel    string
	metricsAddr string
	noWatch     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Browse the disk usage of a directory tree",
		Long: `Scans a directory tree and lists its entries by size.

Move with ↑/↓ (or j/k), open directories with →/l and go back with ←/h.
g and G jump to the first and last entry, r rescans the directory on screen.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), root, cfg)
		},
	}

	opts.register(cmd)
	return cmd
}

func (o *options) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.configPath, "config", "", "config file (default is $HOME/.config/sizeview/config.yaml)")
	flags.IntVar(&o.concurrency, "concurrency", 0, "maximum concurrent scan tasks (0 = number of CPUs)")
	flags.BoolVar(&o.wrap, "wrap", false, "wrap around when moving past the first or last entry")
	flags.BoolVar(&o.strict, "strict", false, "abort the scan on the first I/O error instead of skipping")
	flags.StringArrayVar(&o.exclude, "exclude", nil, "glob pattern of names or paths to skip (repeatable)")
	flags.StringVar(&o.logFile, "log-file", "", "write logs to this file")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.BoolVar(&o.noWatch, "no-watch", false, "do not watch the viewed directory for changes")
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	path := opts.configPath
	if path == "" {
		// Without a home directory there is no default file to read.
		path, _ = config.DefaultPath()
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if flags.Changed("wrap") {
		cfg.Wrap = opts.wrap
	}
	if flags.Changed("strict") {
		cfg.OnError = scan.Partial.String()
		if opts.strict {
			cfg.OnError = scan.Abort.String()
		}
	}
	if flags.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, opts.exclude...)
	}
	if flags.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.noWatch {
		cfg.Watch = false
	}
	return cfg, cfg.Validate()
}

// resolveRoot picks the start directory: the single argument or the working
// directory. The result is absolute with symlinks resolved.
func resolveRoot(args []string) (string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", target, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access %q: %w", target, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cannot analyze %q: %w", target, scan.ErrNotDirectory)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("cannot read %q: %w", target, err)
	}
	_ = f.Close()
	return abs, nil
}

func run(ctx context.Context, root string, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	scanMetrics := metrics.NewScan(reg)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
				logger.Error("metrics server", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}

	policy, err := scan.ParsePolicy(cfg.OnError)
	if err != nil {
		return err
	}
	scanner, err := scan.New(
		scan.WithConcurrency(cfg.Concurrency),
		scan.WithPolicy(policy),
		scan.WithExclude(cfg.Exclude...),
		scan.WithLogger(logger),
		scan.WithMetrics(scanMetrics),
	)
	if err != nil {
		return err
	}

	var watcher *watch.Watcher
	if cfg.Watch {
		if watcher, err = watch.New(logger); err != nil {
			logger.Warn("watching disabled", zap.Error(err))
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	navPolicy := nav.Clamp
	if cfg.Wrap {
		navPolicy = nav.Wrap
	}

	logger.Info("starting", zap.String("root", root), zap.Stringer("policy", policy), zap.Stringer("navigation", navPolicy))
	m := newModel(ctx, root, scanner, watcher, logger, nav.WithPolicy(navPolicy), nav.WithLogger(logger))
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("analyzer error: %w", err)
	}
	if fm, ok := final.(model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
