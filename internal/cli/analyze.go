package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codescan/internal/cache"
	"github.com/dshills/codescan/internal/config"
	"github.com/dshills/codescan/internal/corpus"
	"github.com/dshills/codescan/internal/errors"
	"github.com/dshills/codescan/internal/executor"
	"github.com/dshills/codescan/internal/logging"
	"github.com/dshills/codescan/internal/output"
	"github.com/dshills/codescan/internal/providers"
	"github.com/dshills/codescan/internal/redact"
	"github.com/dshills/codescan/internal/review"
	"github.com/dshills/codescan/internal/window"
)

// Analyze-only flags that do not map to a config key.
var (
	flagNoRedact    bool
	flagNoCache     bool
	flagNoProgress  bool
	flagFailOnError bool
)

// newCompleter builds the provider for a run. Tests replace it.
var newCompleter = func(ctx context.Context, cfg config.Config) (providers.Completer, error) {
	return providers.New(ctx, cfg.Provider, cfg.Model, providers.Options{Timeout: cfg.Concurrency.CallTimeout})
}

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Analyze every source file below a directory",
	Long: "Analyze concatenates the source files below dir (default: the current directory), " +
		"splits them into overlapping windows, sends each window to the configured provider " +
		"and writes the merged report.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfg, err := config.Load(flagConfig, cmd.Flags())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		ctx, stop := interruptContext()
		defer stop()
		exitCode = runAnalyze(ctx, cfg, root)
		return nil
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.String("provider", "", "LLM provider (anthropic, openai, azure, gemini, ollama)")
	f.String("model", "", "Model name")
	f.String("language", "", "Only analyze files of this language")
	f.String("format", "", "Output format (text, markdown, json, yaml)")
	f.String("out", "", "Output file path (default: stdout)")
	f.String("rules", "", "Rules file path (YAML or JSON)")
	f.Int("window", 0, "Maximum window size in bytes")
	f.Int("overlap", 0, "Bytes shared by consecutive windows")
	f.Int("max-attempts", 0, "Attempts per window, first call included")
	f.Int("concurrency", 0, "Maximum concurrent provider calls")
	f.Int("rpm", 0, "Provider requests per minute (0 = unlimited)")
	f.Duration("call-timeout", 0, "Timeout for a single provider call")
	f.Int("max-tokens", 0, "Maximum completion tokens per window")
	f.StringSlice("include", nil, "Include file path globs (comma-separated)")
	f.StringSlice("exclude", nil, "Exclude file path globs (comma-separated)")
	f.Bool("git", false, "Only analyze files tracked by git")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	f.BoolVar(&flagNoCache, "no-cache", false, "Bypass the completion cache")
	f.BoolVar(&flagNoProgress, "no-progress", false, "Do not draw a progress bar")
	f.BoolVar(&flagFailOnError, "fail-on-error", false, "Exit 1 if any window could not be analyzed")
}

// interruptContext cancels on the first SIGINT or SIGTERM. Once cancelled the
// default signal behavior is restored, so a second Ctrl-C exits immediately.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stop()
			fmt.Fprintln(os.Stderr, warnStyle.Render("Interrupted: waiting for in-flight windows (Ctrl-C again to abort)"))
		case <-done:
		}
	}()
	return ctx, func() {
		close(done)
		stop()
	}
}

func runAnalyze(ctx context.Context, cfg config.Config, root string) int {
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}
	if flagNoCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsageError
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsageError
	}
	defer func() { _ = log.Sync() }()

	rules, err := review.LoadRules(cfg.Rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsageError
	}

	reader := cfg.Reader(root)
	reader.Logger = log
	sources, skipped, err := reader.ReadWithSkipped(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitRuntimeError
	}
	for _, s := range skipped {
		log.Info("skipped file", zap.String("path", s.Path), zap.String("reason", s.Reason))
	}
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "No source files found in %s\n", root)
	}

	if cfg.Privacy.RedactSecrets {
		var stats redact.Stats
		sources, stats = redact.Redactor{Paths: cfg.Privacy.RedactPaths}.Sources(sources)
		if stats.Secrets > 0 || stats.Files > 0 {
			log.Info("redacted sources", zap.Int("secrets", stats.Secrets), zap.Int("files", stats.Files))
		}
	}
	c := corpus.New(sources)

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if providers.IsAuthError(err) {
			return ExitAuthError
		}
		return ExitRuntimeError
	}
	if cfg.Cache.Enabled {
		store, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTL)
		if err != nil {
			log.Warn("cache unavailable", zap.Error(err))
		} else {
			completer = providers.NewCached(completer, cfg.Model, store)
			if cached, ok := completer.(*providers.Cached); ok {
				cached.SetLogger(log)
			}
		}
	}

	opts := cfg.AnalyzerOptions(rules)
	opts.Root = absRoot(root)
	opts.Version = version

	var authFailures atomic.Int32
	options := []review.Option{
		review.WithLogger(log),
		review.WithObserver(func(ev executor.Event) {
			if ev.State == executor.Exhausted && providers.IsAuthError(ev.Err) {
				authFailures.Add(1)
			}
		}),
	}
	var bar *pterm.ProgressbarPrinter
	if !flagNoProgress && c.Len() > 0 {
		bar = startProgress(c, cfg)
		if bar != nil {
			options = append(options, review.WithProgress(func(p review.Progress) {
				bar.UpdateTitle(progressTitle(p))
				bar.Increment()
			}))
		}
	}

	report, err := review.NewAnalyzer(completer, opts, options...).Analyze(ctx, c)
	if bar != nil {
		_, _ = bar.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errors.ErrConfig) {
			return ExitUsageError
		}
		return ExitRuntimeError
	}

	if err := output.WriteReport(report, cfg.Format, cfg.Out); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		return ExitRuntimeError
	}
	printSummary(report, cfg.Out)

	switch {
	case report.Cancelled:
		return ExitInterrupted
	case authFailures.Load() > 0 && report.Summary.Analyzed == 0:
		return ExitAuthError
	case flagFailOnError && report.HasFailures():
		return ExitFailures
	}
	return ExitSuccess
}

func countWindows(c *corpus.Corpus, cfg config.Config) (int, error) {
	return window.Count(c.Text(), cfg.Window.MaxSize, cfg.Window.Overlap)
}

func startProgress(c *corpus.Corpus, cfg config.Config) *pterm.ProgressbarPrinter {
	total, err := countWindows(c, cfg)
	if err != nil || total == 0 {
		return nil
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Analyzing").
		WithWriter(os.Stderr).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return nil
	}
	return bar
}

func progressTitle(p review.Progress) string {
	pct := 0
	if p.TotalBytes > 0 {
		pct = p.Bytes * 100 / p.TotalBytes
	}
	if p.Failed > 0 {
		return fmt.Sprintf("Analyzing (%d%% of bytes, %d failed)", pct, p.Failed)
	}
	return fmt.Sprintf("Analyzing (%d%% of bytes)", pct)
}

func printSummary(r *review.Report, out string) {
	s := r.Summary
	line := fmt.Sprintf("%d/%d windows analyzed", s.Analyzed, s.Windows)
	switch {
	case r.Cancelled:
		line = warnStyle.Render("Partial: " + line + fmt.Sprintf(", %d cancelled", s.Cancelled))
	case s.Failed > 0:
		line = errStyle.Render(line + fmt.Sprintf(", %d failed", s.Failed))
	default:
		line = okStyle.Render(line)
	}
	details := fmt.Sprintf("retries %d, merge warnings %d, %dms", s.Retries, s.Warnings, r.Timing.TotalMs)
	if out != "" {
		details += ", report written to " + out
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", line, dimStyle.Render("("+details+")"))
}

func absRoot(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}
