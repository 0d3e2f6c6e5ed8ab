package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dshills/codescan/internal/corpus"
	"github.com/dshills/codescan/internal/errors"
	"github.com/dshills/codescan/internal/executor"
	"github.com/dshills/codescan/internal/providers"
	"github.com/dshills/codescan/internal/window"
)

// ToolName is recorded in every report.
const ToolName = "codescan"

// Defaults for Options fields.
const (
	DefaultWindowSize    = 5000
	DefaultOverlap       = 500
	DefaultMaxConcurrent = 4
	DefaultCallTimeout   = 120 * time.Second
)

// Options configures an analysis run.
type Options struct {
	WindowSize    int
	Overlap       int
	Policy        executor.Policy
	MaxConcurrent int
	// RequestsPerMinute caps call starts across all windows. Zero disables
	// the gate.
	RequestsPerMinute int
	CallTimeout       time.Duration
	Prompt            PromptOptions

	// Recorded in the report only.
	Model   string
	Root    string
	Version string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		WindowSize:    DefaultWindowSize,
		Overlap:       DefaultOverlap,
		Policy:        executor.DefaultPolicy(),
		MaxConcurrent: DefaultMaxConcurrent,
		CallTimeout:   DefaultCallTimeout,
		Prompt: PromptOptions{
			MaxTokens:   providers.DefaultMaxTokens,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
		},
	}
}

// Validate reports every invalid windowing, retry and concurrency setting.
func (o Options) Validate() error {
	var errs errors.ConfigErrors
	collect := func(err error) {
		var ce errors.ConfigErrors
		if errors.As(err, &ce) {
			errs = append(errs, ce...)
		}
	}
	collect(window.Validate(o.WindowSize, o.Overlap))
	collect(o.Policy.Validate())
	if o.MaxConcurrent < 1 {
		errs = append(errs, errors.NewConfigError("concurrency.max_calls", o.MaxConcurrent, "must be at least 1"))
	}
	if o.RequestsPerMinute < 0 {
		errs = append(errs, errors.NewConfigError("concurrency.requests_per_minute", o.RequestsPerMinute, "must not be negative"))
	}
	if o.CallTimeout < 0 {
		errs = append(errs, errors.NewConfigError("concurrency.call_timeout", o.CallTimeout, "must not be negative"))
	}
	return errs.OrNil()
}

// Progress is reported after every window finishes. Bytes counts corpus
// bytes covered by finished windows, each byte once.
type Progress struct {
	Done       int
	Total      int
	Failed     int
	Bytes      int
	TotalBytes int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used by the analyzer and its executor.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

// WithProgress registers a progress callback. Calls are serialized.
func WithProgress(fn func(Progress)) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// WithObserver forwards executor state transitions to o.
func WithObserver(o executor.Observer) Option {
	return func(a *Analyzer) { a.observer = o }
}

// WithExecutorOptions appends options passed to the executor.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(a *Analyzer) { a.execOpts = append(a.execOpts, opts...) }
}

// WithClock replaces time.Now for report timing.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// Analyzer runs a corpus through a Completer window by window.
type Analyzer struct {
	completer providers.Completer
	opts      Options
	log       *zap.Logger
	progress  func(Progress)
	observer  executor.Observer
	execOpts  []executor.Option
	now       func() time.Time
}

// NewAnalyzer creates an Analyzer. Options are validated by Analyze.
func NewAnalyzer(c providers.Completer, opts Options, options ...Option) *Analyzer {
	a := &Analyzer{
		completer: c,
		opts:      opts,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Analyze splits the corpus into windows, analyzes them with bounded
// parallelism and merges the results.
//
// Configuration errors are returned before any call is made. Window failures
// and cancellation are not errors: the report records them, and a cancelled
// run returns whatever finished, with the rest marked as cancelled.
func (a *Analyzer) Analyze(ctx context.Context, c *corpus.Corpus) (*Report, error) {
	start := a.now()
	if err := a.opts.Validate(); err != nil {
		return nil, err
	}
	windows, err := window.Split(c.Text(), a.opts.WindowSize, a.opts.Overlap)
	if err != nil {
		return nil, err
	}

	execOpts := []executor.Option{
		executor.WithLogger(a.log),
		executor.WithCallTimeout(a.opts.CallTimeout),
	}
	if a.opts.RequestsPerMinute > 0 {
		limit := rate.Limit(float64(a.opts.RequestsPerMinute) / 60)
		execOpts = append(execOpts, executor.WithLimiter(rate.NewLimiter(limit, 1)))
	}
	if a.observer != nil {
		execOpts = append(execOpts, executor.WithObserver(a.observer))
	}
	execOpts = append(execOpts, a.execOpts...)

	exec, err := executor.New(a.completer, a.opts.Policy, RequestBuilder(c, a.opts.Prompt), execOpts...)
	if err != nil {
		return nil, err
	}

	a.log.Info("analysis started",
		zap.Int("windows", len(windows)),
		zap.Int("bytes", c.Len()),
		zap.Int("max_calls", a.opts.MaxConcurrent),
		zap.String("provider", a.completer.Name()),
	)

	col := newCollector(len(windows), c.Len(), a.progress)
	llmStart := a.now()

	var g errgroup.Group
	g.SetLimit(a.opts.MaxConcurrent)
	for _, w := range windows {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !col.put(exec.Execute(ctx, w)) {
				a.log.Error("duplicate result for window", zap.Int("window", w.Index))
			}
			return nil
		})
	}
	_ = g.Wait()
	llmMs := a.now().Sub(llmStart).Milliseconds()

	results := col.results()
	cancelled := ctx.Err() != nil
	for _, w := range windows {
		if _, ok := results[w.Index]; ok {
			continue
		}
		if !cancelled {
			break
		}
		results[w.Index] = executor.Cancelled(w, context.Cause(ctx))
	}

	report, err := Merge(results, len(windows), a.opts.Overlap)
	if err != nil {
		return nil, fmt.Errorf("merging window results: %w", err)
	}

	report.Tool = ToolName
	report.Version = a.opts.Version
	report.RunID = uuid.NewString()
	report.Provider = a.completer.Name()
	report.Model = a.opts.Model
	report.Inputs = InputInfo{
		Root:     a.opts.Root,
		Language: a.opts.Prompt.Language,
		Files:    c.Paths(),
		Bytes:    c.Len(),
	}
	report.WindowSize = a.opts.WindowSize
	report.Overlap = a.opts.Overlap
	report.Cancelled = cancelled || report.Summary.Cancelled > 0
	for i := range report.Segments {
		s := &report.Segments[i]
		s.Paths = c.PathsIn(s.Start, s.End)
	}
	for i := range report.Failures {
		f := &report.Failures[i]
		f.Paths = c.PathsIn(f.Start, f.End)
	}
	report.Timing = Timing{
		LLMMs:   llmMs,
		TotalMs: a.now().Sub(start).Milliseconds(),
	}

	a.log.Info("analysis finished",
		zap.Int("analyzed", report.Summary.Analyzed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("warnings", report.Summary.Warnings),
		zap.Bool("cancelled", report.Cancelled),
		zap.Int64("total_ms", report.Timing.TotalMs),
	)
	return report, nil
}

// collector holds one slot per window. Each slot is written at most once.
type collector struct {
	mu       sync.Mutex
	slots    map[int]executor.Result
	progress func(Progress)
	state    Progress
}

func newCollector(total, totalBytes int, progress func(Progress)) *collector {
	return &collector{
		slots:    make(map[int]executor.Result, total),
		progress: progress,
		state:    Progress{Total: total, TotalBytes: totalBytes},
	}
}

// put stores res and reports false if its slot was already filled.
func (c *collector) put(res executor.Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.slots[res.Index()]; dup {
		return false
	}
	c.slots[res.Index()] = res
	c.state.Done++
	c.state.Bytes += res.Window.Len() - len(res.Window.Overlap)
	if !res.Succeeded() {
		c.state.Failed++
	}
	if c.progress != nil {
		c.progress(c.state)
	}
	return true
}

func (c *collector) results() map[int]executor.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]executor.Result, len(c.slots))
	for k, v := range c.slots {
		out[k] = v
	}
	return out
}
