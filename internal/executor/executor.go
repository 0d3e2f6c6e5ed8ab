package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dshills/codescan/internal/providers"
	"github.com/dshills/codescan/internal/window"
)

// State is a step of the per-window retry state machine.
type State int

const (
	Pending State = iota
	Calling
	Retrying
	Succeeded
	Exhausted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Calling:
		return "calling"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// RetryState is the bookkeeping for one Execute call.
type RetryState struct {
	State     State
	Attempt   int
	NextDelay time.Duration
	LastKind  providers.Kind
}

// Status is the final outcome of a window.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "succeeded":
		*s = StatusSucceeded
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Result is the outcome of one window. Kind and Err are set only when
// Status is StatusFailed.
type Result struct {
	Window   window.Window
	Status   Status
	Text     string
	Kind     providers.Kind
	Err      error
	Attempts int
	Elapsed  time.Duration
	Delays   []time.Duration
}

// Index returns the window index the result belongs to.
func (r Result) Index() int { return r.Window.Index }

// Succeeded reports whether the window was analyzed.
func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

// Cancelled returns the result for a window that was never attempted.
func Cancelled(w window.Window, cause error) Result {
	return Result{Window: w, Status: StatusFailed, Kind: providers.Cancelled, Err: cause}
}

// RequestFunc builds the completion request for a window.
type RequestFunc func(w window.Window) providers.Request

// Event is emitted on every state transition.
type Event struct {
	Window  int
	State   State
	Attempt int
	Kind    providers.Kind
	Delay   time.Duration
	Err     error
}

// Observer receives state transitions. It is called from the goroutine
// running Execute and must be safe for concurrent use.
type Observer func(Event)

// Executor runs windows through a Completer. It is safe for concurrent use.
type Executor struct {
	completer   providers.Completer
	policy      Policy
	request     RequestFunc
	limiter     *rate.Limiter
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	log         *zap.Logger
	observer    Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithLimiter gates every attempt, retries included, on l.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Executor) { e.limiter = l }
}

// WithCallTimeout bounds each individual attempt.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Executor) { e.callTimeout = d }
}

// WithSleep replaces the backoff sleep. Used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// New creates an Executor. The policy is validated here so a bad
// configuration fails before any call is made.
func New(c providers.Completer, policy Policy, request RequestFunc, opts ...Option) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if request == nil {
		request = func(w window.Window) providers.Request {
			return providers.Request{Prompt: w.Text, Window: w}
		}
	}
	e := &Executor{
		completer: c,
		policy:    policy,
		request:   request,
		sleep:     sleepCtx,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the retry policy in use.
func (e *Executor) Policy() Policy { return e.policy }

// Execute drives w to a final Result. An empty window has nothing to
// analyze and succeeds without a call.
func (e *Executor) Execute(ctx context.Context, w window.Window) Result {
	if w.Len() == 0 {
		return Result{Window: w, Status: StatusSucceeded}
	}
	start := e.now()
	res := Result{Window: w}
	rs := RetryState{State: Pending}
	e.emit(w, rs, nil)

	finish := func(status Status, kind providers.Kind, err error) Result {
		res.Status = status
		res.Kind = kind
		res.Err = err
		res.Attempts = rs.Attempt
		res.Elapsed = e.now().Sub(start)
		return res
	}
	cancelled := func(cause error) Result {
		rs.State = Exhausted
		rs.LastKind = providers.Cancelled
		e.emit(w, rs, cause)
		return finish(StatusFailed, providers.Cancelled, cause)
	}

	req := e.request(w)
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(errors.Join(err, lastErr))
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return cancelled(errors.Join(err, lastErr))
			}
		}

		rs.Attempt++
		rs.State = Calling
		rs.NextDelay = 0
		e.emit(w, rs, nil)

		text, err := e.call(ctx, req)
		if err == nil {
			rs.State = Succeeded
			e.emit(w, rs, nil)
			res.Text = text
			return finish(StatusSucceeded, providers.KindUnknown, nil)
		}

		lastErr = err
		kind := providers.KindOf(err)
		rs.LastKind = kind
		if !e.policy.IsRetryable(kind) || rs.Attempt >= e.policy.MaxAttempts {
			rs.State = Exhausted
			e.emit(w, rs, err)
			return finish(StatusFailed, kind, err)
		}

		delay := e.policy.Delay(rs.Attempt)
		if hint := providers.RetryAfterOf(err); hint > delay {
			delay = min(hint, e.policy.MaxDelay)
		}
		rs.State = Retrying
		rs.NextDelay = delay
		res.Delays = append(res.Delays, delay)
		e.emit(w, rs, err)

		if err := e.sleep(ctx, delay); err != nil {
			return cancelled(errors.Join(err, lastErr))
		}
	}
}

// call runs one attempt. The attempt is detached from ctx cancellation so an
// in-flight request can complete; callTimeout still bounds it.
func (e *Executor) call(ctx context.Context, req providers.Request) (string, error) {
	callCtx := context.WithoutCancel(ctx)
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, e.callTimeout)
		defer cancel()
	}
	return e.completer.Complete(callCtx, req)
}

func (e *Executor) emit(w window.Window, rs RetryState, err error) {
	fields := []zap.Field{
		zap.Int("window", w.Index),
		zap.Stringer("state", rs.State),
		zap.Int("attempt", rs.Attempt),
	}
	switch rs.State {
	case Retrying:
		fields = append(fields, zap.Stringer("kind", rs.LastKind), zap.Duration("delay", rs.NextDelay), zap.Error(err))
		e.log.Info("retrying window", fields...)
	case Exhausted:
		fields = append(fields, zap.Stringer("kind", rs.LastKind), zap.Error(err))
		e.log.Warn("window failed", fields...)
	default:
		e.log.Debug("window transition", fields...)
	}

	if e.observer != nil {
		e.observer(Event{
			Window:  w.Index,
			State:   rs.State,
			Attempt: rs.Attempt,
			Kind:    rs.LastKind,
			Delay:   rs.NextDelay,
			Err:     err,
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
