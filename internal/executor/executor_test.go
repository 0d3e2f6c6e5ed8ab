package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	cserrors "github.com/dshills/codescan/internal/errors"
	"github.com/dshills/codescan/internal/providers"
	"github.com/dshills/codescan/internal/window"
)

// flaky fails with failErr for the first failures calls, then echoes the
// prompt.
type flaky struct {
	mu       sync.Mutex
	failures int
	failErr  error
	calls    int
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Complete(_ context.Context, req providers.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", f.failErr
	}
	return req.Prompt, nil
}

type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func testPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
		Multiplier:  2,
		Retryable:   []providers.Kind{providers.RateLimited, providers.Timeout, providers.TransientServiceError},
	}
}

func testWindow() window.Window {
	return window.Window{Index: 3, Start: 100, End: 200, Text: "window text"}
}

func newExecutor(t *testing.T, c providers.Completer, p Policy, opts ...Option) (*Executor, *recordedSleep) {
	t.Helper()
	rec := &recordedSleep{}
	e, err := New(c, p, nil, append([]Option{WithSleep(rec.sleep)}, opts...)...)
	require.NoError(t, err)
	return e, rec
}

func TestExecute_SucceedsAfterRateLimits(t *testing.T) {
	for k := 0; k < 5; k++ {
		stub := &flaky{failures: k, failErr: &providers.Error{Kind: providers.RateLimited}}
		e, rec := newExecutor(t, stub, testPolicy())

		res := e.Execute(context.Background(), testWindow())

		require.True(t, res.Succeeded(), "k=%d: %v", k, res.Err)
		assert.Equal(t, "window text", res.Text)
		assert.Equal(t, k+1, res.Attempts)
		assert.Equal(t, k+1, stub.calls)
		assert.Equal(t, 3, res.Index())

		want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 500 * time.Millisecond}[:k]
		assert.Equal(t, want, rec.delays, "k=%d", k)
		assert.Equal(t, rec.delays, res.Delays)
	}
}

func TestExecute_AlwaysRateLimited(t *testing.T) {
	stub := &flaky{failures: 100, failErr: &providers.Error{Kind: providers.RateLimited}}
	e, rec := newExecutor(t, stub, testPolicy())

	res := e.Execute(context.Background(), testWindow())

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, providers.RateLimited, res.Kind)
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, 5, stub.calls)
	assert.Len(t, rec.delays, 4)
}

func TestExecute_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want providers.Kind
	}{
		{"invalid request", &providers.Error{Kind: providers.InvalidRequest, Status: 400}, providers.InvalidRequest},
		{"unclassified", errors.New("boom"), providers.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &flaky{failures: 100, failErr: tt.err}
			e, rec := newExecutor(t, stub, testPolicy())

			res := e.Execute(context.Background(), testWindow())

			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, tt.want, res.Kind)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, 1, stub.calls)
			assert.Empty(t, rec.delays)
			assert.ErrorIs(t, res.Err, tt.err)
		})
	}
}

func TestExecute_KindNotInRetryableSet(t *testing.T) {
	p := testPolicy()
	p.Retryable = []providers.Kind{providers.RateLimited}
	stub := &flaky{failures: 100, failErr: &providers.Error{Kind: providers.TransientServiceError}}
	e, _ := newExecutor(t, stub, p)

	res := e.Execute(context.Background(), testWindow())
	assert.Equal(t, providers.TransientServiceError, res.Kind)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_RetryAfterHint(t *testing.T) {
	tests := []struct {
		name string
		hint time.Duration
		want time.Duration
	}{
		{"shorter hint ignored", 10 * time.Millisecond, 100 * time.Millisecond},
		{"longer hint used", 300 * time.Millisecond, 300 * time.Millisecond},
		{"hint capped", 10 * time.Second, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &flaky{failures: 1, failErr: &providers.Error{Kind: providers.RateLimited, RetryAfter: tt.hint}}
			e, rec := newExecutor(t, stub, testPolicy())

			res := e.Execute(context.Background(), testWindow())
			require.True(t, res.Succeeded())
			assert.Equal(t, []time.Duration{tt.want}, rec.delays)
		})
	}
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	stub := &flaky{}
	e, _ := newExecutor(t, stub, testPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Execute(ctx, testWindow())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, providers.Cancelled, res.Kind)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, stub.calls)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestExecute_CancelledDuringBackoff(t *testing.T) {
	stub := &flaky{failures: 100, failErr: &providers.Error{Kind: providers.Timeout}}
	ctx, cancel := context.WithCancel(context.Background())
	e, err := New(stub, testPolicy(), nil, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	require.NoError(t, err)

	res := e.Execute(ctx, testWindow())
	assert.Equal(t, providers.Cancelled, res.Kind)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, stub.calls, "no retry may start after cancellation")
	assert.ErrorIs(t, res.Err, context.Canceled)

	var pe *providers.Error
	assert.True(t, errors.As(res.Err, &pe), "last call error should be kept")
}

func TestExecute_InFlightCallCompletesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := providers.Func(func(callCtx context.Context, req providers.Request) (string, error) {
		cancel()
		if err := callCtx.Err(); err != nil {
			return "", err
		}
		return "done", nil
	})
	e, _ := newExecutor(t, stub, testPolicy())

	res := e.Execute(ctx, testWindow())
	require.True(t, res.Succeeded(), "in-flight call should complete: %v", res.Err)
	assert.Equal(t, "done", res.Text)
}

func TestExecute_CallTimeout(t *testing.T) {
	stub := providers.Func(func(ctx context.Context, req providers.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := testPolicy()
	p.MaxAttempts = 2
	e, rec := newExecutor(t, stub, p, WithCallTimeout(10*time.Millisecond))

	res := e.Execute(context.Background(), testWindow())
	assert.Equal(t, providers.Timeout, res.Kind)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, rec.delays, 1)
}

func TestExecute_Limiter(t *testing.T) {
	stub := &flaky{failures: 100, failErr: &providers.Error{Kind: providers.RateLimited}}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	e, _ := newExecutor(t, stub, testPolicy(), WithLimiter(limiter))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := e.Execute(ctx, testWindow())
	assert.Equal(t, providers.Cancelled, res.Kind)
	assert.Equal(t, 1, stub.calls, "second attempt must wait for the limiter")
}

func TestExecute_ObserverSequence(t *testing.T) {
	stub := &flaky{failures: 2, failErr: &providers.Error{Kind: providers.TransientServiceError}}
	var mu sync.Mutex
	var states []State
	e, _ := newExecutor(t, stub, testPolicy(), WithObserver(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, ev.Window)
		states = append(states, ev.State)
	}))

	res := e.Execute(context.Background(), testWindow())
	require.True(t, res.Succeeded())
	assert.Equal(t, []State{Pending, Calling, Retrying, Calling, Retrying, Calling, Succeeded}, states)
}

func TestExecute_Elapsed(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	e, _ := newExecutor(t, &flaky{}, testPolicy(), WithClock(clock))

	res := e.Execute(context.Background(), testWindow())
	assert.Equal(t, time.Second, res.Elapsed)
}

func TestExecute_EmptyWindowSkipsCall(t *testing.T) {
	stub := &flaky{}
	e, _ := newExecutor(t, stub, testPolicy())

	res := e.Execute(context.Background(), window.Window{})
	assert.True(t, res.Succeeded())
	assert.Equal(t, "", res.Text)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, stub.calls)
}

func TestNew_InvalidPolicy(t *testing.T) {
	p := testPolicy()
	p.MaxAttempts = 0
	_, err := New(&flaky{}, p, nil)
	require.Error(t, err)
	assert.True(t, cserrors.Is(err, cserrors.ErrConfig))
}

func TestCancelledResult(t *testing.T) {
	res := Cancelled(testWindow(), context.Canceled)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, providers.Cancelled, res.Kind)
	assert.Equal(t, 0, res.Attempts)
}

func TestStatus_TextRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusSucceeded, StatusFailed} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got Status
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}
	var s Status
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
}
