package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
)

// Completion is the out-of-band result of a submitted GET. Status is an
// HTTP-style code: 200 on success, 0 when the fetch failed before producing
// a response.
type Completion struct {
	Handle int64
	Status int
	Data   []byte
	Err    error
}

// AsyncClient turns a blocking Fetcher into submit-and-receive form: each
// SubmitGet returns an integer handle immediately, and the matching
// Completion arrives later on the Completions channel. Requests are tracked
// in a pending map keyed by handle so callers can abort individual requests
// and stale completions cannot be confused with live ones.
type AsyncClient struct {
	fetcher Fetcher

	next        atomic.Int64
	completions chan Completion

	mu      sync.Mutex
	pending map[int64]context.CancelFunc
}

// NewAsyncClient wraps a Fetcher. The buffer bounds how many completions can
// queue before submitting goroutines block.
func NewAsyncClient(fetcher Fetcher, buffer int) *AsyncClient {
	return &AsyncClient{
		fetcher:     fetcher,
		completions: make(chan Completion, buffer),
		pending:     make(map[int64]context.CancelFunc),
	}
}

// SubmitGet starts a fetch and returns its handle. The completion is
// delivered exactly once per submitted request, even on failure or abort.
func (a *AsyncClient) SubmitGet(ctx context.Context, rawURL string) int64 {
	handle := a.next.Add(1)
	reqCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.pending[handle] = cancel
	a.mu.Unlock()

	go func() {
		data, err := a.fetcher.Get(reqCtx, rawURL)

		a.mu.Lock()
		_, live := a.pending[handle]
		delete(a.pending, handle)
		a.mu.Unlock()
		cancel()

		completion := Completion{Handle: handle, Err: err}
		if err == nil {
			completion.Status = http.StatusOK
			completion.Data = data
		}
		if live {
			a.completions <- completion
		}
	}()
	return handle
}

// Completions is the delivery channel for finished requests.
func (a *AsyncClient) Completions() <-chan Completion {
	return a.completions
}

// Abort cancels one outstanding request. Its completion is suppressed.
func (a *AsyncClient) Abort(handle int64) {
	a.mu.Lock()
	cancel, ok := a.pending[handle]
	if ok {
		delete(a.pending, handle)
	}
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

// AbortAll cancels every outstanding request, suppressing their completions.
// Used when the owning worker is being torn down.
func (a *AsyncClient) AbortAll() {
	a.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(a.pending))
	for handle, cancel := range a.pending {
		cancels = append(cancels, cancel)
		delete(a.pending, handle)
	}
	a.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Outstanding reports how many submitted requests have not yet completed.
func (a *AsyncClient) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
