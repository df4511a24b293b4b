package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingFetcher serves canned bodies and can hold requests until released.
type blockingFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	release chan struct{}
}

func (f *blockingFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if body, ok := f.bodies[rawURL]; ok {
		return body, nil
	}
	return nil, errors.New("not found")
}

func TestSubmitGetDeliversCompletion(t *testing.T) {
	fetcher := &blockingFetcher{bodies: map[string][]byte{"https://x.test/a": []byte("aa")}}
	async := NewAsyncClient(fetcher, 4)

	handle := async.SubmitGet(context.Background(), "https://x.test/a")

	select {
	case c := <-async.Completions():
		assert.Equal(t, handle, c.Handle)
		require.NoError(t, c.Err)
		assert.Equal(t, []byte("aa"), c.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	assert.Equal(t, 0, async.Outstanding())
}

func TestSubmitGetHandlesAreUnique(t *testing.T) {
	fetcher := &blockingFetcher{bodies: map[string][]byte{
		"https://x.test/a": []byte("aa"),
		"https://x.test/b": []byte("bb"),
	}}
	async := NewAsyncClient(fetcher, 4)

	h1 := async.SubmitGet(context.Background(), "https://x.test/a")
	h2 := async.SubmitGet(context.Background(), "https://x.test/b")
	require.NotEqual(t, h1, h2)

	got := make(map[int64][]byte)
	for i := 0; i < 2; i++ {
		select {
		case c := <-async.Completions():
			require.NoError(t, c.Err)
			got[c.Handle] = c.Data
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for completions")
		}
	}
	assert.Equal(t, []byte("aa"), got[h1])
	assert.Equal(t, []byte("bb"), got[h2])
}

func TestSubmitGetReportsErrors(t *testing.T) {
	async := NewAsyncClient(&blockingFetcher{}, 1)
	handle := async.SubmitGet(context.Background(), "https://x.test/missing")

	select {
	case c := <-async.Completions():
		assert.Equal(t, handle, c.Handle)
		assert.Error(t, c.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestAbortSuppressesDelivery(t *testing.T) {
	fetcher := &blockingFetcher{
		bodies:  map[string][]byte{"https://x.test/slow": []byte("late")},
		release: make(chan struct{}),
	}
	async := NewAsyncClient(fetcher, 1)

	handle := async.SubmitGet(context.Background(), "https://x.test/slow")
	async.Abort(handle)
	close(fetcher.release)

	select {
	case c := <-async.Completions():
		t.Fatalf("completion delivered after abort: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 0, async.Outstanding())
}

func TestAbortAll(t *testing.T) {
	fetcher := &blockingFetcher{
		bodies:  map[string][]byte{"https://x.test/a": []byte("a")},
		release: make(chan struct{}),
	}
	async := NewAsyncClient(fetcher, 4)
	async.SubmitGet(context.Background(), "https://x.test/a")
	async.SubmitGet(context.Background(), "https://x.test/a")
	assert.Equal(t, 2, async.Outstanding())

	async.AbortAll()
	close(fetcher.release)
	assert.Equal(t, 0, async.Outstanding())
}
