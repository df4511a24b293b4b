package transport

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(rt roundTripFunc) *Client {
	c := NewClient(log.New(io.Discard))
	c.httpClient = &http.Client{Transport: rt}
	return c
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestGetReturnsBody(t *testing.T) {
	c := testClient(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("User-Agent") == "" {
			t.Fatal("expected User-Agent header")
		}
		return response(http.StatusOK, "payload"), nil
	})

	data, err := c.Get(context.Background(), "https://example.test/file")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestGetClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(http.StatusNotFound, ""), nil
	})

	_, err := c.Get(context.Background(), "https://example.test/missing")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return response(http.StatusInternalServerError, ""), nil
		}
		return response(http.StatusOK, "eventually"), nil
	})

	data, err := c.Get(context.Background(), "https://example.test/flaky")
	require.NoError(t, err)
	assert.Equal(t, []byte("eventually"), data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(http.StatusBadGateway, ""), nil
	})

	_, err := c.Get(context.Background(), "https://example.test/down")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.xml")
	require.NoError(t, os.WriteFile(path, []byte("<package/>"), 0o644))

	c := testClient(func(*http.Request) (*http.Response, error) {
		t.Fatal("file URLs must not hit the network")
		return nil, nil
	})

	data, err := c.Get(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, []byte("<package/>"), data)

	_, err = c.Get(context.Background(), "file://"+filepath.Join(dir, "absent"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestGetBadURL(t *testing.T) {
	c := testClient(func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, ""), nil
	})
	_, err := c.Get(context.Background(), "://not-a-url")
	assert.Error(t, err)
}
