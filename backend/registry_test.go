package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRegistryFetchUsesRangeHeader(t *testing.T) {
	body := []byte("0123456789")
	var gotRange string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotRange = req.Header.Get("Range")
		return &http.Response{
			StatusCode: http.StatusPartialContent,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header:     http.Header{"Content-Length": []string{strconv.Itoa(len(body))}},
		}, nil
	})

	r := NewRegistry("registry.example.com/library/app")
	r.Client = &http.Client{Transport: rt}

	digest := "sha256:" + sha256HexZeros()
	rc, err := r.Fetch(context.Background(), digest, 5, 10)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, "bytes=5-14", gotRange)
}

func TestRegistryFetchShortReadIsAnError(t *testing.T) {
	body := []byte("short")
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		// Content-Length disagrees with the requested size: the server
		// is telling us up front it won't deliver the full range.
		return &http.Response{
			StatusCode: http.StatusPartialContent,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header:     http.Header{"Content-Length": []string{"5"}},
		}, nil
	})

	r := NewRegistry("registry.example.com/library/app")
	r.Client = &http.Client{Transport: rt}

	digest := "sha256:" + sha256HexZeros()
	_, err := r.Fetch(context.Background(), digest, 0, 100)
	assert.Error(t, err)
}

func TestRegistryBlobURLRejectsInvalidRepository(t *testing.T) {
	r := NewRegistry("")
	_, err := r.blobURL("sha256:" + sha256HexZeros())
	assert.Error(t, err)
}

func sha256HexZeros() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"[:64]
}
