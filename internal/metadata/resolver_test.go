package metadata_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"yieldScope/internal/metadata"
)

const (
	cidV0 = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	cidV1 = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
)

func TestResolverURL(t *testing.T) {
	r := metadata.NewResolver(metadata.WithGateway("https://gw.example/"))

	cases := []struct {
		locator string
		want    string
	}{
		{"ipfs://" + cidV0, "https://gw.example/ipfs/" + cidV0},
		{"ipfs://" + cidV1 + "/meta.json", "https://gw.example/ipfs/" + cidV1 + "/meta.json"},
		{"ipfs://ipfs/" + cidV0, "https://gw.example/ipfs/" + cidV0},
		{cidV1, "https://gw.example/ipfs/" + cidV1},
		{"https://example.com/token/1.json", "https://example.com/token/1.json"},
	}

	for _, tc := range cases {
		got, err := r.URL(tc.locator)
		require.NoError(t, err, tc.locator)
		require.Equal(t, tc.want, got)
	}

	_, err := r.URL("not-a-cid")
	require.ErrorIs(t, err, metadata.ErrUnavailable)
}

func TestResolveThroughGateway(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		_, _ = w.Write([]byte(`{"name":"Warehouse Lease","image":"ipfs://x","attributes":[{"trait_type":"yield","value":"4%"}]}`))
	}))
	defer srv.Close()

	r := metadata.NewResolver(metadata.WithGateway(srv.URL))
	doc, err := r.Resolve(context.Background(), "ipfs://"+cidV0+"/meta.json")
	require.NoError(t, err)
	require.Equal(t, "Warehouse Lease", doc.Name)
	require.Len(t, doc.Attributes, 1)
	require.Equal(t, "/ipfs/"+cidV0+"/meta.json", path)
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	r := metadata.NewResolver(metadata.WithRetries(2, time.Millisecond))
	doc, err := r.Resolve(context.Background(), srv.URL+"/1.json")
	require.NoError(t, err)
	require.Equal(t, "ok", doc.Name)
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestResolveGivesUpAfterRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := metadata.NewResolver(metadata.WithRetries(2, time.Millisecond))
	_, err := r.Resolve(context.Background(), srv.URL)
	require.ErrorIs(t, err, metadata.ErrUnavailable)
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestResolveClientErrorIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, req)
	}))
	defer srv.Close()

	r := metadata.NewResolver(metadata.WithRetries(2, time.Millisecond))
	_, err := r.Resolve(context.Background(), srv.URL)
	require.ErrorIs(t, err, metadata.ErrUnavailable)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolveRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"name":"` + strings.Repeat("a", 64) + `"}`))
	}))
	defer srv.Close()

	r := metadata.NewResolver(metadata.WithMaxBody(32))
	_, err := r.Resolve(context.Background(), srv.URL)
	require.ErrorIs(t, err, metadata.ErrUnavailable)
}

func TestResolveDataURI(t *testing.T) {
	r := metadata.NewResolver()

	encoded := base64.StdEncoding.EncodeToString([]byte(`{"name":"Inline"}`))
	doc, err := r.Resolve(context.Background(), "data:application/json;base64,"+encoded)
	require.NoError(t, err)
	require.Equal(t, "Inline", doc.Name)

	_, err = r.Resolve(context.Background(), "data:application/json;base64,!!!")
	require.ErrorIs(t, err, metadata.ErrUnavailable)
}

func TestResolveMalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := metadata.NewResolver().Resolve(context.Background(), srv.URL)
	require.ErrorIs(t, err, metadata.ErrUnavailable)

	_, err = metadata.NewResolver().Resolve(context.Background(), "  ")
	require.ErrorIs(t, err, metadata.ErrUnavailable)
}
