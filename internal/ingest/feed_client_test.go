package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedClient_FetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "all", r.URL.Query().Get("star_status"))
		_, _ = w.Write([]byte(`{"pageProps": {}, "data": []}`))
	}))
	defer srv.Close()

	c := NewFeedClient(srv.URL+"/api/star-offers-list?star_status=all", srv.Client())

	body, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"pageProps": {}, "data": []}`, string(body))
}

func TestFeedClient_ErrorStatusIsNetworkError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewFeedClient(srv.URL, srv.Client()).Fetch(context.Background())
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, KindNetwork, KindOf(err))
		assert.Contains(t, err.Error(), http.StatusText(status))
	}
}

func TestFeedClient_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewFeedClient(url, &http.Client{Timeout: time.Second}).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestFeedClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewFeedClient(srv.URL, &http.Client{Timeout: 50 * time.Millisecond}).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}
