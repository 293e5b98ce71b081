package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"star-offers/internal/config"
	"star-offers/internal/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.RabbitURIEnv, "")
	t.Setenv(config.StageTempFile, "")
	t.Setenv("TMPDIR", t.TempDir())

	var buf bytes.Buffer
	cmd := newRootCmd(log.New(&buf, "", 0))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRunCmd_WritesOffers(t *testing.T) {
	srv := feedServer(t, http.StatusOK,
		`{"pageProps": {}, "data": [{"nid": 1, "title": "A", "teaser": "t", "path": "/a", "thumb_image": "i.png", "metatag": {"description": "d"}}]}`)
	out := filepath.Join(t.TempDir(), "offers_new.json")

	logs, err := runCLI(t, "run", "--url", srv.URL, "--output", out)
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"nid": 1, "title": "A", "teaser": "t", "path": "/a", "thumb_image": "i.png", "description": "d"}]`, string(raw))
	assert.Contains(t, logs, "processed data saved to: "+out)
}

func TestRunCmd_SkipsWithoutPageProps(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{"data": []}`)
	out := filepath.Join(t.TempDir(), "offers_new.json")

	logs, err := runCLI(t, "run", "--url", srv.URL, "--output", out, "--no-stage")
	require.NoError(t, err)

	_, statErr := os.Stat(out)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.Contains(t, logs, "run finished without writing offers")
}

func TestRunCmd_FailureIsReturned(t *testing.T) {
	srv := feedServer(t, http.StatusInternalServerError, `oops`)
	out := filepath.Join(t.TempDir(), "offers_new.json")

	logs, err := runCLI(t, "run", "--url", srv.URL, "--output", out)
	require.Error(t, err)
	assert.Equal(t, ingest.KindNetwork, ingest.KindOf(err))
	assert.Contains(t, logs, "error making the request")

	_, statErr := os.Stat(out)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunCmd_RejectsArgs(t *testing.T) {
	_, err := runCLI(t, "run", "http://positional.test")
	require.Error(t, err)
}
