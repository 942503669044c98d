package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/store"
	"github.com/roach88/wikisync/internal/testutil"
	"github.com/roach88/wikisync/internal/wiki"
)

const testKey = "secret-key"

var testEpoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store *store.Store
	http  *httptest.Server
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	st.SetClock(testutil.NewFixedClock(testEpoch).Now)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(st, Options{APIKey: apiKey, Logger: logger})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &fixture{store: st, http: ts}
}

func (f *fixture) page(t *testing.T, path, content string, tags ...string) wiki.Page {
	t.Helper()
	p, err := f.store.CreatePage(context.Background(), wiki.PageData{
		Path:    path,
		Title:   "Title of " + path,
		Content: content,
		Tags:    tags,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) image(t *testing.T, filename, mimeType string, data []byte) wiki.Image {
	t.Helper()
	img, err := f.store.CreateImage(context.Background(), wiki.ImageData{
		Filename: filename,
		MimeType: mimeType,
		Data:     data,
	})
	require.NoError(t, err)
	return img
}

// request sends an authenticated request with the test key and returns the
// response and its body.
func (f *fixture) request(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
