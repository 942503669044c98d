package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/apiclient"
	"github.com/roach88/wikisync/internal/linkresolver"
	"github.com/roach88/wikisync/internal/testutil"
)

func TestClient_AgainstServer(t *testing.T) {
	f := newFixture(t, testKey)
	p := f.page(t, "docs/a", "<p>alpha</p>")
	f.image(t, "cat.png", "image/png", []byte("png"))
	ctx := context.Background()

	c, err := apiclient.New(f.http.URL, testKey)
	require.NoError(t, err)

	require.NoError(t, c.Health(ctx))

	images, err := c.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "cat.png", images[0].Filename)

	pages, err := c.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	got, err := c.FetchPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>alpha</p>", got.Content)

	require.NoError(t, c.UpdatePage(ctx, p.ID, "<p>beta</p>", "client", "edit"))
	v, err := f.store.LatestVersion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "client", v.EditedBy)

	_, err = c.FetchPage(ctx, 999)
	assert.True(t, apiclient.IsNotFound(err))
	assert.False(t, apiclient.IsTransient(err))
}

func TestClient_WrongKey(t *testing.T) {
	f := newFixture(t, testKey)

	c, err := apiclient.New(f.http.URL, "wrong")
	require.NoError(t, err)

	require.NoError(t, c.Health(context.Background()))
	_, err = c.ListPages(context.Background())
	var se *apiclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestLinkResolver_OverAPI(t *testing.T) {
	f := newFixture(t, testKey)
	img := f.image(t, "cat.png", "image/png", []byte("png"))
	p := f.page(t, "docs/a", `<p><img src="cat.png"> and ![](/api/images/cat.png)</p>`)
	ctx := context.Background()

	c, err := apiclient.New(f.http.URL, testKey)
	require.NoError(t, err)

	r := linkresolver.New(c, linkresolver.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		RunIDs: testutil.NewFixedRunIDGenerator("run-api"),
		Now:    testutil.NewFixedClock(testEpoch).Now,
		Sleep:  func(context.Context, time.Duration) error { return nil },
	})
	rep, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Counts.PagesUpdated)
	assert.Equal(t, 2, rep.Counts.ReferencesRewritten)

	link := linkresolver.CanonicalLink(img.ID)
	stored, err := f.store.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, `<p><img src="`+link+`"> and ![](`+link+`)</p>`, stored.Content)

	v, err := f.store.LatestVersion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, linkresolver.DefaultAuthor, v.EditedBy)
	assert.Equal(t, linkresolver.DefaultChangeSummary, v.ChangeSummary)

	// The rewritten link is served by the API.
	resp, body := f.request(t, http.MethodGet, link, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png", body)
}
