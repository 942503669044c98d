package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/restrict"
	"github.com/roach88/wikisync/internal/wiki"
)

func TestHealth_NoKeyRequired(t *testing.T) {
	f := newFixture(t, testKey)

	resp, err := http.Get(f.http.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIKey(t *testing.T) {
	f := newFixture(t, testKey)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testKey, http.StatusUnauthorized},
		{"valid", "Bearer " + testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, f.http.URL+"/api/pages", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPIKey_DisabledWhenEmpty(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.http.URL + "/api/images")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListImages_MetadataOnly(t *testing.T) {
	f := newFixture(t, testKey)
	f.image(t, "cat.png", "image/png", []byte("png-bytes"))

	resp, body := f.request(t, http.MethodGet, "/api/images", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var images []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &images))
	require.Len(t, images, 1)
	assert.Equal(t, "cat.png", images[0]["filename"])
	assert.Equal(t, "image/png", images[0]["mimetype"])
	assert.NotContains(t, body, "png-bytes")
}

func TestGetImage(t *testing.T) {
	f := newFixture(t, testKey)
	img := f.image(t, "cat.png", "image/png", []byte("png-bytes"))

	t.Run("by id", func(t *testing.T) {
		resp, body := f.request(t, http.MethodGet, "/api/images/"+itoa(img.ID), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Equal(t, "png-bytes", body)
	})

	t.Run("by filename", func(t *testing.T) {
		resp, body := f.request(t, http.MethodGet, "/api/images/cat.png", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "png-bytes", body)
	})

	t.Run("unknown", func(t *testing.T) {
		resp, body := f.request(t, http.MethodGet, "/api/images/999", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.JSONEq(t, `{"error":"not found"}`, body)
	})
}

func TestGetImage_NoKeyRequired(t *testing.T) {
	f := newFixture(t, testKey)
	img := f.image(t, "cat.png", "image/png", []byte("png-bytes"))

	resp, err := http.Get(f.http.URL + "/api/images/" + itoa(img.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(data))

	list, err := http.Get(f.http.URL + "/api/images")
	require.NoError(t, err)
	list.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, list.StatusCode)
}

func TestListPages_Summaries(t *testing.T) {
	f := newFixture(t, testKey)
	f.page(t, "docs/a", "<p>alpha</p>", "guide")
	f.page(t, "docs/b", "<p>beta</p>")

	resp, body := f.request(t, http.MethodGet, "/api/pages", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pages []wiki.PageSummary
	require.NoError(t, json.Unmarshal([]byte(body), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, "docs/a", pages[0].Path)
	assert.Equal(t, []string{"guide"}, pages[0].Tags)
	assert.NotContains(t, body, "alpha")
}

func TestGetPage(t *testing.T) {
	f := newFixture(t, testKey)
	p := f.page(t, "docs/a", "<p>alpha</p>")

	resp, body := f.request(t, http.MethodGet, "/api/pages/"+itoa(p.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got wiki.Page
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "<p>alpha</p>", got.Content)

	resp, _ = f.request(t, http.MethodGet, "/api/pages/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.request(t, http.MethodGet, "/api/pages/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetPage_MasksForGroups(t *testing.T) {
	f := newFixture(t, testKey)
	block := `<div data-restricted-block data-view-groups="hr" data-title="Salaries"><p>Alice: 100</p></div>`
	p := f.page(t, "team", "<h1>Team</h1>"+block)

	_, body := f.request(t, http.MethodGet, "/api/pages/"+itoa(p.ID)+"?groups=staff", "")
	var got wiki.Page
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.NotContains(t, got.Content, "Alice: 100")
	assert.True(t, restrict.HasPlaceholders(got.Content))

	_, body = f.request(t, http.MethodGet, "/api/pages/"+itoa(p.ID)+"?groups=staff,+hr", "")
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Contains(t, got.Content, "Alice: 100")
}

func TestUpdatePage_AppendsVersion(t *testing.T) {
	f := newFixture(t, testKey)
	p := f.page(t, "docs/a", "<p>alpha</p>")

	resp, body := f.request(t, http.MethodPut, "/api/pages/"+itoa(p.ID),
		`{"content":"<p>beta</p>","edited_by":"bob","change_summary":"typo"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out UpdatePageResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "<p>beta</p>", out.Page.Content)
	assert.Equal(t, 1, out.Version.VersionNumber)
	assert.Equal(t, "bob", out.Version.EditedBy)
	assert.Equal(t, "typo", out.Version.ChangeSummary)
	assert.Zero(t, out.RestrictedBlocks)

	stored, err := f.store.GetPage(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>beta</p>", stored.Content)
}

func TestUpdatePage_DefaultEditor(t *testing.T) {
	f := newFixture(t, testKey)
	p := f.page(t, "docs/a", "<p>alpha</p>")

	_, body := f.request(t, http.MethodPut, "/api/pages/"+itoa(p.ID), `{"content":"<p>x</p>"}`)
	var out UpdatePageResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, DefaultEditor, out.Version.EditedBy)
}

func TestUpdatePage_RestoresPlaceholders(t *testing.T) {
	f := newFixture(t, testKey)
	block := `<div data-restricted-block data-view-groups="hr" data-title="Salaries"><p>Alice: 100</p></div>`
	p := f.page(t, "team", "<p>old</p>"+block)

	masked := restrict.MaskForViewer(p.Content, nil)
	edited, err := json.Marshal(map[string]string{"content": "<p>new</p>" + masked[len("<p>old</p>"):]})
	require.NoError(t, err)

	resp, body := f.request(t, http.MethodPut, "/api/pages/"+itoa(p.ID), string(edited))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out UpdatePageResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, 1, out.RestrictedBlocks)

	stored, err := f.store.GetPage(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>new</p>"+block, stored.Content)
}

func TestUpdatePage_BadRequests(t *testing.T) {
	f := newFixture(t, testKey)
	p := f.page(t, "docs/a", "<p>alpha</p>")

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"invalid json", "/api/pages/" + itoa(p.ID), `{`, http.StatusBadRequest},
		{"missing content", "/api/pages/" + itoa(p.ID), `{"edited_by":"x"}`, http.StatusBadRequest},
		{"bad id", "/api/pages/0", `{"content":""}`, http.StatusBadRequest},
		{"unknown page", "/api/pages/999", `{"content":""}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := f.request(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
