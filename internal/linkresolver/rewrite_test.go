package linkresolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/wiki"
)

func testMapping() *Mapping {
	return BuildMapping([]wiki.Image{
		{ID: 7, Filename: "logo.png"},
		{ID: 8, Filename: "old-logo.png"},
		{ID: 9, Filename: "uploads/2023/chart.jpg"},
		{ID: 42, Filename: "diagram.svg"},
	})
}

func TestMapping_Keys(t *testing.T) {
	m := testMapping()
	for _, key := range []string{"logo.png", "/api/images/logo.png", "uploads/2023/chart.jpg", "chart.jpg", "/api/images/chart.jpg"} {
		_, ok := m.Lookup(key)
		assert.True(t, ok, key)
	}
	assert.True(t, m.HasID(42))
	assert.False(t, m.HasID(43))
	assert.Equal(t, 4, m.Len())
}

func TestMapping_AmbiguousFilenameUsesNewest(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := BuildMapping([]wiki.Image{
		{ID: 5, Filename: "a.png", CreatedAt: t0.Add(time.Hour)},
		{ID: 3, Filename: "a.png", CreatedAt: t0},
		{ID: 4, Filename: "b.png", CreatedAt: t0},
	})

	img, ok := m.Lookup("a.png")
	require.True(t, ok)
	assert.Equal(t, int64(5), img.ID)
	assert.Equal(t, []Ambiguity{{Filename: "a.png", IDs: []int64{3, 5}, Chosen: 5}}, m.Ambiguities())
}

func TestRewriteContent(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		invalid []string
	}{
		{
			name: "attribute",
			in:   `<img src="logo.png" alt="x">`,
			want: `<img src="/api/images/7" alt="x">`,
		},
		{
			name: "single quoted data-src",
			in:   `<img data-src='logo.png'>`,
			want: `<img data-src='/api/images/7'>`,
		},
		{
			name: "bracket link",
			in:   `![Logo](logo.png "title") and [chart](chart.jpg)`,
			want: `![Logo](/api/images/7 "title") and [chart](/api/images/9)`,
		},
		{
			name: "bare filename in text",
			in:   `<p>See logo.png, then diagram.svg.</p>`,
			want: `<p>See /api/images/7, then /api/images/42.</p>`,
		},
		{
			name: "canonical path with filename",
			in:   `<img src="/api/images/logo.png">`,
			want: `<img src="/api/images/7">`,
		},
		{
			name: "absolute url to canonical path",
			in:   `<img src="https://old.example.com/api/images/chart.jpg?w=200">`,
			want: `<img src="/api/images/9">`,
		},
		{
			name: "full stored filename",
			in:   `<a href="uploads/2023/chart.jpg">c</a>`,
			want: `<a href="/api/images/9">c</a>`,
		},
		{
			name: "similar names are independent",
			in:   `old-logo.png logo.png`,
			want: `/api/images/8 /api/images/7`,
		},
		{
			name: "adjacent references",
			in:   `logo.png,old-logo.png`,
			want: `/api/images/7,/api/images/8`,
		},
		{
			name: "existing canonical id untouched",
			in:   `<img src="/api/images/42">`,
			want: `<img src="/api/images/42">`,
		},
		{
			name:    "missing canonical id reported not guessed",
			in:      `<img src="/api/images/999"> and /api/images/999`,
			want:    `<img src="/api/images/999"> and /api/images/999`,
			invalid: []string{"/api/images/999"},
		},
		{
			name: "numeric looking text untouched",
			in:   `<p>Version 42 of 7.png-free text, id=9, 2023/chart 8</p>`,
			want: `<p>Version 42 of 7.png-free text, id=9, 2023/chart 8</p>`,
		},
		{
			name: "unknown filename untouched",
			in:   `<img src="missing.png"> other.gif`,
			want: `<img src="missing.png"> other.gif`,
		},
		{
			name: "external path with known basename untouched",
			in:   `<img src="https://cdn.example.com/assets/logo.png">`,
			want: `<img src="https://cdn.example.com/assets/logo.png">`,
		},
		{
			name: "known name inside an unresolved attribute url untouched",
			in:   `<a href="https://cdn.example.com/view?file=logo.png">v</a>`,
			want: `<a href="https://cdn.example.com/view?file=logo.png">v</a>`,
		},
		{
			name: "known name inside an unresolved bracket target untouched",
			in:   `![x](https://cdn.example.com/get?name=logo.png) logo.png`,
			want: `![x](https://cdn.example.com/get?name=logo.png) /api/images/7`,
		},
		{
			name: "longer token is not a reference",
			in:   `logo.png.bak xlogo.png`,
			want: `logo.png.bak xlogo.png`,
		},
	}
	m := testMapping()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := RewriteContent(tt.in, m)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, tt.invalid, res.Invalid)
			assert.Equal(t, tt.in != tt.want, res.Changed())
		})
	}
}

func TestRewriteContent_NumericFilenameDoesNotShadowIdentifier(t *testing.T) {
	m := BuildMapping([]wiki.Image{
		{ID: 42, Filename: "diagram.svg"},
		{ID: 50, Filename: "42"},
		{ID: 51, Filename: "uploads/77"},
	})

	to, status := m.Resolve("/api/images/42")
	assert.Equal(t, "/api/images/42", to)
	assert.Equal(t, StatusCanonical, status)

	_, status = m.Resolve("/api/images/77")
	assert.Equal(t, StatusInvalid, status)

	to, status = m.Resolve("42")
	assert.Equal(t, "/api/images/50", to)
	assert.Equal(t, StatusResolved, status)

	res := RewriteContent(`<img src="/api/images/42"> /api/images/42`, m)
	assert.False(t, res.Changed())
	assert.Equal(t, `<img src="/api/images/42"> /api/images/42`, res.Content)
}

func TestRewriteContent_Idempotent(t *testing.T) {
	m := testMapping()
	in := `<p><img src="logo.png"> ![c](chart.jpg) diagram.svg /api/images/old-logo.png /api/images/999</p>`

	first := RewriteContent(in, m)
	require.True(t, first.Changed())

	second := RewriteContent(first.Content, m)
	assert.False(t, second.Changed())
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.After, second.Before)
}

func TestRewriteContent_CountsRepeatedReference(t *testing.T) {
	res := RewriteContent(`<img src="logo.png"><img src="logo.png">`, testMapping())
	require.Len(t, res.Rewrites, 1)
	assert.Equal(t, Rewrite{From: "logo.png", To: "/api/images/7", Kind: KindAttribute, Count: 2}, res.Rewrites[0])
}

func TestExtract_Families(t *testing.T) {
	occs := Extract(`<img src="a.png"> ![x](b.gif) c.jpg /api/images/d.png /api/images/12`)

	kinds := map[string][]Kind{}
	for _, o := range occs {
		kinds[o.Ref] = append(kinds[o.Ref], o.Kind)
	}
	assert.Equal(t, []Kind{KindAttribute, KindBareFilename}, kinds["a.png"])
	assert.Equal(t, []Kind{KindBracketLink, KindBareFilename}, kinds["b.gif"])
	assert.Equal(t, []Kind{KindBareFilename}, kinds["c.jpg"])
	assert.Equal(t, []Kind{KindCanonicalPath}, kinds["/api/images/d.png"])
	assert.Equal(t, []Kind{KindCanonicalID}, kinds["/api/images/12"])
	assert.NotContains(t, kinds, "d.png")
}
