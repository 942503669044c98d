package restrict

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salaryBlock = `<div data-restricted-block data-view-groups="hr, admin" data-edit-groups="admin" data-title="Salaries"><p>Alice: 100</p><div>nested plain div</div></div>`

func TestMaskForViewer_HidesUnviewableBlock(t *testing.T) {
	content := "<h1>Team</h1>" + salaryBlock + "<p>after</p>"

	masked := MaskForViewer(content, []string{"staff"})

	assert.NotContains(t, masked, "Alice: 100")
	assert.True(t, strings.HasPrefix(masked, "<h1>Team</h1>"))
	assert.True(t, strings.HasSuffix(masked, "<p>after</p>"))
	assert.Contains(t, masked, AttrPlaceholder)
	assert.Contains(t, masked, `data-title="Salaries"`)
	assert.True(t, HasPlaceholders(masked))
}

func TestMaskForViewer_KeepsViewableBlock(t *testing.T) {
	content := "<h1>Team</h1>" + salaryBlock
	assert.Equal(t, content, MaskForViewer(content, []string{"hr"}))
}

func TestResolveForSave_RestoresExactly(t *testing.T) {
	content := "<h1>Team</h1>\n" + salaryBlock + "\n<p>after &amp; more</p>"

	masked := MaskForViewer(content, nil)
	require.NotEqual(t, content, masked)

	assert.Equal(t, content, ResolveForSave(masked))
}

func TestResolveForSave_AfterUnprivilegedEdit(t *testing.T) {
	content := "<p>old intro</p>" + salaryBlock
	masked := MaskForViewer(content, []string{"staff"})

	// The unprivileged user rewrites the surrounding text and saves.
	edited := strings.Replace(masked, "old intro", "new intro", 1)

	saved := ResolveForSave(edited)
	assert.Equal(t, "<p>new intro</p>"+salaryBlock, saved)
	assert.False(t, HasPlaceholders(saved))
}

func TestResolveForSave_NestedBlocks(t *testing.T) {
	inner := `<div data-restricted-block data-view-groups="admin" data-title="Inner"><p>secret</p></div>`
	outer := `<section data-restricted-block data-view-groups="hr, admin" data-title="Outer"><p>hr only</p>` + inner + `</section>`
	content := "<p>x</p>" + outer

	forHR := MaskForViewer(content, []string{"hr"})
	assert.Contains(t, forHR, "hr only")
	assert.NotContains(t, forHR, "<p>secret</p>")

	forStaff := MaskForViewer(content, []string{"staff"})
	assert.NotContains(t, forStaff, "hr only")

	assert.Equal(t, content, ResolveForSave(forHR))
	assert.Equal(t, content, ResolveForSave(forStaff))
}

func TestResolveForSave_NoPlaceholders(t *testing.T) {
	contents := []string{
		"",
		"<p>plain</p>",
		"<p>mentions data-restricted-placeholder in text</p>",
		"<unclosed <div>",
	}
	for _, c := range contents {
		assert.Equal(t, c, ResolveForSave(c))
	}
}

func TestResolveForSave_InnerOnlyOriginal(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("<p>kept</p>"))
	content := `<div data-restricted-placeholder data-view-groups="hr" data-title="T" data-original-content="` + encoded + `">notice</div>`

	got := ResolveForSave(content)
	assert.Contains(t, got, AttrBlock)
	assert.Contains(t, got, "<p>kept</p>")
	assert.NotContains(t, got, AttrPlaceholder)

	blocks := Blocks(got)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"hr"}, blocks[0].ViewGroups)
	assert.Equal(t, "T", blocks[0].Title)
}

func TestResolveForSave_UndecodableKeepsPlaceholder(t *testing.T) {
	content := `<p>a</p><div data-restricted-placeholder data-original-content="%%%">x</div><p>b</p>`
	assert.Equal(t, content, ResolveForSave(content))

	missing := `<div data-restricted-placeholder>x</div>`
	assert.Equal(t, missing, ResolveForSave(missing))
}

func TestResolveForSave_MultiplePlaceholders(t *testing.T) {
	b1 := `<div data-restricted-block data-view-groups="a" data-title="One"><p>1</p></div>`
	b2 := `<div data-restricted-block data-view-groups="b" data-title="Two"><p>2</p></div>`
	content := b1 + "<hr>" + b2

	masked := MaskForViewer(content, nil)
	assert.Equal(t, 2, strings.Count(masked, AttrPlaceholder))
	assert.Equal(t, content, ResolveForSave(masked))
}

func TestBlock_CanView(t *testing.T) {
	assert.True(t, Block{}.CanView(nil))
	assert.True(t, Block{ViewGroups: []string{"a", "b"}}.CanView([]string{"b"}))
	assert.False(t, Block{ViewGroups: []string{"a"}}.CanView([]string{"b"}))
}

func TestBlocks(t *testing.T) {
	blocks := Blocks("<p>x</p>" + salaryBlock)
	require.Len(t, blocks, 1)
	assert.Equal(t, Block{
		Tag:        "div",
		Title:      "Salaries",
		ViewGroups: []string{"hr", "admin"},
		EditGroups: []string{"admin"},
	}, blocks[0])
}
