package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTagsDropsShortWordsAndStopWords(t *testing.T) {
	tags := deriveTags("Take a screenshot of the current page and save it")
	_, hasScreenshot := tags["screenshot"]
	_, hasCurrent := tags["current"]
	_, hasThe := tags["the"]
	_, hasAnd := tags["and"]
	assert.True(t, hasScreenshot)
	assert.True(t, hasCurrent)
	assert.False(t, hasThe)
	assert.False(t, hasAnd)
}

func TestEstimatedTokensIsDeterministicAndNonNegative(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{"name": map[string]any{"type": "string"}}}
	got := estimatedTokens("a short description", schema)
	assert.Greater(t, got, 70)

	empty := estimatedTokens("", nil)
	assert.Equal(t, 70, empty) // 50 base + 0 + 0 + 20
}

func TestMatchesFilterAllowMode(t *testing.T) {
	f := ToolFilter{Mode: FilterAllow} // empty list => allow all
	assert.True(t, matchesFilter(f, "anything"))

	f = ToolFilter{Mode: FilterAllow, List: []string{"search", "read_*"}}
	assert.True(t, matchesFilter(f, "search"))
	assert.True(t, matchesFilter(f, "read_file"))
	assert.False(t, matchesFilter(f, "write_file"))
}

func TestMatchesFilterDenyMode(t *testing.T) {
	f := ToolFilter{Mode: FilterDeny, List: []string{"*screenshot*"}}
	assert.False(t, matchesFilter(f, "take_screenshot"))
	assert.True(t, matchesFilter(f, "navigate"))
}

func TestMatchesFilterIsCaseInsensitive(t *testing.T) {
	f := ToolFilter{Mode: FilterAllow, List: []string{"Search"}}
	assert.True(t, matchesFilter(f, "search"))
	assert.True(t, matchesFilter(f, "SEARCH"))
}

func TestGlobMatchWildcardPositions(t *testing.T) {
	assert.True(t, globMatch("*screenshot*", "take_screenshot_now"))
	assert.True(t, globMatch("screenshot*", "screenshot_tool"))
	assert.True(t, globMatch("*_tool", "screenshot_tool"))
	assert.False(t, globMatch("screenshot*", "take_screenshot"))
	assert.True(t, globMatch("*", "anything"))
}
