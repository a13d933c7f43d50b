package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMakeSnippet_ShortContentReturnedWhole(t *testing.T) {
	assert.Equal(t, "short text", makeSnippet("short text", []string{"text"}, 200))
}

func TestMakeSnippet_CentersOnFirstMatch(t *testing.T) {
	content := strings.Repeat("x", 300) + " python here " + strings.Repeat("y", 300)
	snippet := makeSnippet(content, []string{"python"}, 100)

	assert.Contains(t, snippet, "python")
	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.LessOrEqual(t, len(snippet), 100+6)
}

func TestMakeSnippet_NoMatchFallsBackToLeadingWindow(t *testing.T) {
	content := strings.Repeat("a", 500)
	snippet := makeSnippet(content, []string{"missing"}, 100)
	assert.Equal(t, strings.Repeat("a", 100)+"...", snippet)
}

func TestMakeSnippet_MultibyteContentStaysValidUTF8(t *testing.T) {
	content := strings.Repeat("日本語のテキスト", 40) + " python " + strings.Repeat("更に続く文章", 40)
	snippet := makeSnippet(content, []string{"python"}, 101)

	assert.True(t, utf8.ValidString(snippet))
	assert.Contains(t, snippet, "python")

	leading := makeSnippet(strings.Repeat("日本語のテキスト", 40), []string{"missing"}, 101)
	assert.True(t, utf8.ValidString(leading))
	assert.True(t, strings.HasSuffix(leading, "..."))
}

func TestMakeSnippet_MatchNearStart(t *testing.T) {
	content := "python " + strings.Repeat("z", 500)
	snippet := makeSnippet(content, []string{"python"}, 100)
	assert.True(t, strings.HasPrefix(snippet, "python"))
	assert.True(t, strings.HasSuffix(snippet, "..."))
}
