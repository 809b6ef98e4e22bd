package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	assert.Equal(t, "", ExtractText(""))
	assert.Equal(t, "hello world", ExtractText("<p>hello <b>world</b></p>"))
	assert.Equal(t, "", ExtractText("<p><br></p>"))
}

func TestHasVisibleContent(t *testing.T) {
	assert.False(t, HasVisibleContent(""))
	assert.False(t, HasVisibleContent("<p><br></p>"))
	assert.False(t, HasVisibleContent("<p>   </p>"))
	assert.True(t, HasVisibleContent("<p>hi</p>"))
	// An image alone is visible content even without any text.
	assert.True(t, HasVisibleContent(`<p><img src="asset://doc"></p>`))
}

func TestSanitizeComposerHTMLKeepsToolbarMarkup(t *testing.T) {
	in := `<p><b>bold</b> <script>evil()</script><img src="asset://doc" alt="x"></p>`
	out := SanitizeComposerHTML(in)
	assert.Contains(t, out, "<b>bold</b>")
	assert.Contains(t, out, `src="asset://doc"`)
	assert.NotContains(t, out, "script")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain", StripHTML("<p>plain</p>"))
}
