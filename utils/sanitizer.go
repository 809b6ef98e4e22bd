package utils

import (
	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy strips all markup
	StrictPolicy *bluemonday.Policy
	// ComposerPolicy matches the composer toolbar: bold, italic, underline,
	// strike, lists, links, images
	ComposerPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	ComposerPolicy = bluemonday.NewPolicy()
	ComposerPolicy.AllowElements("p", "br", "div", "span")
	ComposerPolicy.AllowElements("b", "strong", "i", "em", "u", "s", "strike")
	ComposerPolicy.AllowElements("ul", "ol", "li")
	ComposerPolicy.AllowElements("a", "img")

	ComposerPolicy.AllowAttrs("href").OnElements("a")
	ComposerPolicy.AllowAttrs("src", "alt", "title", "style").OnElements("img")
	ComposerPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	ComposerPolicy.RequireParseableURLs(true)
	ComposerPolicy.AllowURLSchemes("http", "https", "mailto", "data", "asset")
}

// SanitizeComposerHTML cleans template or quick-text HTML before it is
// spliced into a composer body.
func SanitizeComposerHTML(html string) string {
	return ComposerPolicy.Sanitize(html)
}

// StripHTML removes all HTML tags from content
func StripHTML(html string) string {
	return StrictPolicy.Sanitize(html)
}
