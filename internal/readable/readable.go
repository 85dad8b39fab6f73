// Package readable implements the two-stage readability pipeline behind
// browser.read_page and the domain extractors' summary distillation:
// go-shiori/go-readability picks the main content out of a full page's
// HTML, then JohannesKaufmann/html-to-markdown/v2 renders it as compact
// Markdown.
package readable

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"
)

// Result is the distilled form of a page, ready to attach to a tool
// response payload.
type Result struct {
	Title             string
	Content           string // Markdown
	RawTokensEstimate int
	TokensEstimate    int
}

// Distill extracts the main article content from rawHTML (fetched from
// pageURL) and renders it to Markdown, truncated to maxChars.
func Distill(rawHTML, pageURL string, maxChars int) (Result, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		return Result{}, err
	}

	markdown, err := md.ConvertString(article.Content)
	if err != nil {
		markdown = article.TextContent
	}
	markdown = strings.TrimSpace(markdown)
	if len(markdown) > maxChars {
		markdown = markdown[:maxChars]
	}

	return Result{
		Title:             article.Title,
		Content:           markdown,
		RawTokensEstimate: estimateTokens(rawHTML),
		TokensEstimate:    estimateTokens(markdown),
	}, nil
}

// estimateTokens is a cheap, deterministic proxy (chars/4) used only to
// report a relative size comparison in the tool response, not a real
// tokenizer count.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
