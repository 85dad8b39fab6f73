package readable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistillProducesShorterMarkdownThanRawHTML(t *testing.T) {
	body := strings.Repeat("<p>This is a paragraph of article content. </p>", 2000)
	html := `<html><head><title>Long Article</title></head><body><article>` + body + `</article></body></html>`

	result, err := Distill(html, "https://example.com/article", 50000)
	require.NoError(t, err)
	assert.Less(t, len(result.Content), len(html))
	assert.Less(t, result.TokensEstimate, result.RawTokensEstimate)
}

func TestDistillTruncatesToMaxChars(t *testing.T) {
	body := strings.Repeat("word ", 5000)
	html := `<html><body><article><p>` + body + `</p></article></body></html>`

	result, err := Distill(html, "https://example.com", 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Content), 100)
}
