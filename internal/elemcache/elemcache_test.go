package elemcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/navigator/internal/domtrack"
)

func TestStoreAndResolveElement(t *testing.T) {
	c := New()
	ctx := domtrack.DomContext{PageID: 1, PageDomVersion: 1, FrameID: "main1", FrameDomVersion: 1}
	id := c.Store(1, ctx, "button:nth-of-type(1)")

	entry, ok := c.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, "button:nth-of-type(1)", entry.Selector)
	assert.Equal(t, ctx, entry.Context)
}

func TestResolveUnknownElementMisses(t *testing.T) {
	c := New()
	_, ok := c.Resolve("el-does-not-exist")
	assert.False(t, ok)
}

func TestUIDRoundTrip(t *testing.T) {
	c := New()
	ctx := domtrack.DomContext{PageID: 1, PageDomVersion: 1, FrameID: "main1", FrameDomVersion: 1}
	uid := c.StoreUID(1, ctx, "17", 42)
	assert.Equal(t, "ax-17", uid)

	entry, ok := c.ResolveUID(uid)
	require.True(t, ok)
	assert.Equal(t, "17", entry.NodeID)
	assert.EqualValues(t, 42, entry.BackendNodeID)
}

func TestInvalidatePageDropsOnlyThatPage(t *testing.T) {
	c := New()
	ctx := domtrack.DomContext{PageID: 1}
	id1 := c.Store(1, ctx, "a")
	id2 := c.Store(2, ctx, "b")

	c.InvalidatePage(1)

	_, ok := c.Resolve(id1)
	assert.False(t, ok)
	_, ok = c.Resolve(id2)
	assert.True(t, ok)
}

func TestValidateSelectorMatchesAndRejects(t *testing.T) {
	html := `<html><body><button id="go">Go</button></body></html>`

	ok, err := ValidateSelector(html, "#go")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateSelector(html, "#missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ValidateSelector(html, ":::not-a-selector")
	assert.Error(t, err)
}
