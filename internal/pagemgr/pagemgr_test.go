package pagemgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/navigator/internal/driver"
)

func TestFirstNonBlankPageBecomesActive(t *testing.T) {
	m := New()
	m.PageOpened(1, "about:blank", "")
	m.PageOpened(2, "https://example.com", "Example")
	assert.Equal(t, 2, m.ActivePage())
}

func TestClosingActivePageFallsBackToMostRecentNonBlank(t *testing.T) {
	m := New()
	m.PageOpened(1, "https://a.example", "A")
	m.PageOpened(2, "https://b.example", "B")
	require.True(t, m.SelectPage(2))

	m.PageClosed(2)
	assert.Equal(t, 1, m.ActivePage())
}

func TestResolvePageIDPrefersExplicit(t *testing.T) {
	m := New()
	m.PageOpened(1, "https://a.example", "A")
	m.PageOpened(2, "https://b.example", "B")

	id, ok := m.ResolvePageID(1)
	require.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = m.ResolvePageID(0)
	require.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestResolvePageIDMissesOnUnknownPage(t *testing.T) {
	m := New()
	_, ok := m.ResolvePageID(42)
	assert.False(t, ok)
}

func TestClosedPageRemainsListableButNotSelectable(t *testing.T) {
	m := New()
	m.PageOpened(1, "https://a.example", "A")
	m.PageOpened(2, "https://b.example", "B")
	m.PageClosed(1)

	pages := m.ListPages()
	require.Len(t, pages, 2)
	var found bool
	for _, p := range pages {
		if p.PageID == 1 {
			found = true
			assert.True(t, p.Closed)
		}
	}
	assert.True(t, found, "closed page must still appear in ListPages")

	assert.False(t, m.SelectPage(1))
	_, ok := m.ResolvePageID(1)
	assert.False(t, ok)
}

// attachStub satisfies driver.Driver for AttachContext: it reports a
// successful attach and no open pages.
type attachStub struct{ driver.Driver }

func (attachStub) AttachContext(context.Context) error              { return nil }
func (attachStub) Pages(context.Context) ([]driver.PageInfo, error) { return nil, nil }

func TestAttachContextMintsNewGeneration(t *testing.T) {
	m := New()
	g1 := m.Generation()
	require.NoError(t, m.AttachContext(context.Background(), attachStub{}))
	assert.NotEqual(t, g1, m.Generation())
}
