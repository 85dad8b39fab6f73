package domtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameAttachedAssignsCanonicalIDs(t *testing.T) {
	tr := New()
	tr.PageOpened(1)

	mainID := tr.FrameAttached(1, "CDP-RAW-MAIN", "")
	childID := tr.FrameAttached(1, "CDP-RAW-CHILD", "CDP-RAW-MAIN")

	assert.Equal(t, "main", mainID)
	assert.Equal(t, "f1", childID)
}

func TestFrameNavigatedBumpsOnlyItsOwnFrame(t *testing.T) {
	tr := New()
	tr.PageOpened(1)
	tr.FrameAttached(1, "raw-main", "")
	tr.FrameAttached(1, "raw-child", "raw-main")

	before, ok := tr.GetDomContext(1, "f1")
	require.True(t, ok)

	tr.FrameNavigated(1, "raw-main", "", true, "", "https://example.com")

	afterChild, ok := tr.GetDomContext(1, "f1")
	require.True(t, ok)
	assert.Equal(t, before.FrameDomVersion, afterChild.FrameDomVersion, "child frame version must not change on sibling navigation")

	mainCtx, ok := tr.GetDomContext(1, "main")
	require.True(t, ok)
	assert.Equal(t, 1, mainCtx.FrameDomVersion)
}

func TestEmptyFrameIDResolvesToMain(t *testing.T) {
	tr := New()
	tr.PageOpened(7)
	tr.FrameAttached(7, "raw-main-1", "")

	ctx, ok := tr.GetDomContext(7, "")
	require.True(t, ok)
	assert.Equal(t, "main", ctx.FrameID)
	assert.True(t, ctx.IsMain)
}

func TestMatchesContextDetectsStaleness(t *testing.T) {
	tr := New()
	tr.PageOpened(1)
	tr.FrameAttached(1, "raw-main", "")

	captured, ok := tr.GetDomContext(1, "main")
	require.True(t, ok)
	assert.True(t, tr.MatchesContext(captured))

	tr.FrameNavigated(1, "raw-main", "", true, "", "https://example.com/2")
	assert.False(t, tr.MatchesContext(captured))
}

func TestPageClosedInvalidatesFrames(t *testing.T) {
	tr := New()
	tr.PageOpened(1)
	tr.FrameAttached(1, "raw-main", "")
	tr.PageClosed(1)

	_, ok := tr.GetDomContext(1, "main")
	assert.False(t, ok)
}

func TestUnknownFrameAndPageMiss(t *testing.T) {
	tr := New()
	_, ok := tr.GetDomContext(99, "")
	assert.False(t, ok)

	tr.PageOpened(1)
	_, ok = tr.GetDomContext(1, "nope")
	assert.False(t, ok)
}
