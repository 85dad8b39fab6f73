package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/navigator/models"
)

func testPlane() *Plane {
	return New(Capacities{Console: 3, Network: 3, Dialog: 3, Download: 3, Popup: 3})
}

func TestRingBufferEvictsOldest(t *testing.T) {
	p := testPlane()
	p.ConsoleMessage(1, "g1", "log", "one", "", 0)
	p.ConsoleMessage(1, "g1", "log", "two", "", 0)
	p.ConsoleMessage(1, "g1", "log", "three", "", 0)
	p.ConsoleMessage(1, "g1", "log", "four", "", 0)

	all := p.ListConsole()
	require.Len(t, all, 3)
	assert.Equal(t, "two", all[0].Text)
	assert.Equal(t, "four", all[2].Text)
}

func TestHandleDialogIsIdempotent(t *testing.T) {
	p := testPlane()
	rec := p.DialogOpened(1, "g1", "alert", "hi", "")

	resolved, err := p.HandleDialog(rec.DialogID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.DialogAccepted, resolved.Status)

	again, err := p.HandleDialog(rec.DialogID, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.DialogAccepted, again.Status, "handling an already-resolved dialog returns its recorded resolution")
}

func TestHandleUnknownDialogIsNotFound(t *testing.T) {
	p := testPlane()
	_, err := p.HandleDialog("dlg-999", true, "")
	assert.Error(t, err)
}

func TestWaitForDownloadConsumesOnce(t *testing.T) {
	p := testPlane()
	p.DownloadStarted(1, "g1", "guid-1", "file.txt", "https://example.com/file.txt")

	ctx := context.Background()
	rec, err := p.WaitForDownload(ctx, time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", rec.SuggestedFilename)

	_, err = p.WaitForDownload(ctx, 50*time.Millisecond, false)
	assert.Error(t, err, "no further unconsumed downloads should remain")
}

func TestWaitForDownloadPeekDoesNotConsume(t *testing.T) {
	p := testPlane()
	p.DownloadStarted(1, "g1", "guid-1", "file.txt", "https://example.com/file.txt")

	ctx := context.Background()
	_, err := p.WaitForDownload(ctx, time.Second, true)
	require.NoError(t, err)

	rec2, err := p.WaitForDownload(ctx, time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", rec2.SuggestedFilename)
}

func TestDownloadStartedRecordsSourceGUIDForLaterLookup(t *testing.T) {
	p := testPlane()
	rec := p.DownloadStarted(1, "g1", "guid-1", "file.txt", "https://example.com/file.txt")

	found, ok := p.GetDownload(rec.DownloadID)
	require.True(t, ok)
	assert.Equal(t, "guid-1", found.SourceGUID)
}

func TestWaitForPopupConsumesOnceUnlessPeeking(t *testing.T) {
	p := testPlane()
	p.PopupOpened("g1", 1, 2, "https://example.com/popup")

	ctx := context.Background()
	peeked, err := p.WaitForPopup(ctx, time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, 2, peeked.NewPageID)

	consumed, err := p.WaitForPopup(ctx, time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed.NewPageID)

	_, err = p.WaitForPopup(ctx, 50*time.Millisecond, false)
	assert.Error(t, err, "no further unconsumed popups should remain")
}

func TestValidateAfterActionAllowlist(t *testing.T) {
	assert.NoError(t, ValidateAfterAction("click"))
	assert.NoError(t, ValidateAfterAction(""))
	assert.Error(t, ValidateAfterAction("type"))
}

func TestArmBeforeActionCatchesFastEvent(t *testing.T) {
	p := testPlane()
	wait := p.Arm(ExpectEventSpec{EventType: EventTypeConsole, Pattern: "loaded"})

	p.ConsoleMessage(1, "g1", "log", "page loaded successfully", "", 0)

	v, err := wait.Wait(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, "page loaded successfully", v)
}

func TestWaitTimesOutWithoutMatch(t *testing.T) {
	p := testPlane()
	wait := p.Arm(ExpectEventSpec{EventType: EventTypeConsole, Pattern: "never happens"})
	_, err := wait.Wait(context.Background(), 50)
	assert.Error(t, err)
}
