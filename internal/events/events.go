// Package events implements the Event Plane (C7): bounded ring buffers
// for dialogs, downloads, popups, console messages, and network
// requests, a dialog state machine with auto-dismiss, and the generic
// expect_event wait primitive.
package events

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/use-agent/navigator/internal/security"
	"github.com/use-agent/navigator/models"
)

const dialogAutoDismiss = 15 * time.Second

// Plane owns every ring buffer and the id counters that name new
// records. One Plane is shared across the whole process; its buffers
// are written to both by the event-dispatch goroutine (driver events)
// and read by tool handlers, hence the per-ring mutex.
type Plane struct {
	dialogs   *ring[*models.DialogRecord]
	downloads *ring[*models.DownloadRecord]
	popups    *ring[*models.PopupRecord]
	console   *ring[*models.ConsoleRecord]
	network   *ring[*models.NetworkRecord]

	seq atomic.Int64

	mu      sync.Mutex
	timers  map[string]*time.Timer
	waiters []*waiter
}

// Capacities mirrors config.EventsConfig; kept local to avoid an import
// cycle back into config from this package.
type Capacities struct {
	Console, Network, Dialog, Download, Popup int
}

func New(cap Capacities) *Plane {
	return &Plane{
		dialogs:   newRing[*models.DialogRecord](cap.Dialog),
		downloads: newRing[*models.DownloadRecord](cap.Download),
		popups:    newRing[*models.PopupRecord](cap.Popup),
		console:   newRing[*models.ConsoleRecord](cap.Console),
		network:   newRing[*models.NetworkRecord](cap.Network),
		timers:    make(map[string]*time.Timer),
	}
}

func (p *Plane) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, p.seq.Add(1))
}

// --- Dialogs ---

// DialogOpened records a newly observed dialog and arms its 15s
// auto-dismiss timer.
func (p *Plane) DialogOpened(pageID int, generation, dialogType, message, defaultValue string) *models.DialogRecord {
	id := p.nextID("dlg")
	rec := &models.DialogRecord{
		DialogID: id, PageID: pageID, Type: dialogType, Message: message,
		DefaultValue: defaultValue, Status: models.DialogPending, CreatedAt: time.Now(),
	}
	rec.SetGeneration(generation)
	p.dialogs.Push(id, rec)

	timer := time.AfterFunc(dialogAutoDismiss, func() {
		p.resolveDialog(id, models.DialogAutoDismissed, "")
	})
	p.mu.Lock()
	p.timers[id] = timer
	p.mu.Unlock()
	p.notify(EventTypeDialog, rec.Message)
	return rec
}

// HandleDialog resolves a pending dialog. Handling an already-resolved
// dialog is idempotent: it returns the existing record unchanged rather
// than erroring (§4.7).
func (p *Plane) HandleDialog(dialogID string, accept bool, promptText string) (*models.DialogRecord, error) {
	rec, ok := p.dialogs.Get(dialogID)
	if !ok {
		return nil, models.NotFound("dialog " + dialogID)
	}
	if rec.Status != models.DialogPending {
		return rec, nil
	}
	status := models.DialogDismissed
	if accept {
		status = models.DialogAccepted
	}
	p.stopTimer(dialogID)
	return p.resolveDialog(dialogID, status, promptText), nil
}

func (p *Plane) resolveDialog(dialogID string, status models.DialogStatus, promptText string) *models.DialogRecord {
	now := time.Now()
	p.dialogs.Update(dialogID, func(r *models.DialogRecord) *models.DialogRecord {
		if r.Status != models.DialogPending {
			return r
		}
		r.Status = status
		r.PromptText = promptText
		r.ResolvedAt = &now
		return r
	})
	rec, _ := p.dialogs.Get(dialogID)
	return rec
}

func (p *Plane) stopTimer(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
}

// ListDialogs returns pending dialogs by default, or every tracked
// dialog if includeResolved is set.
func (p *Plane) ListDialogs(includeResolved bool) []*models.DialogRecord {
	all := p.dialogs.All()
	if includeResolved {
		return all
	}
	out := make([]*models.DialogRecord, 0, len(all))
	for _, d := range all {
		if d.Status == models.DialogPending {
			out = append(out, d)
		}
	}
	return out
}

// --- Downloads ---

// DownloadStarted records a newly observed download. sourceGUID is the
// CDP-assigned guid (distinct from the returned dl-<n> id) that
// SaveDownload later hands the driver to locate the staged file.
func (p *Plane) DownloadStarted(pageID int, generation, sourceGUID, suggestedFilename, url string) *models.DownloadRecord {
	id := p.nextID("dl")
	rec := &models.DownloadRecord{
		DownloadID: id, PageID: pageID, SuggestedFilename: suggestedFilename,
		URL: url, SourceGUID: sourceGUID, CreatedAt: time.Now(),
	}
	rec.SetGeneration(generation)
	p.downloads.Push(id, rec)
	p.notify(EventTypeDownload, rec.URL)
	return rec
}

// GetDownload looks up a download record without consuming it.
func (p *Plane) GetDownload(downloadID string) (*models.DownloadRecord, bool) {
	return p.downloads.Get(downloadID)
}

// WaitForDownload dequeues (or, if peek, inspects) the next unconsumed
// download record, waiting up to timeout for one to arrive.
func (p *Plane) WaitForDownload(ctx context.Context, timeout time.Duration, peek bool) (*models.DownloadRecord, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, rec := range p.downloads.All() {
			if !rec.Consumed {
				if !peek {
					p.downloads.Update(rec.DownloadID, func(r *models.DownloadRecord) *models.DownloadRecord {
						r.Consumed = true
						return r
					})
				}
				return rec, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, models.NewToolError(models.ErrCodeTimeout, "no download arrived before the timeout", nil)
		}
		select {
		case <-ctx.Done():
			return nil, models.NewToolError(models.ErrCodeTimeout, "wait canceled", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SaveDownload persists rec to destPath through the security gate, then
// makes a best-effort attempt to extract PDF text into TextPreview. PDF
// extraction failures never fail the save itself.
func (p *Plane) SaveDownload(gate *security.Gate, downloadID, destPath string, sourceBytes []byte) (*models.DownloadRecord, error) {
	rec, ok := p.downloads.Get(downloadID)
	if !ok {
		return nil, models.NotFound("download " + downloadID)
	}
	resolved, err := gate.CheckWrite(destPath)
	if err != nil {
		return nil, err
	}
	if err := writeFile(resolved, sourceBytes); err != nil {
		return nil, models.NewToolError(models.ErrCodeInternal, "failed to save download", err)
	}
	p.downloads.Update(downloadID, func(r *models.DownloadRecord) *models.DownloadRecord {
		r.SavedPath = resolved
		return r
	})
	if looksLikePDF(sourceBytes) {
		if preview, err := extractPDFPreview(sourceBytes, 2000); err == nil {
			p.downloads.Update(downloadID, func(r *models.DownloadRecord) *models.DownloadRecord {
				r.TextPreview = preview
				return r
			})
		}
	}
	rec, _ = p.downloads.Get(downloadID)
	return rec, nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func looksLikePDF(b []byte) bool {
	return len(b) >= 5 && bytes.Equal(b[:5], []byte("%PDF-"))
}

func extractPDFPreview(data []byte, maxChars int) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for i := 1; i <= r.NumPage() && buf.Len() < maxChars; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	out := buf.String()
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out, nil
}

// --- Popups ---

func (p *Plane) PopupOpened(generation string, openerPage, newPage int, url string) *models.PopupRecord {
	id := p.nextID("pop")
	rec := &models.PopupRecord{PopupID: id, OpenerPage: openerPage, NewPageID: newPage, URL: url, CreatedAt: time.Now()}
	rec.SetGeneration(generation)
	p.popups.Push(id, rec)
	p.notify(EventTypePopup, rec.URL)
	return rec
}

// WaitForPopup dequeues (or, if peek, inspects) the next unconsumed popup
// record, waiting up to timeout for one to arrive (§4.7).
func (p *Plane) WaitForPopup(ctx context.Context, timeout time.Duration, peek bool) (*models.PopupRecord, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, rec := range p.popups.All() {
			if !rec.Consumed {
				if !peek {
					p.popups.Update(rec.PopupID, func(r *models.PopupRecord) *models.PopupRecord {
						r.Consumed = true
						return r
					})
				}
				return rec, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, models.NewToolError(models.ErrCodeTimeout, "no popup arrived before the timeout", nil)
		}
		select {
		case <-ctx.Done():
			return nil, models.NewToolError(models.ErrCodeTimeout, "wait canceled", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// --- Console & Network ---

func (p *Plane) ConsoleMessage(pageID int, generation, level, text, url string, line int) {
	id := p.nextID("con")
	rec := &models.ConsoleRecord{ID: id, PageID: pageID, Level: level, Text: text, URL: url, Line: line, CreatedAt: time.Now()}
	rec.SetGeneration(generation)
	p.console.Push(id, rec)
	p.notify(EventTypeConsole, text)
}

func (p *Plane) ListConsole() []*models.ConsoleRecord { return p.console.All() }

func (p *Plane) NetworkRequest(pageID int, generation, requestID, method, url string) {
	rec := &models.NetworkRecord{RequestID: requestID, PageID: pageID, Method: method, URL: url, CreatedAt: time.Now()}
	rec.SetGeneration(generation)
	p.network.Push(requestID, rec)
	p.notifyMatch(EventTypeNetwork, url, nil, method)
}

func (p *Plane) NetworkResponse(requestID string, status int) {
	var url, method string
	p.network.Update(requestID, func(r *models.NetworkRecord) *models.NetworkRecord {
		r.Status = status
		url, method = r.URL, r.Method
		return r
	})
	p.notifyMatch(EventTypeNetwork, url, &status, method)
}

func (p *Plane) NetworkFinished(requestID string) {
	p.network.Update(requestID, func(r *models.NetworkRecord) *models.NetworkRecord {
		r.Finished = true
		return r
	})
	p.notify(EventTypeNetwork, requestID)
}

func (p *Plane) NetworkFailed(requestID, reason string) {
	p.network.Update(requestID, func(r *models.NetworkRecord) *models.NetworkRecord {
		r.Failed = true
		r.FailReason = reason
		return r
	})
	p.notify(EventTypeNetwork, requestID)
}

func (p *Plane) ListNetwork() []*models.NetworkRecord { return p.network.All() }

func (p *Plane) GetNetwork(requestID string) (*models.NetworkRecord, bool) { return p.network.Get(requestID) }
