package models

import "time"

// DialogStatus is the dialog state machine's state (§3).
type DialogStatus string

const (
	DialogPending       DialogStatus = "pending"
	DialogAccepted      DialogStatus = "accepted"
	DialogDismissed     DialogStatus = "dismissed"
	DialogAutoDismissed DialogStatus = "auto-dismissed"
	DialogError         DialogStatus = "error"
)

// DialogRecord is a captured JS dialog (alert/confirm/prompt/beforeunload).
type DialogRecord struct {
	DialogID     string       `json:"dialogId"`
	PageID       int          `json:"pageId"`
	Type         string       `json:"type"`
	Message      string       `json:"message"`
	DefaultValue string       `json:"defaultValue,omitempty"`
	Status       DialogStatus `json:"status"`
	PromptText   string       `json:"promptText,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
	generation   string
}

// Generation reports the browser-context generation this record was
// captured under (§3.1); exported via a method rather than a json field
// since it is an internal staleness check, not part of the wire contract.
func (d *DialogRecord) Generation() string { return d.generation }

// SetGeneration stamps the record's owning generation tag.
func (d *DialogRecord) SetGeneration(g string) { d.generation = g }

// DownloadRecord is a captured browser download (§3).
type DownloadRecord struct {
	DownloadID         string    `json:"downloadId"`
	PageID             int       `json:"pageId"`
	SuggestedFilename  string    `json:"suggestedFilename"`
	URL                string    `json:"url"`
	SavedPath          string    `json:"savedPath,omitempty"`
	TextPreview        string    `json:"textPreview,omitempty"`
	Consumed           bool      `json:"-"`
	// SourceGUID is the CDP-assigned download guid used to locate the
	// driver's staged file; never part of the wire contract.
	SourceGUID         string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	generation         string
}

func (d *DownloadRecord) Generation() string   { return d.generation }
func (d *DownloadRecord) SetGeneration(g string) { d.generation = g }

// PopupRecord is a captured new-page/popup event (§3).
type PopupRecord struct {
	PopupID    string    `json:"popupId"`
	OpenerPage int       `json:"openerPageId"`
	NewPageID  int       `json:"newPageId"`
	URL        string    `json:"url"`
	Consumed   bool      `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	generation string
}

func (p *PopupRecord) Generation() string   { return p.generation }
func (p *PopupRecord) SetGeneration(g string) { p.generation = g }

// ConsoleRecord is a captured Runtime.consoleAPICalled / exceptionThrown event.
type ConsoleRecord struct {
	ID         string    `json:"id"`
	PageID     int       `json:"pageId"`
	Level      string    `json:"level"` // log, warn, error, info, debug, exception
	Text       string    `json:"text"`
	URL        string    `json:"url,omitempty"`
	Line       int       `json:"line,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	generation string
}

func (c *ConsoleRecord) Generation() string   { return c.generation }
func (c *ConsoleRecord) SetGeneration(g string) { c.generation = g }

// NetworkRecord is a captured Network.* request/response lifecycle entry.
type NetworkRecord struct {
	RequestID  string    `json:"requestId"`
	PageID     int       `json:"pageId"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	FailReason string    `json:"failReason,omitempty"`
	Finished   bool      `json:"finished,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	generation string
}

func (n *NetworkRecord) Generation() string   { return n.generation }
func (n *NetworkRecord) SetGeneration(g string) { n.generation = g }
