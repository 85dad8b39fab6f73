package models

// Envelope is the fixed set of keys attached to every tool response (§3,
// §6). Payload fields are merged alongside these by the envelope builder;
// any payload key that collides with one of these is renamed "payload<Key>".
type Envelope struct {
	OK             bool         `json:"ok"`
	RequestID      string       `json:"requestId"`
	Timestamp      string       `json:"timestamp"`
	PageID         *int         `json:"pageId"`
	URL            *string      `json:"url"`
	Title          *string      `json:"title"`
	DomVersion     *string      `json:"domVersion"`
	ActiveFrameID  *string      `json:"activeFrameId"`
	Error          *ErrorDetail `json:"error,omitempty"`

	Truncated        bool   `json:"truncated,omitempty"`
	TruncationReason string `json:"truncationReason,omitempty"`
	MaxPayloadBytes  int    `json:"maxPayloadBytes,omitempty"`
	OriginalBytes    int    `json:"originalBytes,omitempty"`
	RetryWith        any    `json:"retryWith,omitempty"`
}

// ReservedKeys is the set of keys §3 calls out as envelope-owned. The
// payload-merge step (C6) and the reducer (C5) both consult this set to
// decide what may never be dropped/renamed away from its reserved meaning.
var ReservedKeys = map[string]bool{
	"ok":               true,
	"requestId":        true,
	"timestamp":        true,
	"pageId":           true,
	"url":              true,
	"title":            true,
	"domVersion":       true,
	"activeFrameId":    true,
	"error":            true,
	"truncated":        true,
	"truncationReason": true,
	"maxPayloadBytes":  true,
	"originalBytes":    true,
	"retryWith":        true,
}

// PageContext is the live page state the envelope builder reads from
// C1/C2 to populate an envelope's identity fields.
type PageContext struct {
	PageID        int
	URL           string
	Title         string
	DomVersion    string
	ActiveFrameID string
	Closed        bool
}
