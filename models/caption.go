package models

// CaptionState describes where the caption for the current item stands.
type CaptionState string

const (
	// CaptionStateIdle means no caption activity (no current item yet).
	CaptionStateIdle CaptionState = "idle"
	// CaptionStateLoading means a request is in flight for the current item.
	CaptionStateLoading CaptionState = "loading"
	// CaptionStateReady means Text holds a generated caption.
	CaptionStateReady CaptionState = "ready"
	// CaptionStateError means the last request for the current item failed.
	CaptionStateError CaptionState = "error"
	// CaptionStateUnavailable means no credential is configured; no request
	// was or will be attempted. Distinct from an error on purpose.
	CaptionStateUnavailable CaptionState = "unavailable"
)

// CaptionRecord is the caption status for whatever item is current right
// now. Results that complete for an item that is no longer current are
// dropped and never reach a CaptionRecord.
type CaptionRecord struct {
	ItemID string       `json:"itemId,omitempty"`
	State  CaptionState `json:"state"`
	Text   string       `json:"text,omitempty"`
	Error  string       `json:"error,omitempty"`
}
