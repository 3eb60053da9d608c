package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect Action = "select"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// Request is the single inbound message shape. Question and Option are only
// meaningful for ActionSelect.
type Request struct {
	Action   Action `json:"action"`
	Question int    `json:"question,omitempty"`
	Option   int    `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventScored Event = "scored"
	EventPong   Event = "pong"
)

// SavedResponse acknowledges one recorded selection.
type SavedResponse struct {
	Event    Event `json:"event"`
	Question int   `json:"question"`
	Option   int   `json:"option"`
}

// ScoredResponse carries the final marks after submission.
type ScoredResponse struct {
	Event       Event `json:"event"`
	Score       int   `json:"score"`
	Correct     int   `json:"correct"`
	Wrong       int   `json:"wrong"`
	Unattempted int   `json:"unattempted"`
}

// ErrorResponse reports a failed action. Code mirrors the HTTP error codes
// so clients share one error map across transports.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
