package journal

// ============================================================================
// Journal record types
// ============================================================================

// EventType is what happened to a product
type EventType string

const (
	EventGenerated EventType = "GENERATED" // product written to disk
	EventFailed    EventType = "FAILED"    // generation failed or timed out
)

// Event is one journal line
type Event struct {
	Seq       uint64    `json:"seq"`             // monotonically increasing from 1
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`          // run that produced the event
	Product   string    `json:"product"`         // product name
	Task      string    `json:"task"`            // job-order task name
	Error     string    `json:"error,omitempty"` // failure cause
	Timestamp int64     `json:"timestamp"`       // Unix milliseconds
	Checksum  uint32    `json:"checksum"`        // CRC32 of the fields above
}

// Record is what a caller appends; the journal assigns Seq and Checksum
type Record struct {
	Type    EventType
	RunID   string
	Product string
	Task    string
	Error   string
}

// EventHandler receives events in order during Replay
type EventHandler func(event Event) error
