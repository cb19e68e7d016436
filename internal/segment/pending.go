package segment

import "time"

// PendingUpload is a batch of closed segments whose delivery failed. It is
// pruned once every segment in the batch is confirmed uploaded, matched by
// segment start time, which is unique within a session.
type PendingUpload struct {
	SessionID  string    `json:"session_id"`
	Segments   []Segment `json:"segments"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
