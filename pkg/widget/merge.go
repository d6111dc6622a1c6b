package widget

import "time"

// Message is the widget's local view of one conversation entry.
type Message struct {
	Id        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Merge reconciles a freshly polled list against the locally held one.
// The candidate wins only when it is strictly longer; equal or shorter
// results are discarded wholesale, so the held list never shrinks and
// never reorders. A longer candidate with a divergent prefix still wins
// as a whole, server order is authoritative.
func Merge(current, candidate []Message) []Message {
	if len(candidate) > len(current) {
		return candidate
	}
	return current
}
