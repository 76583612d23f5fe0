package models

// Priority levels an action item may carry on elevated plans.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Categories an action item may carry on elevated plans.
const (
	CategoryWork     = "Work"
	CategoryPersonal = "Personal"
	CategoryFollowUp = "Follow-Up"
	CategoryIdea     = "Idea"
)

// ActionItem is a single actionable task extracted from a transcription.
// Completed is the only field a user may change after creation.
type ActionItem struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Completed bool    `json:"completed"`
	Priority  *string `json:"priority,omitempty"`
	Category  *string `json:"category,omitempty"`
}

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	return c == CategoryWork || c == CategoryPersonal || c == CategoryFollowUp || c == CategoryIdea
}
