package models

// ProcessingResult is the structured output of a processing call: the
// transcript, its summary, an optional generated title, and the extracted
// action items in the order the upstream model produced them.
type ProcessingResult struct {
	Transcription string       `json:"transcription"`
	Summary       string       `json:"summary"`
	Title         *string      `json:"title,omitempty"`
	ActionItems   []ActionItem `json:"actionItems"`
}
