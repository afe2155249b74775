package models

// CleaningCard is a single short cleanup instruction shown to the user as a
// swipeable card. The phrasing constraints (one location/action per card, no
// trailing punctuation, non-imperative tone) are enforced by the prompt, not
// validated here.
type CleaningCard struct {
	Instruction string `json:"instruction"`
}

// InitialAnalysisResult is the response for a first-pass room analysis.
// Cards is never nil; an empty array means the model found nothing to do.
type InitialAnalysisResult struct {
	Mode  string         `json:"mode,omitempty"`
	Cards []CleaningCard `json:"cards"`
}

// FollowupAnalysisResult is the response for a before/after comparison pass.
// All four collections are always present, even when empty.
type FollowupAnalysisResult struct {
	Mode      string         `json:"mode,omitempty"`
	Completed []CleaningCard `json:"completed"`
	Remaining []CleaningCard `json:"remaining"`
	NewTasks  []CleaningCard `json:"newTasks"`
	Feedback  string         `json:"feedback"`
}

// ErrorResponse is the error body returned on any non-2xx status.
// Raw carries the model's unparseable output on invalid_json_from_model
// responses and is empty otherwise.
type ErrorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

const (
	ModeInitial  = "initial"
	ModeFollowup = "followup"
)
