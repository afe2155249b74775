package parser

import (
	"encoding/json"
	"strings"

	"cleaning-cards/models"
)

// ExtractJSONFromMarkdown strips markdown code fences around a JSON payload.
// If no fence is present the input is returned trimmed.
func ExtractJSONFromMarkdown(response string) string {
	const marker = "```"

	startIdx := strings.Index(response, marker)
	if startIdx == -1 {
		return strings.TrimSpace(response)
	}

	endIdx := strings.Index(response[startIdx+len(marker):], marker)
	if endIdx == -1 {
		return strings.TrimSpace(response)
	}
	content := response[startIdx+len(marker) : startIdx+len(marker)+endIdx]

	// Drop the language identifier line if present (e.g. "json").
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// parseObject turns the model's free-form text into a decoded JSON object.
// Stage 1 is a strict parse of the (fence-stripped) text. Stage 2, on failure,
// slices the first "{" through the last "}" and parses again. When extraction
// is impossible (no braces, or "}" before "{") the stage-1 failure is returned
// unchanged so callers see a stable error regardless of which stage ran.
func parseObject(raw string, out any) error {
	cleaned := ExtractJSONFromMarkdown(raw)

	directErr := json.Unmarshal([]byte(cleaned), out)
	if directErr == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return directErr
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return directErr
	}
	return nil
}

type cardPayload struct {
	Instruction string `json:"instruction"`
}

type initialPayload struct {
	Cards []cardPayload `json:"cards"`
}

type followupPayload struct {
	Completed []cardPayload `json:"completed"`
	Remaining []cardPayload `json:"remaining"`
	NewTasks  []cardPayload `json:"newTasks"`
	Feedback  string        `json:"feedback"`
}

// normalizeCards maps payload cards into the stable schema, dropping entries
// with empty instructions. The result is never nil.
func normalizeCards(in []cardPayload) []models.CleaningCard {
	out := make([]models.CleaningCard, 0, len(in))
	for _, c := range in {
		instruction := strings.TrimSpace(c.Instruction)
		if instruction == "" {
			continue
		}
		out = append(out, models.CleaningCard{Instruction: instruction})
	}
	return out
}

// ParseInitial parses the model's raw text into an initial analysis result.
// Extra keys the model invented are discarded; a missing cards array becomes
// an empty one. An empty card list is a valid parse, not an error.
func ParseInitial(raw string) (*models.InitialAnalysisResult, error) {
	var payload initialPayload
	if err := parseObject(raw, &payload); err != nil {
		return nil, err
	}
	return &models.InitialAnalysisResult{
		Cards: normalizeCards(payload.Cards),
	}, nil
}

// ParseFollowup parses the model's raw text into a followup analysis result.
// All four fields are always populated; absent arrays default to empty and an
// absent feedback defaults to "".
func ParseFollowup(raw string) (*models.FollowupAnalysisResult, error) {
	var payload followupPayload
	if err := parseObject(raw, &payload); err != nil {
		return nil, err
	}
	return &models.FollowupAnalysisResult{
		Completed: normalizeCards(payload.Completed),
		Remaining: normalizeCards(payload.Remaining),
		NewTasks:  normalizeCards(payload.NewTasks),
		Feedback:  strings.TrimSpace(payload.Feedback),
	}, nil
}
