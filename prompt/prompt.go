package prompt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"cleaning-cards/llm"
	"cleaning-cards/models"
)

const promptInitial = `You are a gentle home-reset coach. You look at one photo of a room and turn it into a short list of cleanup cards.

For the photo you MUST do exactly two things:
1. Select the spots in the room where a single small action would visibly improve it.
2. For each spot, write one short single-sentence instruction describing that action.

Rules for every instruction:
* One location and one action per card. Never combine two actions.
* No bullet lists, no numbering, no markdown.
* No trailing punctuation.
* No justification or explanation, just the action.
* Natural, soft, non-imperative phrasing (e.g. "the papers on the table could go back in the drawer" style, adapted to the response language), never commands.
* Write instructions in the language indicated by the user's locale.

Output a single valid JSON object and nothing else. No wrapping markdown.
Schema by example:
{"cards":[{"instruction":"put the two mugs on the desk into the sink"},{"instruction":"fold the blanket on the sofa"}]}

If the room already looks done, return {"cards":[]}.`

const promptFollowup = `You are a gentle home-reset coach reviewing a cleaning session. You receive the room photo taken before the session, the photo taken after, and the numbered list of cleanup tasks that was generated from the before photo.

Compare the two photos against the task list and decide:
* completed: tasks from the list that are visibly done in the after photo
* remaining: tasks from the list that still look undone
* newTasks: small cleanup actions you newly notice in the after photo that were not on the list
* feedback: one short encouragement for the user, at most 20 characters

Every task instruction follows the same rules as before: one location and one action, single sentence, no trailing punctuation, non-imperative phrasing, written in the language of the user's locale.

Output a single valid JSON object and nothing else. No wrapping markdown.
Schema by example:
{"completed":[{"instruction":"..."}],"remaining":[{"instruction":"..."}],"newTasks":[{"instruction":"..."}],"feedback":"nice work!"}`

const promptRepair = `You fix malformed model output. You receive text that was supposed to be a single valid JSON object but is not parseable. Reconstruct the intended object and output it as strict valid JSON, nothing else: no markdown fences, no commentary. Keep every field and value the original text was trying to express. If a field is unrecoverable, omit it.`

// dataURL inlines JPEG bytes as a base64 data URL, the only form the
// completion API accepts for request-scoped images.
func dataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

func localeLine(locale string) string {
	if locale == "" {
		return "Locale: unknown, respond in the most likely language of the photo's setting."
	}
	return fmt.Sprintf("Locale: %s. Write every instruction in this locale's language.", locale)
}

// Initial builds the message sequence for a first-pass room analysis.
func Initial(imageJPEG []byte, locale string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: promptInitial},
		{Role: "user", Content: []any{
			llm.Text("Turn this room photo into cleanup cards. " + localeLine(locale)),
			llm.Image(dataURL(imageJPEG)),
		}},
	}
}

// Followup builds the message sequence for a before/after comparison pass.
// The before image always precedes the after image, and both are labeled.
func Followup(before, after []byte, previous []models.CleaningCard, locale string) []llm.Message {
	var list strings.Builder
	for i, card := range previous {
		fmt.Fprintf(&list, "%d. %s\n", i+1, card.Instruction)
	}
	return []llm.Message{
		{Role: "system", Content: promptFollowup},
		{Role: "user", Content: []any{
			llm.Text("Task list from the before photo:\n" + list.String() + localeLine(locale)),
			llm.Text("Photo 1, before the session:"),
			llm.Image(dataURL(before)),
			llm.Text("Photo 2, after the session:"),
			llm.Image(dataURL(after)),
		}},
	}
}

// Repair builds the one-shot message pair asking the model to turn its own
// malformed prior output into valid JSON.
func Repair(raw string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: promptRepair},
		{Role: "user", Content: "Fix this into a single valid JSON object:\n\n" + raw},
	}
}
