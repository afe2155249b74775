// Package appstate models the app's screen flow as an explicit finite state
// machine. Transitions happen only through discrete events; there are no
// implicit flag flips.
package appstate

import (
	"fmt"
	"sync"
)

type State string

const (
	StateOnboarding State = "onboarding"
	StateWelcome    State = "welcome"
	StateCamera     State = "camera"
	StateSession    State = "session"
	StateReview     State = "review"
)

type Event string

const (
	// EventOnboardingDone fires when the intro flow completes.
	EventOnboardingDone Event = "onboarding_done"
	// EventStartCleaning fires when the user taps into the capture flow.
	EventStartCleaning Event = "start_cleaning"
	// EventPhotoAnalyzed fires when an initial analysis returns cards.
	EventPhotoAnalyzed Event = "photo_analyzed"
	// EventRetake fires when the user discards the analysis and reshoots.
	EventRetake Event = "retake"
	// EventSessionDone fires when the card stack is exhausted and the
	// followup comparison is requested.
	EventSessionDone Event = "session_done"
	// EventReset returns to the welcome screen from any post-onboarding state.
	EventReset Event = "reset"
)

var transitions = map[State]map[Event]State{
	StateOnboarding: {
		EventOnboardingDone: StateWelcome,
	},
	StateWelcome: {
		EventStartCleaning: StateCamera,
	},
	StateCamera: {
		EventPhotoAnalyzed: StateSession,
		EventReset:         StateWelcome,
	},
	StateSession: {
		EventSessionDone: StateReview,
		EventRetake:      StateCamera,
		EventReset:       StateWelcome,
	},
	StateReview: {
		EventStartCleaning: StateCamera,
		EventReset:         StateWelcome,
	},
}

// Controller owns the single app-flow state value.
type Controller struct {
	mu    sync.Mutex
	state State
}

// NewController starts in the onboarding state. Callers that have already
// completed onboarding should apply EventOnboardingDone immediately.
func NewController() *Controller {
	return &Controller{state: StateOnboarding}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Apply performs a transition. An event not valid in the current state is
// rejected and the state is left unchanged.
func (c *Controller) Apply(event Event) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := transitions[c.state][event]
	if !ok {
		return c.state, fmt.Errorf("event %q not valid in state %q", event, c.state)
	}
	c.state = next
	return next, nil
}
