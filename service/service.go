package service

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"cleaning-cards/llm"
	"cleaning-cards/metrics"
	"cleaning-cards/models"
	"cleaning-cards/parser"
	"cleaning-cards/prompt"
)

// Generation and repair call tuning. Repair runs at temperature zero so the
// model reconstructs rather than rewrites.
var (
	generationOpts = llm.CallOptions{Temperature: 0.2, MaxTokens: 1400}
	repairOpts     = llm.CallOptions{Temperature: 0, MaxTokens: 1300}
)

// InvalidJSONError means the model's output stayed unparseable after brace
// extraction and one repair call. Raw carries the original model text for
// diagnostics.
type InvalidJSONError struct {
	Raw string
}

func (e *InvalidJSONError) Error() string {
	return "invalid JSON from model"
}

// Analyzer runs the photo analysis pipeline: prompt -> model -> parse,
// with a single LLM-assisted repair pass when parsing fails. It holds no
// per-request state and is safe for concurrent use.
type Analyzer struct {
	client llm.Client
}

// New creates an analyzer on top of the given LLM client.
func New(client llm.Client) *Analyzer {
	log.Infof("Analyzer LLM provider=%s", client.SourceName())
	return &Analyzer{client: client}
}

// AnalyzeInitial turns one room photo into a list of cleanup cards.
// An empty card list is a valid outcome meaning the room looks done.
func (a *Analyzer) AnalyzeInitial(ctx context.Context, imageJPEG []byte, locale string) (*models.InitialAnalysisResult, error) {
	messages := prompt.Initial(imageJPEG, locale)

	raw, err := a.client.Complete(ctx, messages, generationOpts)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(models.ModeInitial, "model_error").Inc()
		return nil, fmt.Errorf("initial analysis call: %w", err)
	}

	result, err := parser.ParseInitial(raw)
	if err != nil {
		repaired, repairErr := a.repair(ctx, raw)
		if repairErr == nil {
			result, err = parser.ParseInitial(repaired)
		}
		if err != nil {
			metrics.AnalysesTotal.WithLabelValues(models.ModeInitial, "invalid_json").Inc()
			return nil, &InvalidJSONError{Raw: raw}
		}
	}

	result.Mode = models.ModeInitial
	metrics.AnalysesTotal.WithLabelValues(models.ModeInitial, "ok").Inc()
	log.Infof("initial analysis done: locale=%q cards=%d", locale, len(result.Cards))
	return result, nil
}

// AnalyzeFollowup compares before/after photos against the previous task list.
func (a *Analyzer) AnalyzeFollowup(ctx context.Context, before, after []byte, previous []models.CleaningCard, locale string) (*models.FollowupAnalysisResult, error) {
	messages := prompt.Followup(before, after, previous, locale)

	raw, err := a.client.Complete(ctx, messages, generationOpts)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(models.ModeFollowup, "model_error").Inc()
		return nil, fmt.Errorf("followup analysis call: %w", err)
	}

	result, err := parser.ParseFollowup(raw)
	if err != nil {
		repaired, repairErr := a.repair(ctx, raw)
		if repairErr == nil {
			result, err = parser.ParseFollowup(repaired)
		}
		if err != nil {
			metrics.AnalysesTotal.WithLabelValues(models.ModeFollowup, "invalid_json").Inc()
			return nil, &InvalidJSONError{Raw: raw}
		}
	}

	result.Mode = models.ModeFollowup
	metrics.AnalysesTotal.WithLabelValues(models.ModeFollowup, "ok").Inc()
	log.Infof("followup analysis done: locale=%q completed=%d remaining=%d new=%d",
		locale, len(result.Completed), len(result.Remaining), len(result.NewTasks))
	return result, nil
}

// repair issues the one-shot "fix this into valid JSON" call. It runs
// strictly after the generation call because it depends on its output.
func (a *Analyzer) repair(ctx context.Context, raw string) (string, error) {
	metrics.RepairCallsTotal.Inc()
	log.Warnf("model output unparseable (%d bytes), attempting repair call", len(raw))

	repaired, err := a.client.Complete(ctx, prompt.Repair(raw), repairOpts)
	if err != nil {
		log.Warnf("repair call failed: %v", err)
		return "", err
	}
	return repaired, nil
}
