package indexer

import (
	"context"
	"time"

	"tokenSync/internal/model"
)

// Event outcomes reported by Inspect.
const (
	OutcomeDecoded      = "decoded"
	OutcomeUnrecognized = "unrecognized"
	OutcomeNotAMatch    = "not_a_match"
	OutcomeMalformed    = "malformed"
)

// EventOutcome describes what the pipeline does with one event of a block.
type EventOutcome struct {
	Event   model.RawEvent
	Kind    model.TransferKind
	Outcome string
	Entries []model.JournalEntry
	Err     error
}

// Inspect runs classification, probing and decoding over a block without
// touching the store. Unlike ProcessBlock it keeps going past malformed
// events; only probe failures abort.
func (r *Runner) Inspect(ctx context.Context, block model.Block) ([]EventOutcome, error) {
	now := time.Now()
	events := block.Events()
	outcomes := make([]EventOutcome, 0, len(events))
	for _, event := range events {
		outcome := EventOutcome{Event: event, Kind: r.pipeline.Classifier.Classify(event.Keys)}
		if outcome.Kind == model.KindUnrecognized {
			outcome.Outcome = OutcomeUnrecognized
			outcomes = append(outcomes, outcome)
			continue
		}

		matches, err := r.pipeline.Contracts.Matches(ctx, outcome.Kind, event.FromAddress, block.Number)
		if err != nil {
			return nil, err
		}
		if !matches {
			outcome.Outcome = OutcomeNotAMatch
			outcomes = append(outcomes, outcome)
			continue
		}

		record, err := r.pipeline.Decoder.Decode(outcome.Kind, event)
		if err != nil {
			outcome.Outcome = OutcomeMalformed
			outcome.Err = err
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Outcome = OutcomeDecoded
		outcome.Entries = buildJournalEntries(block, event, record, now)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
