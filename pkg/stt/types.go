package stt

import "time"

// EventKind classifies a transcript event using the union of the providers'
// native vocabularies. The relay's normalizer maps kinds onto the two-field
// (text, isFinal) result delivered to clients.
type EventKind string

const (
	// KindInterim is a not-yet-finalized transcript fragment, subject to
	// revision by later events.
	KindInterim EventKind = "interim"

	// KindFinal is a transcript fragment the provider will not revise further.
	KindFinal EventKind = "final"

	// KindUtteranceEnd is an explicit end-of-utterance signal. Some providers
	// emit it separately from (and possibly after) a final result; it carries
	// no text of its own.
	KindUtteranceEnd EventKind = "utterance_end"
)

// Event is a single transcript update emitted by a streaming session.
type Event struct {
	// Kind classifies the event.
	Kind EventKind

	// Text is the transcribed speech content. Empty for KindUtteranceEnd.
	Text string

	// Confidence is the provider's confidence score (0.0–1.0). Zero when the
	// provider does not report one.
	Confidence float64
}

// BatchResult is the outcome of one batch transcription call.
type BatchResult struct {
	// Text is the full transcript.
	Text string

	// ProcessingTime is the wall-clock time the provider took, measured by
	// the adapter around the complete request.
	ProcessingTime time.Duration

	// Confidence is the overall confidence score, or nil when the provider
	// does not report one.
	Confidence *float64

	// Details holds provider-specific extras (model, duration, language)
	// passed through to the client verbatim. May be nil.
	Details map[string]any
}
