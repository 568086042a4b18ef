package relay

import "github.com/triscribe/triscribe/pkg/stt"

// Transcript is the provider-agnostic shape every adapter event is reduced
// to before it reaches a client.
type Transcript struct {
	Text    string
	IsFinal bool
}

// Normalizer reduces provider events to [Transcript] values. One normalizer
// serves exactly one session and is only used from that session's pump
// goroutine, so it needs no locking.
//
// Interim and final events pass through with their own text; both remember
// it as the utterance's last text. An utterance-end event carries no text of
// its own and is materialized from the remembered text as a final — even
// when a final for the same text was already emitted, so providers that
// signal both produce a duplicate final rather than losing the boundary.
// Utterance-end resets the remembered text; one arriving with nothing
// remembered is dropped.
type Normalizer struct {
	lastText string
}

// Normalize maps one provider event onto a [Transcript]. The second return
// value is false when the event produces no client-visible transcript.
func (n *Normalizer) Normalize(ev stt.Event) (Transcript, bool) {
	switch ev.Kind {
	case stt.KindInterim:
		n.lastText = ev.Text
		return Transcript{Text: ev.Text, IsFinal: false}, true

	case stt.KindFinal:
		n.lastText = ev.Text
		return Transcript{Text: ev.Text, IsFinal: true}, true

	case stt.KindUtteranceEnd:
		if n.lastText == "" {
			return Transcript{}, false
		}
		text := n.lastText
		n.lastText = ""
		return Transcript{Text: text, IsFinal: true}, true

	default:
		return Transcript{}, false
	}
}
